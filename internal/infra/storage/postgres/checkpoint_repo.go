package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/enrich/internal/engine/checkpoint"
)

// CheckpointRepo implements checkpoint.Store on PostgreSQL, one row per
// run scope.
type CheckpointRepo struct {
	db    *DB
	scope string
}

// NewCheckpointRepo creates a PostgreSQL checkpoint store for one scope.
func NewCheckpointRepo(db *DB, scope string) *CheckpointRepo {
	return &CheckpointRepo{db: db, scope: scope}
}

// Load reads the checkpoint for this scope. A missing row or unparseable
// payload means no checkpoint, never an error.
func (r *CheckpointRepo) Load(ctx context.Context) (*checkpoint.Checkpoint, error) {
	var dest struct {
		Payload   []byte    `db:"payload"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	query := `SELECT payload, updated_at FROM checkpoints WHERE scope = $1`
	err := r.db.GetContext(ctx, &dest, query, r.scope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var cp checkpoint.Checkpoint
	if err := json.Unmarshal(dest.Payload, &cp); err != nil {
		return nil, nil
	}
	cp.UpdatedAt = dest.UpdatedAt
	if cp.ProcessedIDs == nil {
		cp.ProcessedIDs = make(map[string]bool)
	}
	return &cp, nil
}

// Save upserts the checkpoint row, stamping UpdatedAt.
func (r *CheckpointRepo) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	cp.UpdatedAt = time.Now()

	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	query := `
		INSERT INTO checkpoints (scope, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope) DO UPDATE SET payload = $2, updated_at = $3
	`
	if _, err := r.db.ExecContext(ctx, query, r.scope, payload, cp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Clear deletes the checkpoint row for this scope.
func (r *CheckpointRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE scope = $1`, r.scope); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// Exists reports whether a loadable checkpoint row is present.
func (r *CheckpointRepo) Exists(ctx context.Context) bool {
	cp, _ := r.Load(ctx)
	return cp != nil
}
