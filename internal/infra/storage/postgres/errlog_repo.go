package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/enrich/internal/engine/errlog"
)

// ErrorLogRepo implements errlog.Log on PostgreSQL. Entries buffer in
// memory during the run and flush in one insert batch on Save.
type ErrorLogRepo struct {
	errlog.Buffer
	db *DB
}

// NewErrorLogRepo creates a PostgreSQL-backed error log.
func NewErrorLogRepo(db *DB) *ErrorLogRepo {
	return &ErrorLogRepo{Buffer: errlog.NewBuffer(), db: db}
}

// Save inserts every buffered entry. Zero entries means no write at all.
func (r *ErrorLogRepo) Save(ctx context.Context) error {
	entries := r.Snapshot()
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO enrichment_errors (run_id, operation, item_ref, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, e := range entries {
		if _, err := r.db.ExecContext(ctx, query, e.RunID, e.Operation, e.ItemRef, e.Message, e.Timestamp); err != nil {
			return fmt.Errorf("failed to insert error entry: %w", err)
		}
	}
	return nil
}
