package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists one checkpoint per file, JSON-encoded. The file name is
// the run scope (one per source account).
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a file-backed checkpoint store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Load reads the checkpoint. A missing or unparseable file means no
// checkpoint, never an error.
func (s *FileStore) Load(ctx context.Context) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, nil
	}
	if cp.ProcessedIDs == nil {
		cp.ProcessedIDs = make(map[string]bool)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically, stamping UpdatedAt.
func (s *FileStore) Save(ctx context.Context, cp *Checkpoint) error {
	cp.UpdatedAt = s.now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file.
func (s *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists reports whether a loadable checkpoint file is present.
func (s *FileStore) Exists(ctx context.Context) bool {
	cp, _ := s.Load(ctx)
	return cp != nil
}
