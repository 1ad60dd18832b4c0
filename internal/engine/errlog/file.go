package errlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileLog flushes entries as JSON lines appended to a single file.
type FileLog struct {
	Buffer
	path string
}

// NewFileLog creates a file-backed error log.
func NewFileLog(path string) *FileLog {
	return &FileLog{Buffer: NewBuffer(), path: path}
}

// Save appends every buffered entry to the log file. Zero entries means no
// write at all, so an empty log file is never created.
func (l *FileLog) Save(ctx context.Context) error {
	entries := l.Snapshot()
	if len(entries) == 0 {
		return nil
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create error log dir: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open error log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write error log entry: %w", err)
		}
	}
	return nil
}
