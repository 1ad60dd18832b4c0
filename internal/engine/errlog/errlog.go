// Package errlog collects per-operation failures during a run for post-run
// diagnosis. Entries are append-only and are never deleted automatically.
package errlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded failure.
type Entry struct {
	RunID     string    `json:"run_id"`
	Operation string    `json:"operation"`
	ItemRef   string    `json:"item_ref,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Log accumulates failures in memory and flushes them durably at run end.
type Log interface {
	// Log appends an entry, stamping the run ID and timestamp.
	Log(operation, message, itemRef string)

	// ErrorsFor returns the entries recorded for one operation this run.
	ErrorsFor(operation string) []Entry

	// Summary maps operation name to failure count for this run.
	Summary() map[string]int

	// Save flushes the entries. It is a no-op when nothing was recorded,
	// so an error-free run never produces a log file.
	Save(ctx context.Context) error

	// Clear discards the in-memory entries.
	Clear()
}

// Buffer is the shared in-memory half of every Log implementation.
type Buffer struct {
	runID string
	now   func() time.Time

	mu      sync.Mutex
	entries []Entry
}

func NewBuffer() Buffer {
	return Buffer{runID: uuid.New().String(), now: time.Now}
}

func (b *Buffer) Log(operation, message, itemRef string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{
		RunID:     b.runID,
		Operation: operation,
		ItemRef:   itemRef,
		Message:   message,
		Timestamp: b.now(),
	})
}

func (b *Buffer) ErrorsFor(operation string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Entry
	for _, e := range b.entries {
		if e.Operation == operation {
			out = append(out, e)
		}
	}
	return out
}

func (b *Buffer) Summary() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	summary := make(map[string]int)
	for _, e := range b.entries {
		summary[e.Operation]++
	}
	return summary
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

func (b *Buffer) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}
