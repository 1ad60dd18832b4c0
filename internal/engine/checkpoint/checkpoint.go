// Package checkpoint records which items a run has already processed, so a
// re-run skips completed work and only retries what failed.
package checkpoint

import (
	"context"
	"time"
)

// Checkpoint is the durable progress record for one run scope.
type Checkpoint struct {
	ProcessedIDs map[string]bool `json:"processed_ids"`
	Counters     map[string]int  `json:"counters,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// New returns an empty checkpoint.
func New() *Checkpoint {
	return &Checkpoint{
		ProcessedIDs: make(map[string]bool),
		Counters:     make(map[string]int),
	}
}

// Processed reports whether the given item already completed in a prior run.
func (c *Checkpoint) Processed(id string) bool {
	return c != nil && c.ProcessedIDs[id]
}

// MarkProcessed records completion of an item.
func (c *Checkpoint) MarkProcessed(id string) {
	if c.ProcessedIDs == nil {
		c.ProcessedIDs = make(map[string]bool)
	}
	c.ProcessedIDs[id] = true
}

// Add bumps a caller-defined counter.
func (c *Checkpoint) Add(counter string, delta int) {
	if c.Counters == nil {
		c.Counters = make(map[string]int)
	}
	c.Counters[counter] += delta
}

// Store persists checkpoints. Missing or unparseable state is reported as
// absent, never as an error, so a damaged checkpoint degrades to a full
// re-run instead of blocking it.
type Store interface {
	// Load returns the stored checkpoint, or nil when none exists.
	Load(ctx context.Context) (*Checkpoint, error)

	// Save persists the checkpoint, stamping UpdatedAt.
	Save(ctx context.Context, cp *Checkpoint) error

	// Clear discards any stored checkpoint.
	Clear(ctx context.Context) error

	// Exists reports whether a loadable checkpoint is present.
	Exists(ctx context.Context) bool
}
