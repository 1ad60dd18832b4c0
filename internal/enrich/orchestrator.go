// Package enrich composes the engine: for each bookmark it consults the
// cache, falls back to the retrying compute function, records failures in
// the error log and advances the checkpoint, so a re-run does no work for
// items already done and automatically retries only what failed.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/engine/batch"
	"github.com/vietddude/enrich/internal/engine/cache"
	"github.com/vietddude/enrich/internal/engine/checkpoint"
	"github.com/vietddude/enrich/internal/engine/errlog"
	"github.com/vietddude/enrich/internal/engine/retry"
	"github.com/vietddude/enrich/internal/metrics"
)

// ComputeFunc produces the enrichment value for one bookmark. It must be
// idempotent and safe to retry.
type ComputeFunc func(ctx context.Context, item domain.Bookmark) ([]byte, error)

// Config wires one named operation through the engine.
type Config struct {
	Operation string
	ComputeFn ComputeFunc

	Cache    cache.Store
	CacheTTL time.Duration
	// KeyFields are the option fields that change the result (model name,
	// prompt version, ...). They are folded into the cache key in order.
	KeyFields []cache.Field

	Checkpoint checkpoint.Store
	Errors     errlog.Log

	Retry retry.Options

	BatchSize  int
	Sequential bool // order-sensitive work, one item at a time
	FailFast   bool // abort the whole run on first terminal failure

	OnProgress func(done, total int)
}

// Summary describes a completed run. Skipped + CacheHits + Computed +
// Failed always covers every unique input item.
type Summary struct {
	Operation string     `json:"operation"`
	Dedup     DedupStats `json:"dedup"`
	Skipped   int        `json:"skipped"` // already checkpointed
	CacheHits int        `json:"cache_hits"`
	Computed  int        `json:"computed"`
	Failed    int        `json:"failed"`
}

// Outcome is the result of one run.
type Outcome struct {
	// Values holds the enrichment bytes for every item that reached Done
	// this run, keyed by bookmark ID. Checkpoint-skipped items are served
	// from the cache so a re-run still yields a complete output; only a
	// skipped item whose cache entry is gone has no value.
	Values map[string][]byte

	// States is the terminal state per unique item ID, including skipped
	// ones, so nothing is silently dropped.
	States map[string]State

	Summary Summary
}

// Orchestrator runs one enrichment operation over a bookmark set.
type Orchestrator struct {
	cfg Config
	log *slog.Logger
}

// New creates an orchestrator. Cache, Checkpoint and Errors must be set.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Operation == "" {
		return nil, fmt.Errorf("operation name is required")
	}
	if cfg.ComputeFn == nil {
		return nil, fmt.Errorf("compute function is required")
	}
	if cfg.Cache == nil || cfg.Checkpoint == nil || cfg.Errors == nil {
		return nil, fmt.Errorf("cache, checkpoint and error log are required")
	}
	return &Orchestrator{
		cfg: cfg,
		log: slog.Default().With("operation", cfg.Operation),
	}, nil
}

type computed struct {
	id       string
	value    []byte
	cacheHit bool
}

// Run enriches the given bookmarks. Item-level failures never abort the run
// unless FailFast or Sequential is set; they are logged and excluded from
// checkpoint advancement so the next run retries them.
func (o *Orchestrator) Run(ctx context.Context, items []domain.Bookmark) (*Outcome, error) {
	unique, dedup := dedupe(items)

	cp, err := o.cfg.Checkpoint.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		cp = checkpoint.New()
	}

	outcome := &Outcome{
		Values: make(map[string][]byte),
		States: make(map[string]State, len(unique)),
		Summary: Summary{
			Operation: o.cfg.Operation,
			Dedup:     dedup,
		},
	}

	remaining := make([]domain.Bookmark, 0, len(unique))
	for _, item := range unique {
		outcome.States[item.ID] = StatePending
		if cp.Processed(item.ID) {
			o.setState(outcome.States, item.ID, StateDone)
			outcome.Summary.Skipped++
			// Re-materialize the cached value so a re-run still carries
			// the earlier enrichment instead of silently dropping it.
			if value, found, err := o.cfg.Cache.Get(ctx, o.cacheKey(item.ID)); err == nil && found {
				outcome.Values[item.ID] = value
			}
			continue
		}
		remaining = append(remaining, item)
	}

	o.log.Info("Starting enrichment run",
		"items", len(unique), "skipped", outcome.Summary.Skipped, "duplicates", dedup.Original-dedup.Unique)

	var cacheHits atomic.Int64
	work := func(ctx context.Context, item domain.Bookmark) (computed, error) {
		return o.processItem(ctx, item, &cacheHits)
	}

	var successes []computed
	var failures []batch.Failure[domain.Bookmark]

	switch {
	case o.cfg.Sequential:
		seq, err := batch.ProcessSequential(ctx, remaining, work, batch.Options[domain.Bookmark]{
			OnProgress: o.cfg.OnProgress,
		})
		successes = seq
		if err != nil {
			o.recordRun(ctx, cp, outcome, successes, failures, cacheHits.Load())
			return outcome, err
		}
	case o.cfg.FailFast:
		all, err := batch.Process(ctx, remaining, work, batch.Options[domain.Bookmark]{
			Size:       o.cfg.BatchSize,
			OnProgress: o.cfg.OnProgress,
		})
		successes = all
		if err != nil {
			o.recordRun(ctx, cp, outcome, successes, failures, cacheHits.Load())
			return outcome, err
		}
	default:
		res, err := batch.ProcessWithResults(ctx, remaining, work, batch.Options[domain.Bookmark]{
			Size:       o.cfg.BatchSize,
			OnProgress: o.cfg.OnProgress,
		})
		if err != nil {
			return nil, err
		}
		for _, s := range res.Successes {
			successes = append(successes, s.Result)
		}
		failures = res.Failures
	}

	if err := o.recordRun(ctx, cp, outcome, successes, failures, cacheHits.Load()); err != nil {
		return outcome, err
	}

	o.log.Info("Enrichment run complete",
		"computed", outcome.Summary.Computed,
		"cache_hits", outcome.Summary.CacheHits,
		"skipped", outcome.Summary.Skipped,
		"failed", outcome.Summary.Failed)

	return outcome, nil
}

// cacheKey derives the content-addressed key for one item under this
// operation's option fields.
func (o *Orchestrator) cacheKey(id string) string {
	return cache.BuildKey(o.cfg.Operation, cache.KeyInput{
		Op:     o.cfg.Operation,
		ID:     id,
		Fields: o.cfg.KeyFields,
	})
}

// setState advances an item's state, refusing moves ValidTransitions does
// not allow.
func (o *Orchestrator) setState(states map[string]State, id string, to State) {
	if from, ok := states[id]; ok && !CanTransition(from, to) {
		o.log.Warn("Invalid item state transition", "item", id, "from", from, "to", to)
		return
	}
	states[id] = to
}

// processItem is the read-through-cache, retry-wrapped unit of work.
func (o *Orchestrator) processItem(ctx context.Context, item domain.Bookmark, cacheHits *atomic.Int64) (computed, error) {
	key := o.cacheKey(item.ID)

	if value, found, err := o.cfg.Cache.Get(ctx, key); err == nil && found {
		metrics.CacheHits.WithLabelValues(o.cfg.Operation).Inc()
		cacheHits.Add(1)
		return computed{id: item.ID, value: value, cacheHit: true}, nil
	}
	metrics.CacheMisses.WithLabelValues(o.cfg.Operation).Inc()

	opts := o.cfg.Retry
	callerOnRetry := opts.OnRetry
	opts.OnRetry = func(attempt int, err error) {
		metrics.RetryAttempts.WithLabelValues(o.cfg.Operation).Inc()
		o.log.Debug("Retrying item", "item", item.ID, "attempt", attempt, "error", err)
		if callerOnRetry != nil {
			callerOnRetry(attempt, err)
		}
	}

	start := time.Now()
	value, err := retry.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return o.cfg.ComputeFn(ctx, item)
	}, opts)
	metrics.ComputeLatency.WithLabelValues(o.cfg.Operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return computed{}, err
	}

	if err := o.cfg.Cache.Set(ctx, key, value, o.cfg.CacheTTL); err != nil {
		// A cache write failure degrades the next run, not this one.
		o.log.Warn("Failed to write cache", "item", item.ID, "error", err)
	}
	return computed{id: item.ID, value: value}, nil
}

// recordRun advances the checkpoint for successes, logs failures, and
// persists both. Checkpoint writes happen once per run, single-writer.
func (o *Orchestrator) recordRun(
	ctx context.Context,
	cp *checkpoint.Checkpoint,
	outcome *Outcome,
	successes []computed,
	failures []batch.Failure[domain.Bookmark],
	cacheHits int64,
) error {
	for _, s := range successes {
		outcome.Values[s.id] = s.value
		if s.cacheHit {
			// Cache hits go straight to Done without a fetch stage.
			o.setState(outcome.States, s.id, StateDone)
			outcome.Summary.CacheHits++
		} else {
			o.setState(outcome.States, s.id, StateFetching)
			o.setState(outcome.States, s.id, StateDone)
			outcome.Summary.Computed++
			metrics.ItemsProcessed.WithLabelValues(o.cfg.Operation).Inc()
		}
		cp.MarkProcessed(s.id)
	}

	for _, f := range failures {
		o.setState(outcome.States, f.Item.ID, StateFetching)
		o.setState(outcome.States, f.Item.ID, StateFailed)
		outcome.Summary.Failed++
		o.cfg.Errors.Log(o.cfg.Operation, f.Err.Error(), f.Item.ID)
		metrics.ItemsFailed.WithLabelValues(o.cfg.Operation).Inc()
		o.log.Warn("Item failed after retries", "item", f.Item.ID, "error", f.Err)
	}

	cp.Add("runs", 1)
	cp.Add("computed", outcome.Summary.Computed)
	if err := o.cfg.Checkpoint.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	metrics.CheckpointSize.WithLabelValues(o.cfg.Operation).Set(float64(len(cp.ProcessedIDs)))
	return nil
}
