package enrich

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/engine/cache"
	"github.com/vietddude/enrich/internal/engine/checkpoint"
	"github.com/vietddude/enrich/internal/engine/errlog"
	"github.com/vietddude/enrich/internal/engine/retry"
)

func bookmarks(n int) []domain.Bookmark {
	items := make([]domain.Bookmark, n)
	for i := range items {
		items[i] = domain.Bookmark{ID: fmt.Sprintf("bm-%d", i), URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	return items
}

func testConfig(t *testing.T, fn ComputeFunc) Config {
	t.Helper()
	dir := t.TempDir()
	store, err := cache.NewFileStore(cache.FileConfig{Path: filepath.Join(dir, "cache.json")})
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		Operation:  "extract",
		ComputeFn:  fn,
		Cache:      store,
		Checkpoint: checkpoint.NewFileStore(filepath.Join(dir, "checkpoint.json")),
		Errors:     errlog.NewFileLog(filepath.Join(dir, "errors.log")),
		Retry:      retry.Options{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
		BatchSize:  3,
	}
}

func TestRunEnrichesEverything(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		calls.Add(1)
		return []byte("enriched:" + item.ID), nil
	})
	o, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	items := bookmarks(5)
	outcome, err := o.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Summary.Computed != 5 || outcome.Summary.Failed != 0 {
		t.Errorf("summary = %+v", outcome.Summary)
	}
	if calls.Load() != 5 {
		t.Errorf("compute calls = %d, want 5", calls.Load())
	}
	for _, item := range items {
		if string(outcome.Values[item.ID]) != "enriched:"+item.ID {
			t.Errorf("missing value for %s", item.ID)
		}
		if outcome.States[item.ID] != StateDone {
			t.Errorf("state[%s] = %s, want done", item.ID, outcome.States[item.ID])
		}
	}
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		calls.Add(1)
		return []byte("v"), nil
	})
	o, _ := New(cfg)

	items := bookmarks(4)
	if _, err := o.Run(context.Background(), items); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := calls.Load()

	// Second run over the same set does zero additional compute work.
	outcome, err := o.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls.Load() != first {
		t.Errorf("second run made %d extra compute calls", calls.Load()-first)
	}
	if outcome.Summary.Skipped != 4 {
		t.Errorf("skipped = %d, want 4", outcome.Summary.Skipped)
	}

	// Skipped items still carry their cached values, so the second run's
	// output is as complete as the first run's.
	for _, item := range items {
		if string(outcome.Values[item.ID]) != "v" {
			t.Errorf("skipped item %s lost its value: %q", item.ID, outcome.Values[item.ID])
		}
		if outcome.States[item.ID] != StateDone {
			t.Errorf("state[%s] = %s, want done", item.ID, outcome.States[item.ID])
		}
	}
}

func TestSkippedItemWithoutCacheEntryHasNoValue(t *testing.T) {
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		return []byte("v"), nil
	})
	o, _ := New(cfg)

	ctx := context.Background()
	items := bookmarks(2)
	if _, err := o.Run(ctx, items); err != nil {
		t.Fatal(err)
	}

	// Checkpoint survives, cache does not: skipped items stay Done but
	// cannot be re-materialized.
	if err := cfg.Cache.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	outcome, err := o.Run(ctx, items)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Summary.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", outcome.Summary.Skipped)
	}
	if len(outcome.Values) != 0 {
		t.Errorf("values = %d entries, want 0 after cache loss", len(outcome.Values))
	}
}

func TestRunUsesCacheWhenCheckpointCleared(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		calls.Add(1)
		return []byte("cached-value"), nil
	})
	o, _ := New(cfg)

	items := bookmarks(3)
	ctx := context.Background()
	if _, err := o.Run(ctx, items); err != nil {
		t.Fatal(err)
	}

	// Losing the checkpoint falls back to the cache, still no recompute.
	if err := cfg.Checkpoint.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	outcome, err := o.Run(ctx, items)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("compute calls = %d, want 3 (cache should serve the rerun)", calls.Load())
	}
	if outcome.Summary.CacheHits != 3 {
		t.Errorf("cache hits = %d, want 3", outcome.Summary.CacheHits)
	}
	if string(outcome.Values["bm-0"]) != "cached-value" {
		t.Errorf("cached value not returned: %q", outcome.Values["bm-0"])
	}
}

func TestRunRetriesTransientFailureWithinBudget(t *testing.T) {
	// Item 3 fails twice with a retryable error, then succeeds. With
	// MaxRetries=2 the batch completes with all 5 results and no failures.
	var failures atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		if item.ID == "bm-3" && failures.Add(1) <= 2 {
			return nil, errors.New("connection reset by peer")
		}
		return []byte("ok"), nil
	})
	o, _ := New(cfg)

	outcome, err := o.Run(context.Background(), bookmarks(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Summary.Failed != 0 {
		t.Errorf("failed = %d, want 0", outcome.Summary.Failed)
	}
	if len(outcome.Values) != 5 {
		t.Errorf("got %d values, want 5", len(outcome.Values))
	}
	if got := len(cfg.Errors.ErrorsFor("extract")); got != 0 {
		t.Errorf("error log has %d entries for a recovered item, want 0", got)
	}
}

func TestRunRecordsTerminalFailures(t *testing.T) {
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		if item.ID == "bm-1" {
			return nil, errors.New("HTTP 503 Service Unavailable")
		}
		return []byte("ok"), nil
	})
	o, _ := New(cfg)

	items := bookmarks(3)
	outcome, err := o.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("a best-effort run must not abort: %v", err)
	}
	if outcome.Summary.Computed != 2 || outcome.Summary.Failed != 1 {
		t.Errorf("summary = %+v", outcome.Summary)
	}
	if outcome.States["bm-1"] != StateFailed {
		t.Errorf("state[bm-1] = %s, want failed", outcome.States["bm-1"])
	}

	// The failure is enumerable via the error log.
	entries := cfg.Errors.ErrorsFor("extract")
	if len(entries) != 1 || entries[0].ItemRef != "bm-1" {
		t.Errorf("error log = %+v", entries)
	}

	// The failed item is excluded from the checkpoint, so the next run
	// retries it and only it.
	var retried []string
	cfg2 := cfg
	cfg2.ComputeFn = func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		retried = append(retried, item.ID)
		return []byte("ok"), nil
	}
	cfg2.BatchSize = 1
	o2, _ := New(cfg2)
	if _, err := o2.Run(context.Background(), items); err != nil {
		t.Fatal(err)
	}
	if len(retried) != 1 || retried[0] != "bm-1" {
		t.Errorf("second run computed %v, want [bm-1]", retried)
	}
}

func TestRunNonRetryableFailsWithoutRetries(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("HTTP 404 Not Found")
	})
	o, _ := New(cfg)

	outcome, err := o.Run(context.Background(), bookmarks(1))
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute calls = %d, want 1 (no retry budget for 404)", calls.Load())
	}
	if outcome.Summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", outcome.Summary.Failed)
	}
}

func TestRunDeduplicatesInput(t *testing.T) {
	var calls atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		calls.Add(1)
		return []byte("v"), nil
	})
	o, _ := New(cfg)

	items := bookmarks(3)
	items = append(items, items[0], items[1]) // 5 inputs, 3 unique
	outcome, err := o.Run(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("compute calls = %d, want 3", calls.Load())
	}
	if outcome.Summary.Dedup.Original != 5 || outcome.Summary.Dedup.Unique != 3 {
		t.Errorf("dedup = %+v", outcome.Summary.Dedup)
	}
	if rate := outcome.Summary.Dedup.Rate(); rate != 0.4 {
		t.Errorf("dedup rate = %v, want 0.4", rate)
	}
}

func TestDedupRateEmptyInputIsZero(t *testing.T) {
	if rate := (DedupStats{}).Rate(); rate != 0 {
		t.Errorf("rate = %v, want explicit 0", rate)
	}
}

func TestRunFailFastAborts(t *testing.T) {
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		if item.ID == "bm-0" {
			return nil, errors.New("HTTP 404 Not Found")
		}
		return []byte("ok"), nil
	})
	cfg.FailFast = true
	cfg.BatchSize = 1
	o, _ := New(cfg)

	_, err := o.Run(context.Background(), bookmarks(3))
	if err == nil {
		t.Fatal("expected fail-fast run to abort")
	}
}

func TestRunSequentialPreservesOrder(t *testing.T) {
	var order []string
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		order = append(order, item.ID) // safe: sequential mode is single-flight
		return []byte("v"), nil
	})
	cfg.Sequential = true
	o, _ := New(cfg)

	if _, err := o.Run(context.Background(), bookmarks(4)); err != nil {
		t.Fatal(err)
	}
	for i, id := range order {
		if id != fmt.Sprintf("bm-%d", i) {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestRunProgressCoversRemainingItems(t *testing.T) {
	var last, total atomic.Int32
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		return []byte("v"), nil
	})
	cfg.OnProgress = func(done, tot int) {
		last.Store(int32(done))
		total.Store(int32(tot))
	}
	o, _ := New(cfg)

	if _, err := o.Run(context.Background(), bookmarks(6)); err != nil {
		t.Fatal(err)
	}
	if last.Load() != 6 || total.Load() != 6 {
		t.Errorf("final progress = %d/%d, want 6/6", last.Load(), total.Load())
	}
}

func TestSetStateRefusesInvalidTransition(t *testing.T) {
	cfg := testConfig(t, func(ctx context.Context, item domain.Bookmark) ([]byte, error) {
		return []byte("v"), nil
	})
	o, _ := New(cfg)

	states := map[string]State{"bm-0": StateDone}
	o.setState(states, "bm-0", StateFetching)
	if states["bm-0"] != StateDone {
		t.Errorf("terminal state regressed to %s", states["bm-0"])
	}

	states["bm-1"] = StatePending
	o.setState(states, "bm-1", StateFetching)
	o.setState(states, "bm-1", StateFailed)
	if states["bm-1"] != StateFailed {
		t.Errorf("state = %s, want failed", states["bm-1"])
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		expect   bool
	}{
		{StatePending, StateFetching, true},
		{StatePending, StateDone, true}, // cache hit
		{StateFetching, StateDone, true},
		{StateFetching, StateFailed, true},
		{StateDone, StateFetching, false}, // done is terminal
		{StateFailed, StateDone, false},
		{StatePending, StateFailed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.expect {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expect)
		}
	}
}
