package control

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/enrich/internal/core/config"
	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/infra/fetch"
	"github.com/vietddude/enrich/internal/infra/ollama"
)

func TestReadExportObjectAndArray(t *testing.T) {
	dir := t.TempDir()

	obj := filepath.Join(dir, "obj.json")
	if err := os.WriteFile(obj, []byte(`{"bookmarks":[{"id":"a","text":"hi"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	export, err := readExport(obj)
	if err != nil {
		t.Fatalf("readExport object: %v", err)
	}
	if len(export.Bookmarks) != 1 || export.Bookmarks[0].ID != "a" {
		t.Errorf("bookmarks = %+v", export.Bookmarks)
	}

	arr := filepath.Join(dir, "arr.json")
	if err := os.WriteFile(arr, []byte(`[{"id":"b"},{"id":"c"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	export, err = readExport(arr)
	if err != nil {
		t.Fatalf("readExport array: %v", err)
	}
	if len(export.Bookmarks) != 2 || export.Bookmarks[1].ID != "c" {
		t.Errorf("bookmarks = %+v", export.Bookmarks)
	}
}

func TestReadExportBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readExport(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestBuildSteps(t *testing.T) {
	fc := fetch.NewClient(time.Second)
	oc := ollama.NewClient(ollama.Config{})

	built, err := buildSteps([]config.StepConfig{
		{Name: "sentiment", Enabled: true},
		{Name: "summarize", Enabled: false}, // disabled, must be skipped
		{Name: "expand", Enabled: true},
	}, fc, oc)
	if err != nil {
		t.Fatalf("buildSteps: %v", err)
	}
	if len(built) != 2 || built[0].Name != "sentiment" || built[1].Name != "expand" {
		t.Errorf("steps = %+v", built)
	}

	if _, err := buildSteps([]config.StepConfig{{Name: "bogus", Enabled: true}}, fc, oc); err == nil {
		t.Error("expected error for unknown step")
	}
	if _, err := buildSteps(nil, fc, oc); err == nil {
		t.Error("expected error when nothing is enabled")
	}
}

func TestRunnerEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "export.json")
	output := filepath.Join(dir, "enriched.json")

	export := domain.Export{Bookmarks: []domain.Bookmark{
		{ID: "bm-1", Text: "this is a great and useful read"},
		{ID: "bm-2", Text: "terrible broken mess"},
		{ID: "bm-3", Text: "just words"},
	}}
	data, _ := json.Marshal(export)
	if err := os.WriteFile(input, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Input: config.InputConfig{Path: input, Output: output, Account: "test"},
		Steps: []config.StepConfig{{Name: "sentiment", Enabled: true}},
		Batch: config.BatchConfig{Size: 2},
		Retry: config.RetryConfig{MaxRetries: 1, InitialDelay: config.Duration(time.Millisecond), MaxDelay: config.Duration(time.Millisecond)},
		Cache: config.CacheConfig{Backend: "file", Path: filepath.Join(dir, "cache.json")},
		State: config.StateConfig{Dir: dir},
	}

	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer func() { _ = r.Stop(context.Background()) }()

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var enriched domain.Export
	if err := json.Unmarshal(out, &enriched); err != nil {
		t.Fatal(err)
	}

	if got := enriched.Bookmarks[0].Analysis["sentiment"]; got != "positive" {
		t.Errorf("bm-1 sentiment = %v, want positive", got)
	}
	if got := enriched.Bookmarks[1].Analysis["sentiment"]; got != "negative" {
		t.Errorf("bm-2 sentiment = %v, want negative", got)
	}
	if got := enriched.Bookmarks[2].Analysis["sentiment"]; got != "neutral" {
		t.Errorf("bm-3 sentiment = %v, want neutral", got)
	}

	counts, ok := enriched.Metadata["sentimentAnalysis"].(map[string]any)
	if !ok {
		t.Fatalf("metadata = %+v", enriched.Metadata)
	}
	if counts["positive"] != float64(1) || counts["negative"] != float64(1) || counts["neutral"] != float64(1) {
		t.Errorf("sentiment counts = %+v", counts)
	}

	// A second run skips everything via the checkpoint but serves the
	// values from the cache, so the output stays fully enriched.
	r2, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner (rerun): %v", err)
	}
	defer func() { _ = r2.Stop(context.Background()) }()
	if err := r2.Run(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}

	out, err = os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var rerun domain.Export
	if err := json.Unmarshal(out, &rerun); err != nil {
		t.Fatal(err)
	}
	if got := rerun.Bookmarks[0].Analysis["sentiment"]; got != "positive" {
		t.Errorf("rerun bm-1 sentiment = %v, want positive", got)
	}
	if got := rerun.Bookmarks[1].Analysis["sentiment"]; got != "negative" {
		t.Errorf("rerun bm-2 sentiment = %v, want negative", got)
	}
	counts, ok = rerun.Metadata["sentimentAnalysis"].(map[string]any)
	if !ok {
		t.Fatalf("rerun metadata = %+v", rerun.Metadata)
	}
	if counts["positive"] != float64(1) || counts["negative"] != float64(1) || counts["neutral"] != float64(1) {
		t.Errorf("rerun sentiment counts = %+v", counts)
	}
}
