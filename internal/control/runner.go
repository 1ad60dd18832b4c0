// Package control assembles the application: storage backends, enrichment
// steps and the per-step orchestrators, plus the optional health server.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/vietddude/enrich/internal/core/config"
	"github.com/vietddude/enrich/internal/core/domain"
	"github.com/vietddude/enrich/internal/engine/cache"
	"github.com/vietddude/enrich/internal/engine/checkpoint"
	"github.com/vietddude/enrich/internal/engine/errlog"
	"github.com/vietddude/enrich/internal/engine/retry"
	"github.com/vietddude/enrich/internal/enrich"
	"github.com/vietddude/enrich/internal/enrich/steps"
	"github.com/vietddude/enrich/internal/health"
	"github.com/vietddude/enrich/internal/infra/fetch"
	"github.com/vietddude/enrich/internal/infra/ollama"
	redisclient "github.com/vietddude/enrich/internal/infra/redis"
	"github.com/vietddude/enrich/internal/infra/storage/postgres"
)

// DefaultModel is used by inference steps when the config names none.
const DefaultModel = "llama3.2"

// Config holds the application configuration.
type Config struct {
	Server   config.ServerConfig
	Input    config.InputConfig
	Steps    []config.StepConfig
	Batch    config.BatchConfig
	Retry    config.RetryConfig
	Cache    config.CacheConfig
	State    config.StateConfig
	Fetch    config.FetchConfig
	Ollama   config.OllamaConfig
	Redis    redisclient.Config
	Database postgres.Config
}

// Runner drives one enrichment pass over a bookmark export.
type Runner struct {
	cfg Config
	log *slog.Logger

	cache        cache.Store
	db           *postgres.DB
	redisClient  *redisclient.Client
	ollamaClient *ollama.Client
	healthServer *health.Server
	steps        []steps.Step
}

// NewRunner creates a Runner with all dependencies initialized.
func NewRunner(cfg Config) (*Runner, error) {
	r := &Runner{cfg: cfg, log: slog.Default()}

	// 1. Initialize storage
	var err error
	if cfg.Database.URL != "" {
		r.db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(r.db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		slog.Info("Using PostgreSQL state storage")
	} else {
		slog.Info("Using file state storage", "dir", cfg.State.Dir)
	}

	switch cfg.Cache.Backend {
	case "redis":
		r.redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		r.cache = redisclient.NewCacheStore(r.redisClient, cfg.Cache.TTL.Std())
	case "", "file":
		r.cache, err = cache.NewFileStore(cache.FileConfig{
			Path:       cfg.Cache.Path,
			DefaultTTL: cfg.Cache.TTL.Std(),
			MaxEntries: cfg.Cache.MaxEntries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init cache: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	// 2. Initialize clients and steps
	fetchClient := fetch.NewClient(cfg.Fetch.Timeout.Std())
	r.ollamaClient = ollama.NewClient(ollama.Config{
		URL:     cfg.Ollama.URL,
		Timeout: cfg.Ollama.Timeout.Std(),
	})

	r.steps, err = buildSteps(cfg.Steps, fetchClient, r.ollamaClient)
	if err != nil {
		return nil, err
	}

	// 3. Optional health and metrics server
	if cfg.Server.Enabled {
		r.healthServer = health.NewServer(cfg.Server.Port, r.probes())
	}

	return r, nil
}

// Run reads the export, enriches it step by step and writes the result.
func (r *Runner) Run(ctx context.Context) error {
	export, err := readExport(r.cfg.Input.Path)
	if err != nil {
		return err
	}
	r.log.Info("Loaded bookmark export", "bookmarks", len(export.Bookmarks), "account", r.cfg.Input.Account)

	if r.healthServer != nil {
		go func() {
			if err := r.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.log.Error("Health server stopped", "error", err)
			}
		}()
	}

	errLog := r.errorLog()
	runErr := r.enrichAll(ctx, export, errLog)

	if err := errLog.Save(ctx); err != nil {
		r.log.Warn("Failed to save error log", "error", err)
	}
	for operation, count := range errLog.Summary() {
		r.log.Warn("Operation had failures", "operation", operation, "failures", count)
	}

	if runErr != nil {
		return runErr
	}
	return writeExport(r.cfg.Input.Output, export)
}

// enrichAll runs every configured step over the export, merging results in
// place. A fail-fast abort still leaves already-applied values in the export.
func (r *Runner) enrichAll(ctx context.Context, export *domain.Export, errLog errlog.Log) error {
	byID := make(map[string]*domain.Bookmark, len(export.Bookmarks))
	for i := range export.Bookmarks {
		byID[export.Bookmarks[i].ID] = &export.Bookmarks[i]
	}

	sentimentRan := false
	for _, step := range r.steps {
		orch, err := enrich.New(enrich.Config{
			Operation:  step.Name,
			ComputeFn:  step.Compute,
			Cache:      r.cache,
			CacheTTL:   r.cfg.Cache.TTL.Std(),
			KeyFields:  step.KeyFields,
			Checkpoint: r.checkpointStore(step.Name),
			Errors:     errLog,
			Retry:      r.retryOptions(),
			BatchSize:  r.cfg.Batch.Size,
			Sequential: r.cfg.Batch.Sequential || step.Sequential,
			FailFast:   r.cfg.Batch.FailFast,
		})
		if err != nil {
			return fmt.Errorf("failed to build %s orchestrator: %w", step.Name, err)
		}

		outcome, runErr := orch.Run(ctx, export.Bookmarks)
		if outcome != nil {
			r.apply(step, outcome, byID)
			if step.Name == "sentiment" {
				sentimentRan = true
			}
		}
		if runErr != nil {
			return fmt.Errorf("%s run aborted: %w", step.Name, runErr)
		}
	}

	if sentimentRan {
		export.SetMetadata("sentimentAnalysis", steps.SentimentCounts(export.Bookmarks))
	}
	export.SetMetadata("enrichedAt", time.Now().UTC().Format(time.RFC3339))
	return nil
}

func (r *Runner) apply(step steps.Step, outcome *enrich.Outcome, byID map[string]*domain.Bookmark) {
	for id, value := range outcome.Values {
		b, ok := byID[id]
		if !ok {
			continue
		}
		if err := step.Apply(b, value); err != nil {
			r.log.Warn("Failed to apply enrichment value", "operation", step.Name, "item", id, "error", err)
		}
	}
}

// Stop shuts down the health server and closes storage connections.
func (r *Runner) Stop(ctx context.Context) error {
	if r.healthServer != nil {
		if err := r.healthServer.Stop(ctx); err != nil {
			return err
		}
	}
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return err
		}
	}
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// checkpointStore picks the backend for one operation's checkpoint. Scopes
// are per account and operation so steps never share progress.
func (r *Runner) checkpointStore(operation string) checkpoint.Store {
	scope := r.cfg.Input.Account + ":" + operation
	if r.db != nil {
		return postgres.NewCheckpointRepo(r.db, scope)
	}
	name := fmt.Sprintf("checkpoint-%s-%s.json", r.cfg.Input.Account, operation)
	return checkpoint.NewFileStore(filepath.Join(r.cfg.State.Dir, name))
}

func (r *Runner) errorLog() errlog.Log {
	if r.db != nil {
		return postgres.NewErrorLogRepo(r.db)
	}
	name := fmt.Sprintf("errors-%s.jsonl", r.cfg.Input.Account)
	return errlog.NewFileLog(filepath.Join(r.cfg.State.Dir, name))
}

func (r *Runner) retryOptions() retry.Options {
	backoff := retry.Exponential
	if r.cfg.Retry.Linear {
		backoff = retry.Linear
	}
	return retry.Options{
		MaxRetries:   r.cfg.Retry.MaxRetries,
		InitialDelay: r.cfg.Retry.InitialDelay.Std(),
		MaxDelay:     r.cfg.Retry.MaxDelay.Std(),
		Backoff:      backoff,
	}
}

func (r *Runner) probes() []health.Probe {
	probes := []health.Probe{
		{Name: "inference", Check: r.ollamaClient.Health},
	}
	if r.db != nil {
		probes = append(probes, health.Probe{Name: "database", Check: r.db.Health})
	}
	if r.redisClient != nil {
		probes = append(probes, health.Probe{Name: "redis", Check: r.redisClient.Health})
	}
	return probes
}

// buildSteps maps step configs to implementations, preserving config order.
func buildSteps(cfgs []config.StepConfig, fetchClient *fetch.Client, ollamaClient *ollama.Client) ([]steps.Step, error) {
	var out []steps.Step
	for _, sc := range cfgs {
		if !sc.Enabled {
			continue
		}
		model := sc.Model
		if model == "" {
			model = DefaultModel
		}
		switch sc.Name {
		case "expand":
			out = append(out, steps.NewExpand(fetchClient))
		case "article":
			out = append(out, steps.NewArticle(fetchClient))
		case "sentiment":
			out = append(out, steps.NewSentiment())
		case "summarize":
			out = append(out, steps.NewSummarize(ollamaClient, model))
		case "persona":
			out = append(out, steps.NewPersona(ollamaClient, model, sc.Persona))
		default:
			return nil, fmt.Errorf("unknown enrichment step %q", sc.Name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no enrichment steps enabled")
	}
	return out, nil
}
