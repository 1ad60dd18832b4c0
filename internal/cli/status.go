package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/enrich/internal/core/config"
	"github.com/vietddude/enrich/internal/engine/checkpoint"
	"github.com/vietddude/enrich/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress per enrichment step",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "OPERATION\tPROCESSED\tRUNS\tUPDATED")

	if cfg.Database.URL != "" {
		statusFromDB(cfg, w)
	} else {
		statusFromFiles(cfg, w)
	}
	_ = w.Flush()
}

func statusFromDB(cfg *config.AppConfig, w *tabwriter.Writer) {
	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	var scopes []string
	err = db.SelectContext(ctx, &scopes,
		"SELECT scope FROM checkpoints WHERE scope LIKE $1 ORDER BY scope", cfg.Input.Account+":%")
	if err != nil {
		slog.Error("Failed to query checkpoints", "error", err)
		os.Exit(1)
	}

	for _, scope := range scopes {
		operation := strings.TrimPrefix(scope, cfg.Input.Account+":")
		repo := postgres.NewCheckpointRepo(db, scope)
		cp, err := repo.Load(ctx)
		if err != nil || cp == nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", operation, len(cp.ProcessedIDs), cp.Counters["runs"], cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func statusFromFiles(cfg *config.AppConfig, w *tabwriter.Writer) {
	prefix := "checkpoint-" + cfg.Input.Account + "-"
	matches, err := filepath.Glob(filepath.Join(cfg.State.Dir, prefix+"*.json"))
	if err != nil {
		slog.Error("Failed to list checkpoints", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	for _, path := range matches {
		name := filepath.Base(path)
		operation := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		cp, err := checkpoint.NewFileStore(path).Load(ctx)
		if err != nil || cp == nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", operation, len(cp.ProcessedIDs), cp.Counters["runs"], cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}
