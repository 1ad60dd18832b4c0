package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vietddude/enrich/internal/engine/checkpoint"
	"github.com/vietddude/enrich/internal/infra/storage/postgres"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [operation]",
	Short: "Discard saved progress for one enrichment step so the next run redoes it",
	Args:  cobra.ExactArgs(1),
	Run:   runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	operation := args[0]

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	ctx := context.Background()
	var store checkpoint.Store
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = db.Close()
		}()
		store = postgres.NewCheckpointRepo(db, cfg.Input.Account+":"+operation)
	} else {
		name := fmt.Sprintf("checkpoint-%s-%s.json", cfg.Input.Account, operation)
		store = checkpoint.NewFileStore(filepath.Join(cfg.State.Dir, name))
	}

	if err := store.Clear(ctx); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Reset checkpoint for %s (account %s)\n", operation, cfg.Input.Account)
}
