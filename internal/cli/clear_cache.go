package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/enrich/internal/engine/cache"
	redisclient "github.com/vietddude/enrich/internal/infra/redis"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop every cached enrichment value",
	Run:   runClearCache,
}

func init() {
	rootCmd.AddCommand(clearCacheCmd)
}

func runClearCache(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	ctx := context.Background()
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			_ = client.Close()
		}()
		store = redisclient.NewCacheStore(client, 0)
	default:
		store, err = cache.NewFileStore(cache.FileConfig{Path: cfg.Cache.Path})
		if err != nil {
			slog.Error("Failed to open cache", "error", err)
			os.Exit(1)
		}
	}

	if err := store.Clear(ctx); err != nil {
		slog.Error("Failed to clear cache", "error", err)
		os.Exit(1)
	}
	fmt.Println("Cache cleared")
}
