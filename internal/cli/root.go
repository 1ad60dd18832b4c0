package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/enrich/internal/control"
	"github.com/vietddude/enrich/internal/core/config"
	"github.com/vietddude/stylelog"
)

var (
	cfgPath    string
	isDebug    bool
	inputPath  string
	outputPath string
)

var rootCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Bookmark enrichment tool",
	Long:  `Enrich processes a bookmark export through cached, retried analysis steps: URL expansion, article extraction, sentiment scoring and local-model summarization.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Run = runEnrich
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&inputPath, "input", "", "bookmark export to read (overrides config, - for stdin)")
	rootCmd.Flags().StringVar(&outputPath, "output", "", "where to write the enriched export (overrides config, - for stdout)")
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func initLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

func runEnrich(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	initLogging(cfg)

	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if outputPath != "" {
		cfg.Input.Output = outputPath
	}

	runner, err := control.NewRunner(control.Config{
		Server:   cfg.Server,
		Input:    cfg.Input,
		Steps:    cfg.Steps,
		Batch:    cfg.Batch,
		Retry:    cfg.Retry,
		Cache:    cfg.Cache,
		State:    cfg.State,
		Fetch:    cfg.Fetch,
		Ollama:   cfg.Ollama,
		Redis:    cfg.Redis,
		Database: cfg.Database,
	})
	if err != nil {
		slog.Error("Failed to initialize enrichment", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := runner.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := runner.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}

	if runErr != nil {
		slog.Error("Enrichment failed", "error", runErr)
		os.Exit(1)
	}
}
