package config

import (
	redisclient "github.com/vietddude/enrich/internal/infra/redis"
	"github.com/vietddude/enrich/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Input    InputConfig        `yaml:"input"`
	Steps    []StepConfig       `yaml:"steps"`
	Batch    BatchConfig        `yaml:"batch"`
	Retry    RetryConfig        `yaml:"retry"`
	Cache    CacheConfig        `yaml:"cache"`
	State    StateConfig        `yaml:"state"`
	Fetch    FetchConfig        `yaml:"fetch"`
	Ollama   OllamaConfig       `yaml:"ollama"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// InputConfig describes where the bookmark export comes from and goes.
type InputConfig struct {
	Path    string `yaml:"path"`    // "-" or empty reads stdin
	Output  string `yaml:"output"`  // "-" or empty writes stdout
	Account string `yaml:"account"` // run scope, names the checkpoint file
}

// StepConfig enables one enrichment step.
type StepConfig struct {
	Name    string `yaml:"name"` // expand, article, sentiment, summarize, persona
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`   // inference steps only
	Persona string `yaml:"persona"` // persona step only
}

// BatchConfig bounds concurrency during enrichment.
type BatchConfig struct {
	Size       int  `yaml:"size"`
	Sequential bool `yaml:"sequential"` // force order-sensitive processing
	FailFast   bool `yaml:"fail_fast"`
}

// RetryConfig controls the backoff policy for remote calls.
type RetryConfig struct {
	MaxRetries   int      `yaml:"max_retries"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Linear       bool     `yaml:"linear"` // default is exponential
}

// CacheConfig selects and tunes the enrichment cache.
type CacheConfig struct {
	Backend    string   `yaml:"backend"` // file (default) or redis
	Path       string   `yaml:"path"`
	TTL        Duration `yaml:"ttl"`
	MaxEntries int      `yaml:"max_entries"`
}

// StateConfig locates checkpoint and error-log files.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// FetchConfig tunes the HTTP fetcher.
type FetchConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// OllamaConfig holds inference runtime settings.
type OllamaConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
