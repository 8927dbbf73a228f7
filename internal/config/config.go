// Package config loads application configuration from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backend selectors.
const (
	BackendSupabase = "supabase"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds all runtime configuration.
type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Env   string `envconfig:"APP_ENV" default:"development"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// StoreBackend selects where account and purchase order documents
	// live: supabase, sqlite or memory. Memory keeps everything
	// session-only; nothing survives a restart.
	StoreBackend string `envconfig:"STORE_BACKEND" default:"sqlite"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"data/pdde.db"`
	SupabaseURL  string `envconfig:"SUPABASE_URL"`
	SupabaseKey  string `envconfig:"SUPABASE_KEY"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`

	CacheTTL         time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	MaxRetries       int           `envconfig:"MAX_RETRIES" default:"3"`
	InitialBackoff   time.Duration `envconfig:"INITIAL_BACKOFF" default:"100ms"`
	StoreConcurrency int           `envconfig:"STORE_CONCURRENCY" default:"4"`

	// MaxAttachmentKB caps receipt uploads; purchase order receipts are
	// meant to be photos of invoices, not archives.
	MaxAttachmentKB int `envconfig:"MAX_ATTACHMENT_KB" default:"512"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	switch cfg.StoreBackend {
	case BackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
			return nil, fmt.Errorf("config: STORE_BACKEND=supabase requires SUPABASE_URL and SUPABASE_KEY")
		}
	case BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return &cfg, nil
}

// MaxAttachmentBytes returns the receipt size cap in bytes.
func (c *Config) MaxAttachmentBytes() int64 {
	return int64(c.MaxAttachmentKB) * 1024
}
