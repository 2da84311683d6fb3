package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is built once at startup and treated as read-only afterwards.
type Config struct {
	UpstreamAPIKey  string        `env:"UPSTREAM_API_KEY"`
	OpenRouterKey   string        `env:"OPENROUTER_API_KEY"`
	UpstreamBaseURL string        `env:"UPSTREAM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	UpstreamModel   string        `env:"UPSTREAM_MODEL" envDefault:"google/gemini-2.5-flash"`
	UpstreamReferer string        `env:"UPSTREAM_REFERER" envDefault:"http://localhost"`
	UpstreamTitle   string        `env:"UPSTREAM_TITLE" envDefault:"voxrelay"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"0s"`

	FFmpegPath       string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"0s"`
	ScratchDir       string        `env:"SCRATCH_DIR"`
	MaxUploadBytes   int64         `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:"127.0.0.1:8787"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
}

// APIKey returns the upstream credential, preferring UPSTREAM_API_KEY.
func (c *Config) APIKey() string {
	if c.UpstreamAPIKey != "" {
		return c.UpstreamAPIKey
	}
	return c.OpenRouterKey
}

// HasAPIKey reports whether any upstream credential is configured.
func (c *Config) HasAPIKey() bool { return c.APIKey() != "" }

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	cfg.UpstreamAPIKey = strings.TrimSpace(cfg.UpstreamAPIKey)
	cfg.OpenRouterKey = strings.TrimSpace(cfg.OpenRouterKey)
	cfg.UpstreamBaseURL = strings.TrimRight(cfg.UpstreamBaseURL, "/")

	return cfg, nil
}
