// Package config provides hierarchical configuration loading for ClawKanban.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all runtime configuration for the ClawKanban server.
type Config struct {
	Server   Server   `yaml:"server"`
	Data     Data     `yaml:"data"`
	Sessions Sessions `yaml:"sessions"`
	Cost     Cost     `yaml:"cost"`
	Watcher  Watcher  `yaml:"watcher"`
	WS       WS       `yaml:"ws"`
	Logging  Logging  `yaml:"logging"`
	Rate     Rate     `yaml:"rate"`
	NATS     NATS     `yaml:"nats"`
	OTEL     OTEL     `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Data holds the task store location.
type Data struct {
	Root           string `yaml:"root"`            // Directory holding one subdirectory per project
	DefaultProject string `yaml:"default_project"` // Project served by the unscoped /api/tasks routes
}

// Sessions holds the location of the agent session logs used for cost attribution.
type Sessions struct {
	Dir string `yaml:"dir"`
}

// Rates are USD per million tokens for each token class.
type Rates struct {
	Input      float64 `yaml:"input"`
	Output     float64 `yaml:"output"`
	CacheRead  float64 `yaml:"cache_read"`
	CacheWrite float64 `yaml:"cache_write"`
}

// Cost holds cost attribution configuration.
type Cost struct {
	CacheTTL      time.Duration    `yaml:"cache_ttl"`       // Lifetime of the tag-split mapping (default: 30s)
	CacheMaxBytes int64            `yaml:"cache_max_bytes"` // L1 cache budget (default: 16 MiB)
	WindowLead    time.Duration    `yaml:"window_lead"`     // Slack before the first comment (default: 5s)
	WindowTrail   time.Duration    `yaml:"window_trail"`    // Slack after the last comment (default: 60s)
	Pricing       map[string]Rates `yaml:"pricing"`         // Per-model overrides merged over the built-in table
}

// Watcher holds change watcher configuration.
type Watcher struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// WS holds live channel configuration.
type WS struct {
	SendBuffer int `yaml:"send_buffer"` // Per-subscriber queued messages before drops
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// NATS holds the optional JetStream event mirror and shared cost cache
// configuration. An empty URL disables both.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	CacheBucket   string `yaml:"cache_bucket"` // KV bucket shared as L2 cost cache; empty disables
}

// OTEL holds OpenTelemetry exporter configuration.
type OTEL struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8008",
			CORSOrigin: "http://localhost:3000",
		},
		Data: Data{
			Root:           "data",
			DefaultProject: "clawkanban",
		},
		Sessions: Sessions{
			Dir: defaultSessionsDir(),
		},
		Cost: Cost{
			CacheTTL:      30 * time.Second,
			CacheMaxBytes: 16 << 20,
			WindowLead:    5 * time.Second,
			WindowTrail:   60 * time.Second,
		},
		Watcher: Watcher{
			Enabled:  true,
			Debounce: 300 * time.Millisecond,
		},
		WS: WS{
			SendBuffer: 64,
		},
		Logging: Logging{
			Level:   "info",
			Service: "clawkanban",
		},
		Rate: Rate{
			RequestsPerSecond: 20,
			Burst:             100,
		},
		NATS: NATS{
			SubjectPrefix: "kanban",
			CacheBucket:   "clawkanban-costs",
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "clawkanban",
			Insecure:    true,
		},
	}
}

func defaultSessionsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".openclaw", "agents", "main", "sessions")
	}
	return filepath.Join(home, ".openclaw", "agents", "main", "sessions")
}
