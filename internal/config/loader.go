package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "clawkanban.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML path may be overridden with CLAWKANBAN_CONFIG; a missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("CLAWKANBAN_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	// PORT is honoured for compatibility with process supervisors.
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Port, "CLAWKANBAN_PORT")
	setString(&cfg.Server.CORSOrigin, "CLAWKANBAN_CORS_ORIGIN")

	setString(&cfg.Data.Root, "CLAWKANBAN_DATA_DIR")
	setString(&cfg.Data.DefaultProject, "CLAWKANBAN_DEFAULT_PROJECT")
	setString(&cfg.Sessions.Dir, "CLAWKANBAN_SESSIONS_DIR")

	// Cost
	setDuration(&cfg.Cost.CacheTTL, "CLAWKANBAN_COST_CACHE_TTL")
	setInt64(&cfg.Cost.CacheMaxBytes, "CLAWKANBAN_COST_CACHE_MAX_BYTES")
	setDuration(&cfg.Cost.WindowLead, "CLAWKANBAN_COST_WINDOW_LEAD")
	setDuration(&cfg.Cost.WindowTrail, "CLAWKANBAN_COST_WINDOW_TRAIL")

	// Watcher
	setBool(&cfg.Watcher.Enabled, "CLAWKANBAN_WATCHER_ENABLED")
	setDuration(&cfg.Watcher.Debounce, "CLAWKANBAN_WATCHER_DEBOUNCE")

	setInt(&cfg.WS.SendBuffer, "CLAWKANBAN_WS_SEND_BUFFER")

	setString(&cfg.Logging.Level, "CLAWKANBAN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CLAWKANBAN_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CLAWKANBAN_LOG_ASYNC")

	setFloat64(&cfg.Rate.RequestsPerSecond, "CLAWKANBAN_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CLAWKANBAN_RATE_BURST")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "CLAWKANBAN_NATS_SUBJECT_PREFIX")
	setString(&cfg.NATS.CacheBucket, "CLAWKANBAN_NATS_CACHE_BUCKET")

	setBool(&cfg.OTEL.Enabled, "CLAWKANBAN_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "CLAWKANBAN_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Data.Root == "" {
		return errors.New("data.root is required")
	}
	if cfg.Data.DefaultProject == "" {
		return errors.New("data.default_project is required")
	}
	if cfg.Sessions.Dir == "" {
		return errors.New("sessions.dir is required")
	}
	if cfg.Cost.CacheTTL <= 0 {
		return errors.New("cost.cache_ttl must be > 0")
	}
	if cfg.Cost.CacheMaxBytes < 1024 {
		return errors.New("cost.cache_max_bytes must be >= 1024")
	}
	if cfg.Cost.WindowLead < 0 || cfg.Cost.WindowTrail < 0 {
		return errors.New("cost window slack must be >= 0")
	}
	if cfg.Watcher.Debounce <= 0 {
		return errors.New("watcher.debounce must be > 0")
	}
	if cfg.WS.SendBuffer < 1 {
		return errors.New("ws.send_buffer must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint == "" {
		return errors.New("otel.endpoint is required when otel is enabled")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
