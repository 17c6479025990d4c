package config

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLIFlags holds command-line overrides. A nil field means "not given".
type CLIFlags struct {
	ConfigPath  *string
	Port        *string
	LogLevel    *string
	DataDir     *string
	SessionsDir *string
}

// ParseFlags parses serve flags. Long and short forms are both accepted.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("clawkanban", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath, port, logLevel, dataDir, sessionsDir string
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "path to YAML config file (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "HTTP listen port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&dataDir, "data-dir", "", "task store root directory")
	fs.StringVar(&sessionsDir, "sessions-dir", "", "agent session log directory")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "port", "p":
			flags.Port = &port
		case "log-level":
			flags.LogLevel = &logLevel
		case "data-dir":
			flags.DataDir = &dataDir
		case "sessions-dir":
			flags.SessionsDir = &sessionsDir
		}
	})
	return flags, nil
}

// LoadWithCLI loads configuration with the full hierarchy
// defaults < YAML < ENV < CLI and returns the YAML path that was consulted.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if v := os.Getenv("CLAWKANBAN_CONFIG"); v != "" {
		path = v
	}
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

// applyCLI overlays the non-nil flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DataDir != nil {
		cfg.Data.Root = *flags.DataDir
	}
	if flags.SessionsDir != nil {
		cfg.Sessions.Dir = *flags.SessionsDir
	}
}
