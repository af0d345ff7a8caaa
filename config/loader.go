package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// ConfigFile is the name of the service config file searched in the
// working directory.
const ConfigFile = "cybercj.yaml"

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Config file (cybercj.yaml in the working directory, or CYBERCJ_CONFIG)
// 3. Environment variables
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	path := os.Getenv("CYBERCJ_CONFIG")
	if path == "" {
		path = ConfigFile
	}

	if fileConfig, err := LoadFromFile(path); err == nil {
		l.logger.Debug("Loaded config file", slog.String("path", path))
		config.Merge(fileConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load config file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overrides config values from environment variables.
// Only deployment-level knobs are exposed; tuning parameters stay in YAML.
func (l *Loader) applyEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		} else {
			l.logger.Warn("Ignoring invalid PORT", slog.String("value", port))
		}
	}
	if endpoint := os.Getenv("CYBERCJ_MODEL_ENDPOINT"); endpoint != "" {
		config.Model.Endpoint = endpoint
	}
	if name := os.Getenv("CYBERCJ_MODEL"); name != "" {
		config.Model.Name = name
	}
	if provider := os.Getenv("CYBERCJ_MODEL_PROVIDER"); provider != "" {
		config.Model.Provider = provider
	}
	if timeout := os.Getenv("CYBERCJ_MODEL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Model.Timeout = d
		} else {
			l.logger.Warn("Ignoring invalid CYBERCJ_MODEL_TIMEOUT", slog.String("value", timeout))
		}
	}
	if path := os.Getenv("CYBERCJ_KNOWLEDGE_PATH"); path != "" {
		config.Knowledge.Path = path
	}
}
