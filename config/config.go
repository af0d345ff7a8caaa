// Package config provides configuration loading and management for the
// CyberCJ tutor service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tutor service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Admission AdmissionConfig `yaml:"admission"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Port is the listen port (default: 5000).
	Port int `yaml:"port"`
	// AllowedOrigins lists CORS origins ("*" allows all).
	AllowedOrigins []string `yaml:"allowed_origins"`
	// FeedbackDBPath is the SQLite database for feedback and survey records.
	FeedbackDBPath string `yaml:"feedback_db_path"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig configures the LLM endpoint.
type ModelConfig struct {
	// Provider selects the wire format ("groq", "openai", "ollama").
	Provider string `yaml:"provider"`
	// Name is the model identifier sent to the provider.
	Name string `yaml:"name"`
	// Endpoint is the API base URL (empty = provider default).
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
	// MaxTokens limits response length (0 = provider default).
	MaxTokens int `yaml:"max_tokens"`
	// Timeout is the per-turn budget for a model call.
	Timeout time.Duration `yaml:"timeout"`
}

// KnowledgeConfig configures the retrieval index.
type KnowledgeConfig struct {
	// Path is the knowledge base text file.
	Path string `yaml:"path"`
	// ChunkSize is the target passage size in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the character overlap between adjacent passages.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// TopK is the number of passages retrieved per turn.
	TopK int `yaml:"top_k"`
	// Watch enables reindexing when the knowledge file changes on disk.
	Watch bool `yaml:"watch"`
}

// AdmissionConfig configures the admission controller.
type AdmissionConfig struct {
	// MaxConcurrent bounds simultaneous model calls.
	MaxConcurrent int `yaml:"max_concurrent"`
	// MaxRequests is the per-client request budget within Window.
	MaxRequests int `yaml:"max_requests"`
	// Window is the sliding rate-limit window.
	Window time.Duration `yaml:"window"`
	// EstimatedCallSeconds feeds the estimated-wait hint on rejection.
	EstimatedCallSeconds int `yaml:"estimated_call_seconds"`
}

// SessionConfig configures session lifecycle.
type SessionConfig struct {
	// TTL evicts sessions idle longer than this duration.
	TTL time.Duration `yaml:"ttl"`
	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// MaxHistory caps retained conversation turns per session (0 = unbounded).
	MaxHistory int `yaml:"max_history"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			AllowedOrigins:  []string{"*"},
			FeedbackDBPath:  "data/feedback.db",
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "groq",
			Name:        "openai/gpt-oss-120b",
			Temperature: 0.4,
			Timeout:     60 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Path:         "knowledge.txt",
			ChunkSize:    500,
			ChunkOverlap: 50,
			TopK:         5,
			Watch:        true,
		},
		Admission: AdmissionConfig{
			MaxConcurrent:        3,
			MaxRequests:          15,
			Window:               60 * time.Second,
			EstimatedCallSeconds: 10,
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: 5 * time.Minute,
			MaxHistory:    200,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if c.Knowledge.ChunkSize <= 0 {
		return fmt.Errorf("knowledge.chunk_size must be positive")
	}
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("knowledge.chunk_overlap must be non-negative and smaller than chunk_size")
	}
	if c.Knowledge.TopK <= 0 {
		return fmt.Errorf("knowledge.top_k must be positive")
	}
	if c.Admission.MaxConcurrent <= 0 {
		return fmt.Errorf("admission.max_concurrent must be positive")
	}
	if c.Admission.MaxRequests <= 0 {
		return fmt.Errorf("admission.max_requests must be positive")
	}
	if c.Admission.Window <= 0 {
		return fmt.Errorf("admission.window must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive")
	}
	if c.Session.MaxHistory < 0 {
		return fmt.Errorf("session.max_history must be non-negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if len(other.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = other.Server.AllowedOrigins
	}
	if other.Server.FeedbackDBPath != "" {
		c.Server.FeedbackDBPath = other.Server.FeedbackDBPath
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}

	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.MaxTokens != 0 {
		c.Model.MaxTokens = other.Model.MaxTokens
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	if other.Knowledge.Path != "" {
		c.Knowledge.Path = other.Knowledge.Path
	}
	if other.Knowledge.ChunkSize != 0 {
		c.Knowledge.ChunkSize = other.Knowledge.ChunkSize
	}
	if other.Knowledge.ChunkOverlap != 0 {
		c.Knowledge.ChunkOverlap = other.Knowledge.ChunkOverlap
	}
	if other.Knowledge.TopK != 0 {
		c.Knowledge.TopK = other.Knowledge.TopK
	}
	if other.Knowledge.Watch {
		c.Knowledge.Watch = true
	}

	if other.Admission.MaxConcurrent != 0 {
		c.Admission.MaxConcurrent = other.Admission.MaxConcurrent
	}
	if other.Admission.MaxRequests != 0 {
		c.Admission.MaxRequests = other.Admission.MaxRequests
	}
	if other.Admission.Window != 0 {
		c.Admission.Window = other.Admission.Window
	}
	if other.Admission.EstimatedCallSeconds != 0 {
		c.Admission.EstimatedCallSeconds = other.Admission.EstimatedCallSeconds
	}

	if other.Session.TTL != 0 {
		c.Session.TTL = other.Session.TTL
	}
	if other.Session.SweepInterval != 0 {
		c.Session.SweepInterval = other.Session.SweepInterval
	}
	if other.Session.MaxHistory != 0 {
		c.Session.MaxHistory = other.Session.MaxHistory
	}
}
