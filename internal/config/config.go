package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete codesweep configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Servers    map[string]ServerCfg `json:"servers" mapstructure:"servers"`
	Supervisor SupervisorConfig     `json:"supervisor" mapstructure:"supervisor"`
	Collector  CollectorConfig      `json:"collector" mapstructure:"collector"`
	Classifier ClassifierConfig     `json:"classifier" mapstructure:"classifier"`
	Discovery  DiscoveryConfig      `json:"discovery" mapstructure:"discovery"`
	Report     ReportConfig         `json:"report" mapstructure:"report"`
	Logging    LoggingConfig        `json:"logging" mapstructure:"logging"`
}

// ServerCfg contains the launch specification for one language server
type ServerCfg struct {
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args" mapstructure:"args"`
}

// SupervisorConfig contains language-server lifecycle configuration
type SupervisorConfig struct {
	StartTimeoutMs   int `json:"startTimeoutMs" mapstructure:"startTimeoutMs"`
	ShutdownGraceMs  int `json:"shutdownGraceMs" mapstructure:"shutdownGraceMs"`
	MaxRestarts      int `json:"maxRestarts" mapstructure:"maxRestarts"`
	RestartBackoffMs int `json:"restartBackoffMs" mapstructure:"restartBackoffMs"`
}

// CollectorConfig contains diagnostic collection configuration
type CollectorConfig struct {
	WorkersPerLanguage  int `json:"workersPerLanguage" mapstructure:"workersPerLanguage"`
	RequestTimeoutMs    int `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
	MaxRetries          int `json:"maxRetries" mapstructure:"maxRetries"`
	RetryBackoffMs      int `json:"retryBackoffMs" mapstructure:"retryBackoffMs"`
	BatchSize           int `json:"batchSize" mapstructure:"batchSize"`
	MinFilesPerLanguage int `json:"minFilesPerLanguage" mapstructure:"minFilesPerLanguage"`
}

// ClassifierConfig contains business-impact keyword lists.
// Empty lists fall back to the built-in defaults.
type ClassifierConfig struct {
	CriticalKeywords     []string `json:"criticalKeywords" mapstructure:"criticalKeywords"`
	MajorWarningKeywords []string `json:"majorWarningKeywords" mapstructure:"majorWarningKeywords"`
	EntryPointNames      []string `json:"entryPointNames" mapstructure:"entryPointNames"`
}

// DiscoveryConfig contains repository discovery configuration
type DiscoveryConfig struct {
	Ignore           []string `json:"ignore" mapstructure:"ignore"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// ReportConfig contains report rendering configuration
type ReportConfig struct {
	TopFiles int `json:"topFiles" mapstructure:"topFiles"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Servers: map[string]ServerCfg{
			"python": {
				Command: "pylsp",
			},
			"typescript": {
				Command: "typescript-language-server",
				Args:    []string{"--stdio"},
			},
			"javascript": {
				Command: "typescript-language-server",
				Args:    []string{"--stdio"},
			},
			"go": {
				Command: "gopls",
			},
			"rust": {
				Command: "rust-analyzer",
			},
			"java": {
				Command: "jdtls",
			},
		},
		Supervisor: SupervisorConfig{
			StartTimeoutMs:   15000,
			ShutdownGraceMs:  2000,
			MaxRestarts:      1,
			RestartBackoffMs: 1000,
		},
		Collector: CollectorConfig{
			WorkersPerLanguage:  4,
			RequestTimeoutMs:    15000,
			MaxRetries:          2,
			RetryBackoffMs:      250,
			BatchSize:           8,
			MinFilesPerLanguage: 1,
		},
		Classifier: ClassifierConfig{},
		Discovery: DiscoveryConfig{
			Ignore:           []string{"node_modules/**", "vendor/**", "dist/**", "build/**", "target/**", "__pycache__/**"},
			MaxFileSizeBytes: 1 << 20,
		},
		Report: ReportConfig{
			TopFiles: 10,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .codesweep/config.json under the repo root
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ".codesweep"))

	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .codesweep/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".codesweep")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Collector.WorkersPerLanguage < 1 {
		return &ConfigError{Field: "collector.workersPerLanguage", Message: "must be at least 1"}
	}
	if c.Collector.BatchSize < 1 {
		return &ConfigError{Field: "collector.batchSize", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
