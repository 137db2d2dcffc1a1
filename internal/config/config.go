package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned when the config file is not found by Load.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents MCP server settings
type ServerConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit represents rate limiting configuration
type RateLimit struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour"`
}

// StorageConfig represents the content database and statistics cache
type StorageConfig struct {
	Database         string        `mapstructure:"database"`
	StatsTTL         time.Duration `mapstructure:"stats_ttl"`
	StatsConcurrency int           `mapstructure:"stats_concurrency"`
}

// SecurityConfig represents confirmation settings for writes
type SecurityConfig struct {
	BatchMode           bool          `mapstructure:"batch_mode"`
	AutoApprove         bool          `mapstructure:"auto_approve"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // audit log
	Debug bool   `mapstructure:"debug"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout: 30 * time.Second,
			RateLimit: RateLimit{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
		Storage: StorageConfig{
			StatsTTL:         5 * time.Minute,
			StatsConcurrency: 4,
		},
		Security: SecurityConfig{
			ConfirmationTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	resolvedConfigFile := configFile

	if configFile == "" || configFile == filepath.Join(configDir, "config.yaml") {
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
		if configFile == "" {
			resolvedConfigFile = filepath.Join(configDir, "config.yaml")
		}
	} else {
		v.SetConfigFile(configFile)
	}

	if _, err := os.Stat(resolvedConfigFile); os.IsNotExist(err) {
		return nil, ErrConfigNotFound
	}

	// Environment variable overrides
	v.SetEnvPrefix("SLOTFILL")
	v.AutomaticEnv()

	_ = v.BindEnv("security.batch_mode", "SLOTFILL_BATCH_MODE")
	_ = v.BindEnv("security.auto_approve", "SLOTFILL_AUTO_APPROVE")
	_ = v.BindEnv("logging.level", "SLOTFILL_LOG_LEVEL")
	_ = v.BindEnv("logging.debug", "SLOTFILL_DEBUG")
	_ = v.BindEnv("storage.database", "SLOTFILL_DATABASE")

	if err := v.ReadInConfig(); err != nil {
		var vfnfError viper.ConfigFileNotFoundError
		if errors.As(err, &vfnfError) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file content: %w", err)
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyPathDefaults(configDir)
	return config, nil
}

// applyPathDefaults places unset file paths in the config directory
func (c *Config) applyPathDefaults(configDir string) {
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(configDir, "audit.log")
	}
	if c.Storage.Database == "" {
		c.Storage.Database = filepath.Join(configDir, "content.db")
	}
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	if c.Server.RateLimit.RequestsPerMinute < 0 || c.Server.RateLimit.RequestsPerHour < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	if c.Storage.StatsTTL <= 0 {
		return fmt.Errorf("storage.stats_ttl must be positive")
	}
	if c.Storage.StatsConcurrency < 1 {
		return fmt.Errorf("storage.stats_concurrency must be at least 1")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(configFile string) error {
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	v.Set("server.timeout", c.Server.Timeout)
	v.Set("server.rate_limit.requests_per_minute", c.Server.RateLimit.RequestsPerMinute)
	v.Set("server.rate_limit.requests_per_hour", c.Server.RateLimit.RequestsPerHour)
	v.Set("storage.database", c.Storage.Database)
	v.Set("storage.stats_ttl", c.Storage.StatsTTL)
	v.Set("storage.stats_concurrency", c.Storage.StatsConcurrency)
	v.Set("security.batch_mode", c.Security.BatchMode)
	v.Set("security.auto_approve", c.Security.AutoApprove)
	v.Set("security.confirmation_timeout", c.Security.ConfirmationTimeout)
	v.Set("logging.level", c.Logging.Level)
	v.Set("logging.file", c.Logging.File)
	v.Set("logging.debug", c.Logging.Debug)

	return v.WriteConfig()
}

// SaveDefault saves configuration to the default location
func (c *Config) SaveDefault() error {
	return c.Save("")
}

// getConfigDir returns the configuration directory
func getConfigDir() string {
	if configDir := os.Getenv("SLOTFILL_CONFIG_DIR"); configDir != "" {
		return configDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".slotfill")
	}

	return filepath.Join(homeDir, ".slotfill")
}

// GetConfigDir returns the configuration directory (exported)
func GetConfigDir() string {
	return getConfigDir()
}

// EnsureConfigDir ensures the configuration directory exists
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// LoadOrCreate loads existing config or creates a new one
func LoadOrCreate(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	cfg = DefaultConfig()
	cfg.applyPathDefaults(getConfigDir())

	finalConfigFile := configFile
	if finalConfigFile == "" || finalConfigFile == "config.yaml" {
		finalConfigFile = filepath.Join(getConfigDir(), "config.yaml")
	}

	if errSave := cfg.Save(finalConfigFile); errSave != nil {
		return nil, fmt.Errorf("failed to save default config to %s: %w", finalConfigFile, errSave)
	}
	return cfg, nil
}
