package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete coedit configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Locks   LockConfig    `mapstructure:"locks"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the server endpoint and document limits
type ServerConfig struct {
	// ListenAddr is the host:port the WebSocket endpoint binds to
	ListenAddr string `mapstructure:"listen_addr"`
	// DocumentDir is the directory where documents are persisted.
	// Supports ~ for home directory expansion.
	DocumentDir string `mapstructure:"document_dir"`
	// MaxDocuments bounds how many documents may be open at once
	MaxDocuments int `mapstructure:"max_documents"`
}

// LockConfig controls line-lock idle eviction
type LockConfig struct {
	// IdleWindowSeconds is how long a lock may go untouched before the
	// eviction sweep releases it
	IdleWindowSeconds int `mapstructure:"idle_window_seconds"`
	// SweepIntervalSeconds is how often the eviction sweep runs
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory log files are written to.
	// If empty, defaults to the config directory.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// IdleWindow returns the eviction window as a duration
func (c *LockConfig) IdleWindow() time.Duration {
	return time.Duration(c.IdleWindowSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a duration
func (c *LockConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// ResolveDocumentDir returns the resolved document directory path.
// If DocumentDir starts with ~, it expands to the user's home directory.
func (s *ServerConfig) ResolveDocumentDir() string {
	path := s.DocumentDir
	if path == "" {
		return filepath.Join(ConfigDir(), "documents")
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// ResolveLogDir returns the directory log files are written to
func (l *LoggingConfig) ResolveLogDir() string {
	if l.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return l.Dir
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8090",
			DocumentDir:  "", // Resolved to the config directory
			MaxDocuments: 10,
		},
		Locks: LockConfig{
			IdleWindowSeconds:    5,
			SweepIntervalSeconds: 5,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers all default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.listen_addr", defaults.Server.ListenAddr)
	viper.SetDefault("server.document_dir", defaults.Server.DocumentDir)
	viper.SetDefault("server.max_documents", defaults.Server.MaxDocuments)

	// Lock defaults
	viper.SetDefault("locks.idle_window_seconds", defaults.Locks.IdleWindowSeconds)
	viper.SetDefault("locks.sweep_interval_seconds", defaults.Locks.SweepIntervalSeconds)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coedit")
	}
	// Fall back to ~/.config/coedit
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coedit"
	}
	return filepath.Join(home, ".config", "coedit")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
