// Package config loads LogCrafter's full configuration surface (§6),
// ported from the teacher's pkg/config.Load style: viper defaults, an
// optional YAML file, environment overrides, and flag binding, merged
// in that precedence order (flags > env > file > defaults).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete LogCrafter runtime configuration.
type Config struct {
	LogPort  int `mapstructure:"log_port"`
	QueryPort int `mapstructure:"query_port"`

	IRC IRCConfig `mapstructure:"irc"`

	Persistence PersistenceConfig `mapstructure:"persistence"`

	BufferCapacity int `mapstructure:"buffer_capacity"`
	WorkerThreads  int `mapstructure:"worker_threads"`

	MaxClients            int           `mapstructure:"max_clients"`
	SelectTimeout         time.Duration `mapstructure:"select_timeout_ms"`
	MaxPendingConnections int           `mapstructure:"max_pending_connections"`

	LogLevel string `mapstructure:"log_level"`
}

// IRCConfig holds the optional IRC gateway's settings.
type IRCConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Port       int    `mapstructure:"port"`
	ServerName string `mapstructure:"server_name"`
	AutoJoin   string `mapstructure:"auto_join"`
}

// PersistenceConfig holds the optional durable-log-writer's settings.
type PersistenceConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Directory   string `mapstructure:"directory"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
	MaxFiles    int    `mapstructure:"max_files"`
}

// DefaultConfig returns the configuration spec.md §6 specifies when no
// file, environment variable, or flag overrides a setting.
func DefaultConfig() *Config {
	return &Config{
		LogPort:   9999,
		QueryPort: 9998,
		IRC: IRCConfig{
			Enabled:    false,
			Port:       6667,
			ServerName: "logcrafter",
			AutoJoin:   "#logs-all",
		},
		Persistence: PersistenceConfig{
			Enabled:     false,
			Directory:   "./logs",
			MaxFileSize: 10 * 1024 * 1024,
			MaxFiles:    10,
		},
		BufferCapacity:        10000,
		WorkerThreads:         4,
		MaxClients:            64,
		SelectTimeout:         500 * time.Millisecond,
		MaxPendingConnections: 32,
		LogLevel:              "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_port", d.LogPort)
	v.SetDefault("query_port", d.QueryPort)
	v.SetDefault("irc.enabled", d.IRC.Enabled)
	v.SetDefault("irc.port", d.IRC.Port)
	v.SetDefault("irc.server_name", d.IRC.ServerName)
	v.SetDefault("irc.auto_join", d.IRC.AutoJoin)
	v.SetDefault("persistence.enabled", d.Persistence.Enabled)
	v.SetDefault("persistence.directory", d.Persistence.Directory)
	v.SetDefault("persistence.max_file_size", d.Persistence.MaxFileSize)
	v.SetDefault("persistence.max_files", d.Persistence.MaxFiles)
	v.SetDefault("buffer_capacity", d.BufferCapacity)
	v.SetDefault("worker_threads", d.WorkerThreads)
	v.SetDefault("max_clients", d.MaxClients)
	v.SetDefault("select_timeout_ms", d.SelectTimeout)
	v.SetDefault("max_pending_connections", d.MaxPendingConnections)
	v.SetDefault("log_level", d.LogLevel)
}

// Load reads configuration from (in ascending precedence) built-in
// defaults, an optional logcrafter.yaml in the given directories, and
// LOGCRAFTER_-prefixed environment variables. v is typically
// viper.GetViper() from the cobra command's bound flag set, so flags
// already registered against it take highest precedence.
func Load(v *viper.Viper, configPaths ...string) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("logcrafter")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOGCRAFTER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that would leave a component unable
// to start, per spec.md §6's bounds on each setting.
func (c *Config) Validate() error {
	if c.LogPort <= 0 || c.LogPort > 65535 {
		return fmt.Errorf("log_port must be between 1 and 65535, got %d", c.LogPort)
	}
	if c.QueryPort <= 0 || c.QueryPort > 65535 {
		return fmt.Errorf("query_port must be between 1 and 65535, got %d", c.QueryPort)
	}
	if c.LogPort == c.QueryPort {
		return fmt.Errorf("log_port and query_port must differ, both are %d", c.LogPort)
	}
	if c.IRC.Enabled {
		if c.IRC.Port <= 0 || c.IRC.Port > 65535 {
			return fmt.Errorf("irc.port must be between 1 and 65535, got %d", c.IRC.Port)
		}
		if c.IRC.Port == c.LogPort || c.IRC.Port == c.QueryPort {
			return fmt.Errorf("irc.port %d collides with log_port/query_port", c.IRC.Port)
		}
		if c.IRC.ServerName == "" {
			return fmt.Errorf("irc.server_name must not be empty when irc.enabled is true")
		}
	}
	if c.Persistence.Enabled {
		if c.Persistence.Directory == "" {
			return fmt.Errorf("persistence.directory must not be empty when persistence.enabled is true")
		}
		if c.Persistence.MaxFileSize <= 0 {
			return fmt.Errorf("persistence.max_file_size must be positive")
		}
		if c.Persistence.MaxFiles <= 0 {
			return fmt.Errorf("persistence.max_files must be positive")
		}
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer_capacity must be positive, got %d", c.BufferCapacity)
	}
	if c.WorkerThreads <= 0 {
		return fmt.Errorf("worker_threads must be positive, got %d", c.WorkerThreads)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max_clients must be positive, got %d", c.MaxClients)
	}
	if c.MaxPendingConnections <= 0 {
		return fmt.Errorf("max_pending_connections must be positive, got %d", c.MaxPendingConnections)
	}
	if c.SelectTimeout <= 0 {
		return fmt.Errorf("select_timeout_ms must be positive")
	}
	return nil
}

// EnsurePersistenceDirectory creates the configured persistence
// directory if persistence is enabled and it does not already exist.
func (c *Config) EnsurePersistenceDirectory() error {
	if !c.Persistence.Enabled {
		return nil
	}
	return os.MkdirAll(c.Persistence.Directory, 0o755)
}
