// Package config provides configuration management for mcphost using Viper.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/thoreinstein/mcphost/internal/paths"
)

// AppName is the application name used for config file naming.
const AppName = "mcphost"

// Config represents the top-level configuration structure.
type Config struct {
	Version     int    `mapstructure:"version" yaml:"version"`
	InstallRoot string `mapstructure:"install_root" yaml:"install_root"`

	Client  ClientConfig  `mapstructure:"client" yaml:"client"`
	Install InstallConfig `mapstructure:"install" yaml:"install"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ClientConfig tunes per-peer RPC and reconnection behavior.
type ClientConfig struct {
	CallTimeout          time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
}

// InstallConfig tunes the installer pipeline.
type InstallConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
	BuildTimeout   time.Duration `mapstructure:"build_timeout" yaml:"build_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	AllowHighRisk  bool          `mapstructure:"allow_high_risk" yaml:"allow_high_risk"`
}

// EventsConfig tunes the host event stream.
type EventsConfig struct {
	Buffer     int  `mapstructure:"buffer" yaml:"buffer"`
	DropPolicy bool `mapstructure:"drop_policy" yaml:"drop_policy"`
}

// LogConfig tunes logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(paths.ConfigHome(), AppName))

	viper.SetEnvPrefix("MCPHOST")
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("install_root", "")
	viper.SetDefault("client.call_timeout", 30*time.Second)
	viper.SetDefault("client.shutdown_timeout", 5*time.Second)
	viper.SetDefault("client.max_reconnect_attempts", 3)
	viper.SetDefault("client.reconnect_delay", 2*time.Second)
	viper.SetDefault("install.command_timeout", 5*time.Minute)
	viper.SetDefault("install.build_timeout", 10*time.Minute)
	viper.SetDefault("install.cache_ttl", 7*24*time.Hour)
	viper.SetDefault("install.max_retries", 3)
	viper.SetDefault("install.allow_high_risk", false)
	viper.SetDefault("events.buffer", 64)
	viper.SetDefault("events.drop_policy", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if path != "" {
				return nil, fmt.Errorf("config file not found at %s: %w", path, err)
			}
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() string {
	return filepath.Join(paths.ConfigHome(), AppName, "config.yaml")
}
