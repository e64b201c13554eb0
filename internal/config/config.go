package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v = viper.New()

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	v = viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/trace-sentinel/")
	v.AddConfigPath("$HOME/.trace-sentinel/")

	// Environment variable overrides
	v.SetEnvPrefix("SENTINEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Whitelist.Source {
	case "none", "":
	case "file":
		if config.Whitelist.File.Path == "" {
			return fmt.Errorf("whitelist file source requires a path")
		}
	case "s3":
		if config.Whitelist.S3.Bucket == "" || config.Whitelist.S3.Key == "" {
			return fmt.Errorf("whitelist s3 source requires a bucket and key")
		}
	case "redis":
		if config.Whitelist.Redis.URL == "" || config.Whitelist.Redis.Key == "" {
			return fmt.Errorf("whitelist redis source requires a url and key")
		}
	case "postgres":
		if config.Whitelist.Postgres.DatabaseURL == "" || config.Whitelist.Postgres.Table == "" {
			return fmt.Errorf("whitelist postgres source requires a database_url and table")
		}
	default:
		return fmt.Errorf("invalid whitelist source: %s (must be none, file, s3, redis, or postgres)", config.Whitelist.Source)
	}

	if config.Whitelist.TTL <= 0 {
		return fmt.Errorf("invalid whitelist ttl: %s", config.Whitelist.TTL)
	}

	if config.Recorder.Enabled && config.Recorder.Interval <= 0 {
		return fmt.Errorf("invalid recorder interval: %s", config.Recorder.Interval)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMin)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Invalid
// updates are reported to onError and otherwise ignored.
func Watch(callback func(*Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()
}
