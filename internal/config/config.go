// Package config loads FlowSync server configuration.
//
// Precedence: command-line flags (bound by the CLI) > FLOWSYNC_* environment
// variables > flowsync.yaml > built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the server's runtime settings.
type Config struct {
	ListenAddr       string        `mapstructure:"listen_addr"`
	DBPath           string        `mapstructure:"db_path"`
	TokenSecret      string        `mapstructure:"token_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	LogLevel         string        `mapstructure:"log_level"`
	TelemetryEnabled bool          `mapstructure:"telemetry_enabled"`
}

// Load reads configuration from file (optional), environment, and defaults.
// cfgFile may be empty, in which case flowsync.yaml is searched for in the
// working directory.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "flowsync.db")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("telemetry_enabled", false)

	v.SetEnvPrefix("FLOWSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("flowsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default config file is fine; an explicit one is not.
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
