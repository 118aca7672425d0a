// Package config loads ordermgr settings from defaults, an optional config
// file, ORDERMGR_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/ordermgr/internal/obs"
)

// EnvPrefix prefixes every environment variable, e.g. ORDERMGR_DB_PATH
const EnvPrefix = "ORDERMGR"

// Config holds runtime settings
type Config struct {
	DBPath          string        `mapstructure:"db_path"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MCP             bool          `mapstructure:"mcp"`
	Seed            bool          `mapstructure:"seed"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// Defaults returns the built-in settings
func Defaults() Config {
	return Config{
		DBPath:          "ordermgr.db",
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,
		CORSOrigin:      "*",
	}
}

// Load resolves the configuration. configFile may be empty, in which case
// ordermgr.yaml is looked up in the working directory and its absence is not
// an error. flags may be nil; only flags the user actually set override
// lower layers.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("mcp", d.MCP)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("cors_origin", d.CORSOrigin)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("ordermgr")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		for _, key := range []string{"db_path", "http_addr", "log_level", "shutdown_timeout", "mcp", "seed", "cors_origin"} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path must not be empty")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http_addr must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if _, err := obs.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
