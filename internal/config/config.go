// Package config loads server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig selects the store. Driver is "sqlite" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LedgerConfig tunes the expense ledger.
type LedgerConfig struct {
	MaxWriteRetries int `mapstructure:"max_write_retries"`
}

// Load reads configuration from defaults, an optional TOML file and the
// environment, in increasing order of precedence. The file is taken from
// TRIPLEDGER_CONFIG, or ./tripledger.toml when that is unset. Env var
// overrides use prefix TRIPLEDGER_, e.g. TRIPLEDGER_SERVER_PORT.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tripledger.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("ledger.max_write_retries", 5)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("TRIPLEDGER_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tripledger")
	}

	v.SetEnvPrefix("TRIPLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit one must exist and parse.
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks that the configuration can start a server.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, memory", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (set TRIPLEDGER_AUTH_JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Ledger.MaxWriteRetries < 1 {
		return fmt.Errorf("ledger.max_write_retries must be at least 1, got %d", c.Ledger.MaxWriteRetries)
	}
	return nil
}
