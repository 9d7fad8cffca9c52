// Package config loads quill's settings from defaults, an optional YAML
// file and QUILL_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. QUILL_SERVER_ADDR.
const EnvPrefix = "QUILL"

// Storage drivers.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Comments CommentsConfig `mapstructure:"comments"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type BadgerConfig struct {
	// Path is the data directory. Empty keeps everything in memory.
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CommentsConfig struct {
	RatePerMinute float64 `mapstructure:"rate_per_minute"`
	Burst         int     `mapstructure:"burst"`
}

var defaults = map[string]any{
	"server.addr":                ":8080",
	"server.read_timeout":        "15s",
	"server.write_timeout":       "15s",
	"server.shutdown_timeout":    "10s",
	"storage.driver":             DriverBadger,
	"storage.badger.path":        "data/badger",
	"storage.postgres.url":       "",
	"storage.postgres.max_conns": 10,
	"auth.jwt_secret":            "",
	"auth.token_ttl":             "168h",
	"log.level":                  "info",
	"log.format":                 "text",
	"comments.rate_per_minute":   10,
	"comments.burst":             5,
}

// Load reads the configuration. When file is empty an optional quill.yaml
// in the working directory is used.
func Load(file string) (*Config, error) {
	vp := viper.New()
	for key, value := range defaults {
		vp.SetDefault(key, value)
	}

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if file != "" {
		vp.SetConfigFile(file)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		vp.SetConfigName("quill")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		if err := vp.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read quill.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverBadger:
	case DriverPostgres:
		if c.Storage.Postgres.URL == "" {
			errs = append(errs, errors.New("storage.postgres.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters; run `quill init` to generate one"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Comments.RatePerMinute < 0 {
		errs = append(errs, errors.New("comments.rate_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", l.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log.format %q", l.Format)
}

// WriteFile writes a complete config file at path holding the defaults and
// the given secret. Existing files are only replaced when overwrite is set.
func WriteFile(path, jwtSecret string, overwrite bool) error {
	vp := viper.New()
	for key, value := range defaults {
		vp.Set(key, value)
	}
	vp.Set("auth.jwt_secret", jwtSecret)
	vp.SetConfigType("yaml")

	if overwrite {
		return vp.WriteConfigAs(path)
	}
	return vp.SafeWriteConfigAs(path)
}
