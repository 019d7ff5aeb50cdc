// Package config loads pledger settings from defaults, an optional YAML
// file, PLEDGER_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: PLEDGER_DB, PLEDGER_LOCK_BACKEND.
const EnvPrefix = "PLEDGER"

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config is the resolved configuration.
type Config struct {
	DB     string      `mapstructure:"db"`
	Listen string      `mapstructure:"listen"`
	Log    LogConfig   `mapstructure:"log"`
	Lock   LockConfig  `mapstructure:"lock"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

type LockConfig struct {
	Backend string        `mapstructure:"backend"` // memory, redis
	TTL     time.Duration `mapstructure:"ttl"`
	Retry   time.Duration `mapstructure:"retry"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// New returns a viper instance with defaults and environment binding set.
// Callers bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("db", "pledger.db")
	v.SetDefault("listen", ":3001")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("lock.backend", LockMemory)
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.retry", 50*time.Millisecond)
	v.SetDefault("redis.url", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values and cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	switch c.Lock.Backend {
	case LockMemory:
	case LockRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required when lock.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("lock.backend %q must be memory or redis", c.Lock.Backend))
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, fmt.Errorf("lock.ttl must be positive, got %s", c.Lock.TTL))
	}
	if c.Lock.Retry <= 0 {
		errs = append(errs, fmt.Errorf("lock.retry must be positive, got %s", c.Lock.Retry))
	}
	return errors.Join(errs...)
}
