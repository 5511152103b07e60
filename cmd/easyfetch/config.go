package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/always-cache/easyfetch"
	"github.com/always-cache/easyfetch/cache"
	cachekey "github.com/always-cache/easyfetch/pkg/cache-key"
	responsetransformer "github.com/always-cache/easyfetch/pkg/response-transformer"
	"github.com/always-cache/easyfetch/request"
	"github.com/always-cache/easyfetch/scheduler"
)

// Config is read from a YAML file, then overridden by EASYFETCH_*
// environment variables, then by flags.
type Config struct {
	// Store is one of "memory", "sqlite" or "postgres".
	Store       string `yaml:"store" envconfig:"STORE"`
	DB          string `yaml:"db" envconfig:"DB"`
	DatabaseURL string `yaml:"databaseUrl" envconfig:"DATABASE_URL"`

	Namespace  string   `yaml:"namespace" envconfig:"NAMESPACE"`
	KeyHeaders []string `yaml:"keyHeaders" envconfig:"KEY_HEADERS"`

	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxRetries        int           `yaml:"maxRetries" envconfig:"MAX_RETRIES"`
	BackoffMultiplier float64       `yaml:"backoffMultiplier" envconfig:"BACKOFF_MULTIPLIER"`

	Workers                 int     `yaml:"workers" envconfig:"WORKERS"`
	RateLimit               float64 `yaml:"rateLimit" envconfig:"RATE_LIMIT"`
	UserAgent               string  `yaml:"userAgent" envconfig:"USER_AGENT"`
	AllowNonIdempotentRetry bool    `yaml:"allowNonIdempotentRetry" envconfig:"ALLOW_NON_IDEMPOTENT_RETRY"`

	Admin AdminConfig `yaml:"admin" ignored:"true"`
	// Rules adjust origin Cache-Control before responses are cached.
	Rules responsetransformer.Rules `yaml:"rules" ignored:"true"`
}

type AdminConfig struct {
	Addr string `yaml:"addr" envconfig:"ADMIN_ADDR"`
}

func defaultConfig() Config {
	sc := scheduler.DefaultConfig()
	return Config{
		Store:             "sqlite",
		DB:                "cache.db",
		Namespace:         "easyfetch",
		Timeout:           request.DefaultTimeout,
		MaxRetries:        request.DefaultMaxRetries,
		BackoffMultiplier: request.DefaultBackoffMultiplier,
		Workers:           sc.Workers,
		UserAgent:         sc.UserAgent,
		Admin:             AdminConfig{Addr: ":8080"},
	}
}

func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	if err := envconfig.Process("EASYFETCH", &config); err != nil {
		return config, fmt.Errorf("read environment: %w", err)
	}
	// admin settings use EASYFETCH_ADMIN_*
	if err := envconfig.Process("EASYFETCH", &config.Admin); err != nil {
		return config, fmt.Errorf("read environment: %w", err)
	}
	return config, nil
}

// closer is implemented by the SQL backed stores.
type closer interface {
	Close() error
}

func (c Config) openStore() (cache.Store, error) {
	switch c.Store {
	case "memory":
		return cache.NewMemCache(), nil
	case "sqlite":
		db := c.DB
		if db == "memory" {
			db = "file::memory:?cache=shared"
		}
		return cache.NewSQLiteCache(db), nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("databaseUrl is required for the postgres store")
		}
		return cache.NewPostgresCache(c.DatabaseURL), nil
	}
	return nil, fmt.Errorf("unsupported cache store: %s", c.Store)
}

func (c Config) keyer() cachekey.CacheKeyer {
	return cachekey.NewCacheKeyer(c.Namespace, c.KeyHeaders...)
}

func (c Config) clientConfig(store cache.Store) easyfetch.Config {
	sc := scheduler.DefaultConfig()
	sc.Workers = c.Workers
	sc.RateLimit = c.RateLimit
	sc.UserAgent = c.UserAgent
	sc.AllowNonIdempotentRetry = c.AllowNonIdempotentRetry
	if len(c.Rules) > 0 {
		sc.ResponseModifier = c.Rules.Apply
	}
	logger := appLogger()
	return easyfetch.Config{
		Store:           store,
		Keyer:           c.keyer(),
		SchedulerConfig: &sc,
		Logger:          &logger,
		Retry: request.RetryPolicy{
			Timeout:           c.Timeout,
			MaxRetries:        c.MaxRetries,
			BackoffMultiplier: c.BackoffMultiplier,
		},
	}
}
