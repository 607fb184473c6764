// Package config loads process configuration from environment variables,
// in the style the example lineage uses for its own services: struct tags
// read by cleanenv, validated by go-playground/validator once populated.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/kestrelapi/ratelimiter/engine"
)

// Config is the full set of environment-driven process settings.
type Config struct {
	StoreDriver string `env:"STORE_DRIVER" env-default:"memory" validate:"oneof=memory mongo"`
	MongoURI    string `env:"MONGO_URI"`

	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`
	GRPCAddr string `env:"GRPC_ADDR"`

	DefaultAlgorithm     string  `env:"DEFAULT_ALGORITHM" env-default:"token_bucket"`
	DefaultMaxRequests   int64   `env:"DEFAULT_MAX_REQUESTS" env-default:"100" validate:"gt=0"`
	DefaultWindowSeconds float64 `env:"DEFAULT_WINDOW_SECONDS" env-default:"60" validate:"gt=0"`
}

// Load reads Config from the process environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: reading environment: %w", err)
	}
	if cfg.StoreDriver == "mongo" && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("config: MONGO_URI is required when STORE_DRIVER=mongo")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// DefaultInstanceConfig builds the engine.RateLimitConfig the Decision
// Gateway synthesizes for apiKeys that have no stored config, from the
// DEFAULT_* environment overrides.
func (c Config) DefaultInstanceConfig() (engine.RateLimitConfig, error) {
	cfg := engine.RateLimitConfig{
		Algorithm:     engine.Algorithm(c.DefaultAlgorithm),
		MaxRequests:   c.DefaultMaxRequests,
		WindowSeconds: c.DefaultWindowSeconds,
	}
	if err := cfg.Algorithm.Validate(); err != nil {
		return engine.RateLimitConfig{}, err
	}
	return cfg, nil
}
