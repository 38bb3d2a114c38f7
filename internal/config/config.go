package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	StrategyReadModifyWrite = "read-modify-write"
	StrategyTransactional   = "transactional"

	DefaultMaxRetries = 10
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Backend  string `yaml:"backend" validate:"omitempty,oneof=memory redis postgres"`
		Strategy string `yaml:"strategy" validate:"omitempty,oneof=read-modify-write transactional"`
		// MaxRetries is nil when unset; an explicit 0 means a single attempt.
		MaxRetries *int `yaml:"maxRetries" validate:"omitempty,min=0"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Room struct {
		MaxPlayers int `yaml:"maxPlayers" validate:"min=0,max=100"`
		MinPlayers int `yaml:"minPlayers" validate:"min=0"`
	} `yaml:"room"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path, fills defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		switch {
		case c.Redis.Addr != "":
			c.Store.Backend = BackendRedis
		case c.Postgres.URL != "":
			c.Store.Backend = BackendPostgres
		default:
			c.Store.Backend = BackendMemory
		}
	}
	if c.Store.Strategy == "" {
		c.Store.Strategy = StrategyReadModifyWrite
	}
	if c.Store.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.Store.MaxRetries = &retries
	}
}

// Validate checks enumerations and that the selected backend is configured.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Store.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("invalid config: store.backend redis needs redis.addr")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("invalid config: store.backend postgres needs postgres.url")
		}
	}
	if c.Room.MaxPlayers > 0 && c.Room.MinPlayers > c.Room.MaxPlayers {
		return fmt.Errorf("invalid config: room.minPlayers %d exceeds room.maxPlayers %d", c.Room.MinPlayers, c.Room.MaxPlayers)
	}
	return nil
}

// StoreMaxRetries returns the configured conflict retry budget.
func (c Config) StoreMaxRetries() int {
	if c.Store.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.Store.MaxRetries
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
