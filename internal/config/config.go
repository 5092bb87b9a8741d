package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
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
		TTL  string `yaml:"ttl"`
		Seed *bool  `yaml:"seed"`
	} `yaml:"quiz"`
	Session struct {
		Backend          string `yaml:"backend"`
		TTL              string `yaml:"ttl"`
		CodeLength       int    `yaml:"code_length"`
		MaxUpdateRetries int    `yaml:"max_update_retries"`
	} `yaml:"session"`
	Game struct {
		RequirePlayersToStart *bool             `yaml:"require_players_to_start"`
		FixedSessions         map[string]string `yaml:"fixed_sessions"`
	} `yaml:"game"`
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SessionBackend returns the configured session store, inferring redis when
// only redis.addr is set.
func (c Config) SessionBackend() string {
	switch b := strings.ToLower(strings.TrimSpace(c.Session.Backend)); b {
	case "":
		if c.Redis.Addr != "" {
			return BackendRedis
		}
		return BackendMemory
	default:
		return b
	}
}

// SeedSampleQuizzes reports whether sample quizzes are loaded at startup (default true).
func (c Config) SeedSampleQuizzes() bool {
	return c.Quiz.Seed == nil || *c.Quiz.Seed
}

// RequirePlayersToStart reports whether a lobby needs a player before it can start (default true).
func (c Config) RequirePlayersToStart() bool {
	return c.Game.RequirePlayersToStart == nil || *c.Game.RequirePlayersToStart
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
