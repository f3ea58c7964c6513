package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "ESTATEHUB_"

type Config struct {
	App struct {
		Env      string `koanf:"env"`
		LogLevel string `koanf:"log_level"`
	} `koanf:"app"`

	HTTP struct {
		Host        string   `koanf:"host"`
		Port        int      `koanf:"port"`
		CORSOrigins []string `koanf:"cors_origins"`
		TrustProxy  bool     `koanf:"trust_proxy"`
	} `koanf:"http"`

	Database struct {
		Driver string `koanf:"driver"`
		URL    string `koanf:"url"`
	} `koanf:"database"`

	Auth struct {
		JWTSecret          string `koanf:"jwt_secret"`
		AccessTokenMinutes int    `koanf:"access_token_minutes"`
	} `koanf:"auth"`

	Messages struct {
		MaxLength int `koanf:"max_length"`
	} `koanf:"messages"`

	Inquiries struct {
		RatePerMinute int `koanf:"rate_per_minute"`
	} `koanf:"inquiries"`

	Kafka struct {
		Brokers []string `koanf:"brokers"`
		Topic   string   `koanf:"topic"`
	} `koanf:"kafka"`

	Notify struct {
		RedisAddr      string `koanf:"redis_addr"`
		EmailQueue     string `koanf:"email_queue"`
		QueueSize      int    `koanf:"queue_size"`
		TimeoutSeconds int    `koanf:"timeout_seconds"`
	} `koanf:"notify"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.env":                   "development",
		"app.log_level":             "info",
		"http.host":                 "0.0.0.0",
		"http.port":                 8000,
		"http.cors_origins":         []string{"http://localhost:3000", "http://localhost:5173"},
		"database.driver":           "sqlite",
		"database.url":              "estatehub.db",
		"auth.access_token_minutes": 60 * 24,
		"messages.max_length":       2000,
		"inquiries.rate_per_minute": 10,
		"kafka.topic":               "estatehub.events",
		"notify.email_queue":        "mail",
		"notify.queue_size":         256,
		"notify.timeout_seconds":    5,
	}
}

// Load layers defaults, the optional TOML file at path, then ESTATEHUB_* env vars.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ESTATEHUB_AUTH_JWT_SECRET to auth.jwt_secret: the first
// underscore separates the section, the rest belong to the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// splitList accepts both TOML arrays and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return errors.New("notify.timeout_seconds must be positive")
	}
	if c.Messages.MaxLength <= 0 {
		return errors.New("messages.max_length must be positive")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenMinutes) * time.Minute
}
