// Package config loads journeyd configuration from YAML, environment
// variables, and defaults, in that order of increasing precedence for env
// vars over file values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full journeyd configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Listen        string        `mapstructure:"listen"`
	MetricsListen string        `mapstructure:"metrics_listen"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
}

// TrackingConfig carries the process-wide journey switch. When disabled, no
// Journey or Observer is ever created.
type TrackingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type StoreConfig struct {
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Clients get an API key generated and printed at startup.
	Clients []string      `mapstructure:"clients"`
	KeyTTL  time.Duration `mapstructure:"key_ttl"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type MirrorConfig struct {
	Target string  `mapstructure:"target"`
	Rate   float64 `mapstructure:"rate"`
}

type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.metrics_listen", ":9090")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("tracking.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("store.commit_interval", 10*time.Millisecond)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.key_ttl", 24*time.Hour)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("mirror.rate", 0.01)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.environment", "development")
}

// Load reads the configuration. path may be empty, in which case only
// defaults, ./journeyd.yaml (if present), and environment variables apply.
// Environment variables use the OPJOURNEY_ prefix with underscores, e.g.
// OPJOURNEY_TRACKING_ENABLED=false.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OPJOURNEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("journeyd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/journeyd")
		if err := v.ReadInConfig(); err != nil {
			// Missing config file is fine; defaults and env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Mirror.Rate < 0 || c.Mirror.Rate > 1 {
		return fmt.Errorf("mirror.rate %v out of range [0, 1]", c.Mirror.Rate)
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be positive when enabled")
	}
	if c.Auth.Enabled && len(c.Auth.Clients) == 0 {
		return fmt.Errorf("auth.enabled requires at least one client in auth.clients")
	}
	return nil
}
