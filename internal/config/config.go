// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package config loads and validates runtime configuration.
//
// Sources are merged with priority flags > environment > file > defaults.
// Environment variables use the QUILLBOARD_ prefix with underscores for
// nesting, e.g. QUILLBOARD_SERVER_LISTEN_ADDR.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "QUILLBOARD_"

// Config is the complete runtime configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Session       SessionConfig       `koanf:"session"`
	Security      SecurityConfig      `koanf:"security"`
	Icons         IconsConfig         `koanf:"icons"`
	Observability ObservabilityConfig `koanf:"observability"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `koanf:"listen_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures PostgreSQL connectivity. An empty URL selects
// the in-memory session store, for development only.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SessionConfig configures session lifetimes and the purge sweep.
type SessionConfig struct {
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	MaxLifetime   time.Duration `koanf:"max_lifetime"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

// SecurityConfig configures response headers and route classification.
type SecurityConfig struct {
	// AssetHosts are extra origins allowed by the CSP for styles and images.
	AssetHosts []string `koanf:"asset_hosts"`
	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds.
	HSTSMaxAge int `koanf:"hsts_max_age"`
	// PublicRoutes are glob patterns for paths reachable without a session.
	PublicRoutes []string `koanf:"public_routes"`
	// CookieSecure controls the Secure attribute on the session cookie.
	// Disable only for local plain-HTTP development.
	CookieSecure bool `koanf:"cookie_secure"`
}

// IconsConfig configures profile icon storage.
type IconsConfig struct {
	Dir string `koanf:"dir"`
}

// ObservabilityConfig configures the metrics/health listener.
type ObservabilityConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			MaxLifetime:   24 * time.Hour,
			PurgeInterval: 5 * time.Minute,
		},
		Security: SecurityConfig{
			HSTSMaxAge: 31536000,
			PublicRoutes: []string{
				"/",
				"/login",
				"/session",
				"/threads/**",
				"/icons/**",
				"/static/**",
			},
			CookieSecure: true,
		},
		Icons: IconsConfig{
			Dir: "data/icons",
		},
		Observability: ObservabilityConfig{
			ListenAddr: ":9090",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Load merges defaults, an optional YAML file, environment variables, and
// flags, then validates the result. path may be empty.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	// Defaults go in first so posflag can tell an unset flag apart from a
	// value that arrived from the file or the environment.
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, oops.Code("CONFIG_DEFAULTS_INVALID").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		// Only the section separator becomes a dot; key names keep their
		// underscores (SERVER_LISTEN_ADDR -> server.listen_addr).
		return strings.Replace(s, "_", ".", 1)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return Config{}, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.listen_addr is required")
	}
	if c.Session.IdleTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.idle_timeout must be positive")
	}
	if c.Session.MaxLifetime < c.Session.IdleTimeout {
		return oops.Code("CONFIG_INVALID").
			Errorf("session.max_lifetime must be at least session.idle_timeout")
	}
	if c.Security.HSTSMaxAge <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("security.hsts_max_age must be positive")
	}
	for _, host := range c.Security.AssetHosts {
		if err := validateAssetHost(host); err != nil {
			return err
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	return nil
}

func validateAssetHost(host string) error {
	trimmed := strings.TrimSpace(host)
	if trimmed == "" || trimmed != host {
		return oops.Code("CONFIG_INVALID").
			With("host", host).
			Errorf("security.asset_hosts entries must be non-empty without surrounding whitespace")
	}
	// Hosts end up inside the CSP header value; separators or control
	// characters would let one entry smuggle extra directives.
	if strings.ContainsAny(host, "; \t\n\r'\"") {
		return oops.Code("CONFIG_INVALID").
			With("host", host).
			Errorf("security.asset_hosts entry contains invalid characters")
	}
	return nil
}
