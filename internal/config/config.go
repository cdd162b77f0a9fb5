// Package config loads labelgrid's server configuration.
//
// Configuration is layered: built-in defaults, then an optional TOML file,
// then environment variables (a .env file is loaded first if present).
// Environment variables use the LABELGRID_ prefix and override everything.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Duration wraps time.Duration so TOML files can use "30s"/"5m" strings.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the full server configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Index     Index     `toml:"index"`
	Placement Placement `toml:"placement"`
	Session   Session   `toml:"session"`
	Cache     CacheCfg  `toml:"cache"`
	Log       Log       `toml:"log"`
}

// Server configures the HTTP boundary.
type Server struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `toml:"addr"`
	// APIKey enables bearer-token auth when non-empty. /healthz and
	// /metrics stay open.
	APIKey string `toml:"api_key"`
	// Stateless recomputes every place request against a fresh index and
	// serves repeats from the result cache instead of holding sessions.
	Stateless bool `toml:"stateless"`
}

// Index configures the spatial index fan-out.
type Index struct {
	MinEntries int `toml:"min_entries"`
	MaxEntries int `toml:"max_entries"`
}

// Placement configures candidate generation.
type Placement struct {
	CandidateCap       int     `toml:"candidate_cap"`
	PointGap           float64 `toml:"point_gap"`
	PolygonMaxFraction float64 `toml:"polygon_max_fraction"`
}

// Session configures session lifecycle limits.
type Session struct {
	TTL             Duration `toml:"ttl"`
	MaxSessions     int      `toml:"max_sessions"`
	JanitorInterval Duration `toml:"janitor_interval"`
}

// CacheCfg configures the placement result cache.
type CacheCfg struct {
	// Backend is one of "none", "file", "redis".
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
	TTL       Duration `toml:"ttl"`
}

// Log configures logging output.
type Log struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Index:  Index{MinEntries: 2, MaxEntries: 8},
		Placement: Placement{
			CandidateCap:       8,
			PointGap:           2.0,
			PolygonMaxFraction: 0.85,
		},
		Session: Session{
			TTL:             Duration{30 * time.Minute},
			MaxSessions:     256,
			JanitorInterval: Duration{time.Minute},
		},
		Cache: CacheCfg{
			Backend: "none",
			Dir:     "/var/cache/labelgrid",
			TTL:     Duration{5 * time.Minute},
		},
		Log: Log{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// the environment. An empty path skips the file layer.
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from LABELGRID_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("LABELGRID_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LABELGRID_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("LABELGRID_STATELESS"); v != "" {
		c.Server.Stateless = v == "1" || v == "true"
	}
	if v := os.Getenv("LABELGRID_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("LABELGRID_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("LABELGRID_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Session.TTL = Duration{d}
		}
	}
	if v := os.Getenv("LABELGRID_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.MaxSessions = n
		}
	}
	if v := os.Getenv("LABELGRID_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// validate rejects configurations the server cannot run with.
func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "", "none", "file", "redis":
	default:
		return fmt.Errorf("invalid cache backend %q (must be none, file, or redis)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache backend redis requires redis_addr")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}
