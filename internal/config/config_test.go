package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labelgrid.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Session.TTL.Duration != 30*time.Minute {
		t.Errorf("TTL = %v, want 30m", cfg.Session.TTL.Duration)
	}
	if cfg.Placement.CandidateCap != 8 || cfg.Placement.PointGap != 2.0 {
		t.Errorf("placement defaults = %+v", cfg.Placement)
	}
	if cfg.Cache.Backend != "none" {
		t.Errorf("cache backend = %q, want none", cfg.Cache.Backend)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"
api_key = "secret"
stateless = true

[index]
min_entries = 3
max_entries = 12

[placement]
candidate_cap = 6
point_gap = 1.5

[session]
ttl = "5m"
max_sessions = 32
janitor_interval = "30s"

[cache]
backend = "file"
dir = "/tmp/lg-cache"
ttl = "90s"

[log]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.APIKey != "secret" || !cfg.Server.Stateless {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Index.MinEntries != 3 || cfg.Index.MaxEntries != 12 {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Placement.CandidateCap != 6 || cfg.Placement.PointGap != 1.5 {
		t.Errorf("placement = %+v", cfg.Placement)
	}
	if cfg.Session.TTL.Duration != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", cfg.Session.TTL.Duration)
	}
	if cfg.Session.JanitorInterval.Duration != 30*time.Second {
		t.Errorf("janitor = %v, want 30s", cfg.Session.JanitorInterval.Duration)
	}
	if cfg.Cache.Backend != "file" || cfg.Cache.TTL.Duration != 90*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}

	// File values the TOML omits keep their defaults.
	if cfg.Placement.PolygonMaxFraction != 0.85 {
		t.Errorf("polygon fraction = %v, want default 0.85", cfg.Placement.PolygonMaxFraction)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"
`)
	t.Setenv("LABELGRID_ADDR", ":7070")
	t.Setenv("LABELGRID_SESSION_TTL", "2m")
	t.Setenv("LABELGRID_MAX_SESSIONS", "8")
	t.Setenv("LABELGRID_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Addr = %q, env should win over file", cfg.Server.Addr)
	}
	if cfg.Session.TTL.Duration != 2*time.Minute {
		t.Errorf("TTL = %v, want 2m", cfg.Session.TTL.Duration)
	}
	if cfg.Session.MaxSessions != 8 {
		t.Errorf("MaxSessions = %d, want 8", cfg.Session.MaxSessions)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "[cache]\nbackend = \"memcached\"\n")); err == nil {
		t.Error("unknown cache backend should be rejected")
	}
	if _, err := Load(writeConfig(t, "[cache]\nbackend = \"redis\"\n")); err == nil {
		t.Error("redis backend without an address should be rejected")
	}
	if _, err := Load(writeConfig(t, "[log]\nlevel = \"loud\"\n")); err == nil {
		t.Error("unknown log level should be rejected")
	}
	if _, err := Load(writeConfig(t, "[session]\nttl = \"eleven minutes\"\n")); err == nil {
		t.Error("malformed duration should be rejected")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing config file should be rejected")
	}
}
