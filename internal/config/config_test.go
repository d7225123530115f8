package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validEnv sets the minimum required env vars for a valid config.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/testdb")
}

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

// validConfig loads a config from ENV + defaults only.
func validConfig(t *testing.T) *Config {
	t.Helper()
	validEnv(t)
	cfg, err := LoadFrom(writeYAML(t, t.TempDir(), "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("load valid config: %v", err)
	}
	return cfg
}

const validYAML = `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: "5s"

database:
  dsn: "postgres://u:p@localhost:5432/testdb"
  max_conns: 10

store:
  driver: "postgres"

log:
  level: "debug"
  format: "text"

trust:
  min_votes: 4
  verify_ratio: 0.8

pulse:
  precision: 6
  radius_meters: 600

realtime:
  heartbeat_interval: "15s"
`

func TestLoad_ValidYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server.read_timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("database.max_conns = %d, want 10", cfg.Database.MaxConns)
	}
	if cfg.Trust.MinVotes != 4 {
		t.Errorf("trust.min_votes = %d, want 4", cfg.Trust.MinVotes)
	}
	if cfg.Trust.VerifyRatio != 0.8 {
		t.Errorf("trust.verify_ratio = %v, want 0.8", cfg.Trust.VerifyRatio)
	}
	if cfg.Pulse.Precision != 6 {
		t.Errorf("pulse.precision = %d, want 6", cfg.Pulse.Precision)
	}
	if cfg.Realtime.HeartbeatInterval != 15*time.Second {
		t.Errorf("realtime.heartbeat_interval = %v, want 15s", cfg.Realtime.HeartbeatInterval)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.Trust.DisputeRatio != 0.3 || cfg.Trust.VerifyRatio != 0.7 || cfg.Trust.MinVotes != 3 {
		t.Errorf("lifecycle thresholds = (%v, %v, %d), want (0.3, 0.7, 3)",
			cfg.Trust.DisputeRatio, cfg.Trust.VerifyRatio, cfg.Trust.MinVotes)
	}
	if cfg.Trust.SignalTTL != 24*time.Hour {
		t.Errorf("trust.signal_ttl = %v, want 24h", cfg.Trust.SignalTTL)
	}
	if cfg.Pulse.Precision != 7 || cfg.Pulse.RadiusMeters != 200 {
		t.Errorf("pulse grid = (%d, %v), want (7, 200)", cfg.Pulse.Precision, cfg.Pulse.RadiusMeters)
	}
	if cfg.Pulse.DecayFloor != 0.2 {
		t.Errorf("pulse.decay_floor = %v, want 0.2", cfg.Pulse.DecayFloor)
	}
	if cfg.Realtime.HeartbeatInterval != 30*time.Second {
		t.Errorf("realtime.heartbeat_interval = %v, want 30s", cfg.Realtime.HeartbeatInterval)
	}
	if cfg.RateLimit.AnonymousPerMinute != 60 || cfg.RateLimit.AuthenticatedPerMinute != 200 {
		t.Errorf("rate limits = (%d, %d), want (60, 200)",
			cfg.RateLimit.AnonymousPerMinute, cfg.RateLimit.AuthenticatedPerMinute)
	}
	if cfg.Insight.NightStartHour != 22 || cfg.Insight.NightEndHour != 6 || cfg.Insight.NightMultiplier != 1.3 {
		t.Errorf("night window = (%d, %d, %v), want (22, 6, 1.3)",
			cfg.Insight.NightStartHour, cfg.Insight.NightEndHour, cfg.Insight.NightMultiplier)
	}
	if cfg.Insight.ZonePrecision != 6 || cfg.Insight.ClusterPrecision != 7 {
		t.Errorf("insight precisions = (%d, %d), want (6, 7)", cfg.Insight.ZonePrecision, cfg.Insight.ClusterPrecision)
	}
	if cfg.Realtime.EventLogSize != 200 {
		t.Errorf("realtime.event_log_size = %d, want 200", cfg.Realtime.EventLogSize)
	}
}

func TestLoad_ENVOverridesYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), validYAML)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server.port = %d, want 3000 (ENV override)", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want %q (ENV override)", cfg.Log.Level, "warn")
	}
}

func TestLoad_NoFile_ENVOnly(t *testing.T) {
	validEnv(t)
	t.Setenv("CONFIG_PATH", "")

	origDir, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	_ = os.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080 (default)", cfg.Server.Port)
	}
}

func TestLoad_MemoryStoreNeedsNoDSN(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "store:\n  driver: memory\n")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("store.driver = %q, want memory", cfg.Store.Driver)
	}
}

func TestLoad_ExplicitPathNotFound(t *testing.T) {
	if _, err := LoadFrom("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), `{{{invalid yaml`)
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Database.DSN = "" }},
		{"min conns above max", func(c *Config) { c.Database.MinConns = c.Database.MaxConns + 1 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"dispute above verify", func(c *Config) { c.Trust.DisputeRatio = 0.8 }},
		{"zero prior strength", func(c *Config) { c.Trust.PriorStrength = 0 }},
		{"prior above one", func(c *Config) { c.Trust.NeutralTrust = 0.95 }},
		{"penalty above one", func(c *Config) { c.Abuse.VelocityPenalty = 1.5 }},
		{"negative blur", func(c *Config) { c.Abuse.BlurMeters = -1 }},
		{"precision too high", func(c *Config) { c.Pulse.Precision = 13 }},
		{"decay floor above one", func(c *Config) { c.Pulse.DecayFloor = 1.2 }},
		{"spike saturation below count", func(c *Config) { c.Pulse.SpikeSaturation = 5 }},
		{"zero heartbeat", func(c *Config) { c.Realtime.HeartbeatInterval = 0 }},
		{"zero send queue", func(c *Config) { c.Realtime.SendQueue = 0 }},
		{"zero janitor interval", func(c *Config) { c.Abuse.JanitorInterval = 0 }},
		{"zero event log", func(c *Config) { c.Realtime.EventLogSize = 0 }},
		{"night hour out of range", func(c *Config) { c.Insight.NightStartHour = 24 }},
		{"night multiplier below one", func(c *Config) { c.Insight.NightMultiplier = 0.5 }},
		{"medium zone above high", func(c *Config) { c.Insight.MediumZoneRisk = 0.7 }},
		{"zero cluster limit", func(c *Config) { c.Insight.MaxClusters = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_JWTSecretOptional(t *testing.T) {
	cfg := validConfig(t)
	cfg.Auth.JWTSecret = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty jwt secret should disable bearer auth, got %v", err)
	}
}

func TestLoad_MissingConfigPathFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("a file named by CONFIG_PATH must exist")
	}
}

func TestDescribe_ListsEnv(t *testing.T) {
	out, err := Describe()
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	for _, name := range []string{"DATABASE_DSN", "STORE_DRIVER", "REALTIME_HEARTBEAT_INTERVAL"} {
		if !strings.Contains(out, name) {
			t.Errorf("description missing %s", name)
		}
	}
}
