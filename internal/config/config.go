package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Trust     TrustConfig     `yaml:"trust"`
	Abuse     AbuseConfig     `yaml:"abuse"`
	Pulse     PulseConfig     `yaml:"pulse"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Insight   InsightConfig   `yaml:"insight"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type,X-Device-Hash"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	// SlowQuery logs statements slower than this at warn level. Zero disables.
	SlowQuery time.Duration `yaml:"slow_query" env:"DATABASE_SLOW_QUERY" env-default:"250ms"`
}

// StoreConfig selects the signal store backend: "postgres" or "memory".
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
}

// AuthConfig holds bearer token and identity hashing settings.
// An empty JWTSecret disables bearer identities; clients then identify
// with the X-Device-Hash header only.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"       env:"AUTH_JWT_SECRET"`
	JWTIssuer      string        `yaml:"jwt_issuer"       env:"AUTH_JWT_ISSUER"       env-default:"safety-pulse"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"AUTH_ACCESS_TOKEN_TTL" env-default:"24h"`
	IdentitySalt   string        `yaml:"identity_salt"    env:"AUTH_IDENTITY_SALT"    env-default:"safety-pulse-identity"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// RateLimitConfig holds per-identity HTTP request budgets.
type RateLimitConfig struct {
	AnonymousPerMinute     int           `yaml:"anonymous_per_minute"     env:"RATE_LIMIT_ANONYMOUS"        env-default:"60"`
	AuthenticatedPerMinute int           `yaml:"authenticated_per_minute" env:"RATE_LIMIT_AUTHENTICATED"    env-default:"200"`
	CleanupInterval        time.Duration `yaml:"cleanup_interval"         env:"RATE_LIMIT_CLEANUP_INTERVAL" env-default:"1m"`
}

// TrustConfig holds trust scoring and lifecycle parameters.
type TrustConfig struct {
	// NeutralTrust is the prior for a maximum-severity signal.
	NeutralTrust float64 `yaml:"neutral_trust" env:"TRUST_NEUTRAL" env-default:"0.5"`
	// LowSeverityBonus is added to the prior as severity decreases.
	LowSeverityBonus float64 `yaml:"low_severity_bonus" env:"TRUST_LOW_SEVERITY_BONUS" env-default:"0.125"`
	// PriorStrength is the number of pseudo-votes backing the prior.
	PriorStrength        float64       `yaml:"prior_strength"        env:"TRUST_PRIOR_STRENGTH"        env-default:"3"`
	ConfidenceSaturation int           `yaml:"confidence_saturation" env:"TRUST_CONFIDENCE_SATURATION" env-default:"10"`
	MediumConfidenceAt   int           `yaml:"medium_confidence_at"  env:"TRUST_MEDIUM_CONFIDENCE_AT"  env-default:"3"`
	MinVotes             int           `yaml:"min_votes"             env:"TRUST_MIN_VOTES"             env-default:"3"`
	VerifyRatio          float64       `yaml:"verify_ratio"          env:"TRUST_VERIFY_RATIO"          env-default:"0.7"`
	DisputeRatio         float64       `yaml:"dispute_ratio"         env:"TRUST_DISPUTE_RATIO"         env-default:"0.3"`
	SignalTTL            time.Duration `yaml:"signal_ttl"            env:"TRUST_SIGNAL_TTL"            env-default:"24h"`
	VoteWindow           time.Duration `yaml:"vote_window"           env:"TRUST_VOTE_WINDOW"           env-default:"72h"`
	// ProtectedConfidence shields verified signals from owner deletion.
	ProtectedConfidence float64 `yaml:"protected_confidence" env:"TRUST_PROTECTED_CONFIDENCE" env-default:"0.7"`
}

// AbuseConfig holds submission budgets and anomaly heuristics.
type AbuseConfig struct {
	MaxSubmissions   int           `yaml:"max_submissions"   env:"ABUSE_MAX_SUBMISSIONS"   env-default:"5"`
	SubmissionWindow time.Duration `yaml:"submission_window" env:"ABUSE_SUBMISSION_WINDOW" env-default:"1m"`
	MaxVotes         int           `yaml:"max_votes"         env:"ABUSE_MAX_VOTES"         env-default:"30"`
	VoteWindow       time.Duration `yaml:"vote_window"       env:"ABUSE_VOTE_WINDOW"       env-default:"1m"`
	MaxSpeedKmh      float64       `yaml:"max_speed_kmh"     env:"ABUSE_MAX_SPEED_KMH"     env-default:"300"`
	BurstCount       int           `yaml:"burst_count"       env:"ABUSE_BURST_COUNT"       env-default:"5"`
	BurstWindow      time.Duration `yaml:"burst_window"      env:"ABUSE_BURST_WINDOW"      env-default:"10m"`
	RapidGap         time.Duration `yaml:"rapid_gap"         env:"ABUSE_RAPID_GAP"         env-default:"10s"`
	VelocityPenalty  float64       `yaml:"velocity_penalty"  env:"ABUSE_VELOCITY_PENALTY"  env-default:"0.5"`
	FrequencyPenalty float64       `yaml:"frequency_penalty" env:"ABUSE_FREQUENCY_PENALTY" env-default:"0.8"`
	RapidPenalty     float64       `yaml:"rapid_penalty"     env:"ABUSE_RAPID_PENALTY"     env-default:"0.8"`
	BlurMeters       float64       `yaml:"blur_meters"       env:"ABUSE_BLUR_METERS"       env-default:"50"`
	DeleteCooldown   time.Duration `yaml:"delete_cooldown"   env:"ABUSE_DELETE_COOLDOWN"   env-default:"1h"`
	JanitorInterval  time.Duration `yaml:"janitor_interval"  env:"ABUSE_JANITOR_INTERVAL"  env-default:"5m"`
}

// PulseConfig holds tile aggregation parameters.
type PulseConfig struct {
	Precision          uint          `yaml:"precision"           env:"PULSE_PRECISION"           env-default:"7"`
	RadiusMeters       float64       `yaml:"radius_meters"       env:"PULSE_RADIUS_METERS"       env-default:"200"`
	Saturation         float64       `yaml:"saturation"          env:"PULSE_SATURATION"          env-default:"10"`
	DecayWindow        time.Duration `yaml:"decay_window"        env:"PULSE_DECAY_WINDOW"        env-default:"24h"`
	DecayFloor         float64       `yaml:"decay_floor"         env:"PULSE_DECAY_FLOOR"         env-default:"0.2"`
	CorroborationTrust float64       `yaml:"corroboration_trust" env:"PULSE_CORROBORATION_TRUST" env-default:"0.6"`
	SpikeCount         int           `yaml:"spike_count"         env:"PULSE_SPIKE_COUNT"         env-default:"10"`
	SpikeWindow        time.Duration `yaml:"spike_window"        env:"PULSE_SPIKE_WINDOW"        env-default:"30m"`
	SpikeSaturation    int           `yaml:"spike_saturation"    env:"PULSE_SPIKE_SATURATION"    env-default:"20"`
	MaxTombstones      int           `yaml:"max_tombstones"      env:"PULSE_MAX_TOMBSTONES"      env-default:"10000"`
}

// RealtimeConfig holds push and polling settings.
type RealtimeConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"REALTIME_HEARTBEAT_INTERVAL" env-default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout"      env:"REALTIME_WRITE_TIMEOUT"      env-default:"10s"`
	SendQueue         int           `yaml:"send_queue"         env:"REALTIME_SEND_QUEUE"         env-default:"64"`
	MaxMessageBytes   int64         `yaml:"max_message_bytes"  env:"REALTIME_MAX_MESSAGE_BYTES"  env-default:"4096"`
	AlertRadiusKm     float64       `yaml:"alert_radius_km"    env:"REALTIME_ALERT_RADIUS_KM"    env-default:"2"`
	ExpiryInterval    time.Duration `yaml:"expiry_interval"    env:"REALTIME_EXPIRY_INTERVAL"    env-default:"1m"`
	EventLogSize      int           `yaml:"event_log_size"     env:"REALTIME_EVENT_LOG_SIZE"     env-default:"200"`
}

// InsightConfig holds the heuristic area reads: time-of-day risk, risk
// zones and report clusters. Hours are UTC.
type InsightConfig struct {
	NightStartHour   int           `yaml:"night_start_hour"   env:"INSIGHT_NIGHT_START_HOUR"   env-default:"22"`
	NightEndHour     int           `yaml:"night_end_hour"     env:"INSIGHT_NIGHT_END_HOUR"     env-default:"6"`
	NightMultiplier  float64       `yaml:"night_multiplier"   env:"INSIGHT_NIGHT_MULTIPLIER"   env-default:"1.3"`
	Lookback         time.Duration `yaml:"lookback"           env:"INSIGHT_LOOKBACK"           env-default:"24h"`
	ZonePrecision    uint          `yaml:"zone_precision"     env:"INSIGHT_ZONE_PRECISION"     env-default:"6"`
	HighZoneRisk     float64       `yaml:"high_zone_risk"     env:"INSIGHT_HIGH_ZONE_RISK"     env-default:"0.6"`
	MediumZoneRisk   float64       `yaml:"medium_zone_risk"   env:"INSIGHT_MEDIUM_ZONE_RISK"   env-default:"0.4"`
	MaxZones         int           `yaml:"max_zones"          env:"INSIGHT_MAX_ZONES"          env-default:"10"`
	ClusterPrecision uint          `yaml:"cluster_precision"  env:"INSIGHT_CLUSTER_PRECISION"  env-default:"7"`
	MinClusterSize   int           `yaml:"min_cluster_size"   env:"INSIGHT_MIN_CLUSTER_SIZE"   env-default:"2"`
	MaxClusters      int           `yaml:"max_clusters"       env:"INSIGHT_MAX_CLUSTERS"       env-default:"50"`
}
