package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres store")
		}
		if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("database: need 0 <= min_conns <= max_conns and max_conns > 0 (got %d, %d)",
				c.Database.MinConns, c.Database.MaxConns)
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory (got %q)", c.Store.Driver)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}

	if err := c.Trust.validate(); err != nil {
		return fmt.Errorf("trust: %w", err)
	}
	if err := c.Abuse.validate(); err != nil {
		return fmt.Errorf("abuse: %w", err)
	}
	if err := c.Pulse.validate(); err != nil {
		return fmt.Errorf("pulse: %w", err)
	}
	if err := c.Realtime.validate(); err != nil {
		return fmt.Errorf("realtime: %w", err)
	}
	if err := c.Insight.validate(); err != nil {
		return fmt.Errorf("insight: %w", err)
	}

	return nil
}

func (t *TrustConfig) validate() error {
	if t.NeutralTrust < 0 || t.NeutralTrust+t.LowSeverityBonus > 1 {
		return fmt.Errorf("neutral_trust + low_severity_bonus must stay within [0,1]")
	}
	if t.PriorStrength <= 0 {
		return fmt.Errorf("prior_strength must be > 0 (got %v)", t.PriorStrength)
	}
	if t.ConfidenceSaturation <= 0 {
		return fmt.Errorf("confidence_saturation must be > 0 (got %d)", t.ConfidenceSaturation)
	}
	if t.MediumConfidenceAt <= 0 || t.MediumConfidenceAt > t.ConfidenceSaturation {
		return fmt.Errorf("medium_confidence_at must be in (0, confidence_saturation]")
	}
	if t.DisputeRatio >= t.VerifyRatio {
		return fmt.Errorf("dispute_ratio (%v) must be below verify_ratio (%v)", t.DisputeRatio, t.VerifyRatio)
	}
	if t.SignalTTL <= 0 || t.VoteWindow <= 0 {
		return fmt.Errorf("signal_ttl and vote_window must be positive")
	}
	return nil
}

func (a *AbuseConfig) validate() error {
	if a.MaxSubmissions <= 0 || a.SubmissionWindow <= 0 {
		return fmt.Errorf("max_submissions and submission_window must be positive")
	}
	if a.MaxVotes <= 0 || a.VoteWindow <= 0 {
		return fmt.Errorf("max_votes and vote_window must be positive")
	}
	for name, p := range map[string]float64{
		"velocity_penalty":  a.VelocityPenalty,
		"frequency_penalty": a.FrequencyPenalty,
		"rapid_penalty":     a.RapidPenalty,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0,1] (got %v)", name, p)
		}
	}
	if a.JanitorInterval <= 0 {
		return fmt.Errorf("janitor_interval must be positive")
	}
	if a.BlurMeters < 0 {
		return fmt.Errorf("blur_meters must be >= 0 (got %v)", a.BlurMeters)
	}
	return nil
}

func (p *PulseConfig) validate() error {
	if p.Precision < 1 || p.Precision > 12 {
		return fmt.Errorf("precision must be in [1,12] (got %d)", p.Precision)
	}
	if p.Saturation <= 0 {
		return fmt.Errorf("saturation must be > 0 (got %v)", p.Saturation)
	}
	if p.DecayFloor < 0 || p.DecayFloor > 1 {
		return fmt.Errorf("decay_floor must be in [0,1] (got %v)", p.DecayFloor)
	}
	if p.DecayWindow <= 0 {
		return fmt.Errorf("decay_window must be positive")
	}
	if p.SpikeCount <= 0 || p.SpikeSaturation < p.SpikeCount {
		return fmt.Errorf("spike_saturation must be >= spike_count > 0")
	}
	return nil
}

func (r *RealtimeConfig) validate() error {
	if r.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if r.SendQueue <= 0 {
		return fmt.Errorf("send_queue must be > 0 (got %d)", r.SendQueue)
	}
	if r.ExpiryInterval <= 0 {
		return fmt.Errorf("expiry_interval must be positive")
	}
	if r.EventLogSize <= 0 {
		return fmt.Errorf("event_log_size must be > 0 (got %d)", r.EventLogSize)
	}
	return nil
}

func (i *InsightConfig) validate() error {
	for name, h := range map[string]int{"night_start_hour": i.NightStartHour, "night_end_hour": i.NightEndHour} {
		if h < 0 || h > 23 {
			return fmt.Errorf("%s must be in [0,23] (got %d)", name, h)
		}
	}
	if i.NightMultiplier < 1 {
		return fmt.Errorf("night_multiplier must be >= 1 (got %v)", i.NightMultiplier)
	}
	if i.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if i.ZonePrecision < 1 || i.ZonePrecision > 12 || i.ClusterPrecision < 1 || i.ClusterPrecision > 12 {
		return fmt.Errorf("zone_precision and cluster_precision must be in [1,12]")
	}
	if i.MediumZoneRisk <= 0 || i.MediumZoneRisk > i.HighZoneRisk || i.HighZoneRisk > 1 {
		return fmt.Errorf("need 0 < medium_zone_risk <= high_zone_risk <= 1")
	}
	if i.MaxZones <= 0 || i.MaxClusters <= 0 || i.MinClusterSize < 1 {
		return fmt.Errorf("max_zones, max_clusters and min_cluster_size must be positive")
	}
	return nil
}
