package domain

// SignalType is the reason a signal was reported.
type SignalType string

const (
	SignalTypeFollowed           SignalType = "followed"
	SignalTypeSuspiciousActivity SignalType = "suspicious_activity"
	SignalTypeHarassment         SignalType = "harassment"
	SignalTypeUnsafeArea         SignalType = "unsafe_area"
	SignalTypeOther              SignalType = "other"
)

func (t SignalType) String() string { return string(t) }

func (t SignalType) IsValid() bool {
	switch t {
	case SignalTypeFollowed, SignalTypeSuspiciousActivity, SignalTypeHarassment,
		SignalTypeUnsafeArea, SignalTypeOther:
		return true
	}
	return false
}

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	SignalStatusPending  SignalStatus = "pending"
	SignalStatusVerified SignalStatus = "verified"
	SignalStatusDisputed SignalStatus = "disputed"
	SignalStatusExpired  SignalStatus = "expired"
	SignalStatusDeleted  SignalStatus = "deleted"
)

func (s SignalStatus) String() string { return string(s) }

func (s SignalStatus) IsValid() bool {
	switch s {
	case SignalStatusPending, SignalStatusVerified, SignalStatusDisputed,
		SignalStatusExpired, SignalStatusDeleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SignalStatus) IsTerminal() bool {
	return s == SignalStatusExpired || s == SignalStatusDeleted
}

// ActiveStatuses are the statuses that contribute to aggregation.
var ActiveStatuses = []SignalStatus{
	SignalStatusPending,
	SignalStatusVerified,
	SignalStatusDisputed,
}

// AbuseFlag is a heuristic marker attached to a suspicious submission.
type AbuseFlag string

const (
	AbuseFlagImprobableVelocity AbuseFlag = "improbable_velocity"
	AbuseFlagHighFrequency      AbuseFlag = "high_frequency"
	AbuseFlagRapidSubmission    AbuseFlag = "rapid_submission"
)

func (f AbuseFlag) String() string { return string(f) }

// ConfidenceLabel is the coarse corroboration level of a signal or tile.
type ConfidenceLabel string

const (
	ConfidenceLow    ConfidenceLabel = "LOW"
	ConfidenceMedium ConfidenceLabel = "MEDIUM"
	ConfidenceHigh   ConfidenceLabel = "HIGH"
)

func (c ConfidenceLabel) String() string { return string(c) }

func (c ConfidenceLabel) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}
