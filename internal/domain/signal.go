package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Signal is one anonymous, geolocated safety report.
type Signal struct {
	ID       uuid.UUID
	OwnerID  string
	Location Location
	TileKey  string
	Type     SignalType
	Severity int
	Context  map[string]string
	Status   SignalStatus

	TrueVotes       int
	FalseVotes      int
	TrustScore      float64
	ConfidenceScore float64
	SeverityWeight  float64
	AbuseFlags      []AbuseFlag

	DeletedByOwner bool
	DeleteReason   *string

	CreatedAt           time.Time
	LastActivityAt      time.Time
	ExpiresAt           time.Time
	VoteWindowExpiresAt time.Time
	VerifiedAt          *time.Time
	DisputedAt          *time.Time

	// Version is the sync version at which the signal last changed.
	Version uint64
}

// TotalVotes returns the number of recorded votes.
func (s *Signal) TotalVotes() int {
	return s.TrueVotes + s.FalseVotes
}

// IsActive reports whether the signal contributes to aggregation at now.
// A signal past ExpiresAt is inactive even if its status was not updated yet.
func (s *Signal) IsActive(now time.Time) bool {
	if !slices.Contains(ActiveStatuses, s.Status) {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// HasFlag reports whether the given abuse flag is attached.
func (s *Signal) HasFlag(f AbuseFlag) bool {
	return slices.Contains(s.AbuseFlags, f)
}

// Clone returns a deep copy so callers can mutate it without aliasing.
func (s Signal) Clone() Signal {
	c := s
	c.Context = maps.Clone(s.Context)
	c.AbuseFlags = slices.Clone(s.AbuseFlags)
	if s.DeleteReason != nil {
		r := *s.DeleteReason
		c.DeleteReason = &r
	}
	if s.VerifiedAt != nil {
		t := *s.VerifiedAt
		c.VerifiedAt = &t
	}
	if s.DisputedAt != nil {
		t := *s.DisputedAt
		c.DisputedAt = &t
	}
	return c
}

// Vote is one identity's judgment on a signal's accuracy.
type Vote struct {
	SignalID uuid.UUID
	VoterID  string
	IsTrue   bool
	CastAt   time.Time
}

// SignalFilter selects signals for listing.
type SignalFilter struct {
	Area Area
	// CreatedAfter limits results to signals created after this moment.
	CreatedAfter *time.Time
	// ActiveAt, when set, keeps only signals active at that moment.
	ActiveAt *time.Time
	Limit    int
}

// VersionRange selects signals changed in (After, UpTo].
type VersionRange struct {
	After uint64
	UpTo  uint64
}
