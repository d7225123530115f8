package trust

import (
	"time"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// NextStatus moves a pending signal to verified or disputed once enough
// votes agree. Verified and disputed are sticky: later votes change scores
// but never flip the status back, so transitions stay monotone.
func (s *Scorer) NextStatus(sig domain.Signal, now time.Time) domain.Signal {
	if sig.Status != domain.SignalStatusPending {
		return sig
	}
	total := sig.TotalVotes()
	if total < s.cfg.MinVotes {
		return sig
	}

	ratio := float64(sig.TrueVotes) / float64(total)
	switch {
	case ratio >= s.cfg.VerifyRatio:
		sig.Status = domain.SignalStatusVerified
		sig.VerifiedAt = &now
	case ratio <= s.cfg.DisputeRatio:
		sig.Status = domain.SignalStatusDisputed
		sig.DisputedAt = &now
	}
	return sig
}

// Expire marks sig expired if now has reached its expiry. Deleted signals
// and already expired ones are returned unchanged.
func (s *Scorer) Expire(sig domain.Signal, now time.Time) (domain.Signal, bool) {
	if sig.Status.IsTerminal() || now.Before(sig.ExpiresAt) {
		return sig, false
	}
	sig.Status = domain.SignalStatusExpired
	return sig, true
}

// CheckVotable returns a ConflictError when voterID may not vote on sig at now.
func (s *Scorer) CheckVotable(sig domain.Signal, voterID string, now time.Time) error {
	switch {
	case sig.Status.IsTerminal() || !now.Before(sig.ExpiresAt):
		return domain.NewConflictError(domain.ConflictSignalClosed, "signal is no longer active")
	case !now.Before(sig.VoteWindowExpiresAt):
		return domain.NewConflictError(domain.ConflictVoteWindowClosed, "voting period has ended")
	case sig.OwnerID == voterID:
		return domain.NewConflictError(domain.ConflictOwnSignal, "cannot vote on your own report")
	}
	return nil
}

// CheckDeletable returns a ConflictError when ownerID may not delete sig at
// now. Expired and deleted signals are final, and verified signals with strong
// community backing are protected.
func (s *Scorer) CheckDeletable(sig domain.Signal, ownerID string, now time.Time) error {
	switch {
	case sig.Status.IsTerminal() || !now.Before(sig.ExpiresAt):
		return domain.NewConflictError(domain.ConflictSignalClosed, "signal is no longer active")
	case sig.OwnerID != ownerID:
		return domain.NewConflictError(domain.ConflictNotOwner, "only the reporter can delete this signal")
	case sig.Status == domain.SignalStatusVerified && sig.ConfidenceScore >= s.cfg.ProtectedConfidence:
		return domain.NewConflictError(domain.ConflictProtectedSignal, "verified reports with high confidence cannot be deleted")
	}
	return nil
}

// NewSignalTimes returns (expiresAt, voteWindowExpiresAt) for a signal created at createdAt.
func (s *Scorer) NewSignalTimes(createdAt time.Time) (time.Time, time.Time) {
	return createdAt.Add(s.cfg.SignalTTL), createdAt.Add(s.cfg.VoteWindow)
}
