// Package memory is an in-process signal store used for development and
// tests. It implements the same contracts as the postgres adapter.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/safety-pulse/internal/domain"
)

// Store holds signals, votes and tile records in maps.
type Store struct {
	mu      sync.RWMutex
	signals map[uuid.UUID]domain.Signal
	votes   map[uuid.UUID]map[string]domain.Vote
	tiles   map[string]domain.TileRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		signals: make(map[uuid.UUID]domain.Signal),
		votes:   make(map[uuid.UUID]map[string]domain.Vote),
		tiles:   make(map[string]domain.TileRecord),
	}
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

func (s *Store) GetSignal(_ context.Context, id uuid.UUID) (domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[id]
	if !ok {
		return domain.Signal{}, fmt.Errorf("signal %s: %w", id, domain.ErrNotFound)
	}
	return sig.Clone(), nil
}

func (s *Store) CreateSignal(ctx context.Context, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.signals[sig.ID]; ok {
		return fmt.Errorf("signal %s: %w", sig.ID, domain.ErrAlreadyExists)
	}
	s.signals[sig.ID] = sig.Clone()
	record(ctx, func() {
		s.mu.Lock()
		delete(s.signals, sig.ID)
		s.mu.Unlock()
	})
	return nil
}

func (s *Store) UpdateSignal(ctx context.Context, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.signals[sig.ID]
	if !ok {
		return fmt.Errorf("signal %s: %w", sig.ID, domain.ErrNotFound)
	}
	s.signals[sig.ID] = sig.Clone()
	record(ctx, func() {
		s.mu.Lock()
		s.signals[sig.ID] = prev
		s.mu.Unlock()
	})
	return nil
}

// ListSignals returns signals matching filter, newest first.
func (s *Store) ListSignals(_ context.Context, filter domain.SignalFilter) ([]domain.Signal, error) {
	out := s.collect(func(sig *domain.Signal) bool {
		if filter.CreatedAfter != nil && !sig.CreatedAt.After(*filter.CreatedAfter) {
			return false
		}
		if filter.ActiveAt != nil && !sig.IsActive(*filter.ActiveAt) {
			return false
		}
		return filter.Area.Contains(sig.Location)
	})
	slices.SortFunc(out, func(a, b domain.Signal) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListTileSignals returns the signals of a tile that are active at activeAt.
func (s *Store) ListTileSignals(_ context.Context, tileKey string, activeAt time.Time) ([]domain.Signal, error) {
	return s.collect(func(sig *domain.Signal) bool {
		return sig.TileKey == tileKey && sig.IsActive(activeAt)
	}), nil
}

// ListExpiring returns non-terminal signals whose expiry has passed, oldest
// expiry first.
func (s *Store) ListExpiring(_ context.Context, now time.Time, limit int) ([]domain.Signal, error) {
	out := s.collect(func(sig *domain.Signal) bool {
		return !sig.Status.IsTerminal() && !now.Before(sig.ExpiresAt)
	})
	slices.SortFunc(out, func(a, b domain.Signal) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListChangedSignals returns signals in area whose version is within r,
// ordered by version.
func (s *Store) ListChangedSignals(_ context.Context, area domain.Area, r domain.VersionRange) ([]domain.Signal, error) {
	out := s.collect(func(sig *domain.Signal) bool {
		return sig.Version > r.After && sig.Version <= r.UpTo && area.Contains(sig.Location)
	})
	slices.SortFunc(out, func(a, b domain.Signal) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

func (s *Store) collect(keep func(*domain.Signal) bool) []domain.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Signal{}
	for _, sig := range s.signals {
		if keep(&sig) {
			out = append(out, sig.Clone())
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Votes
// ---------------------------------------------------------------------------

func (s *Store) GetVote(_ context.Context, signalID uuid.UUID, voterID string) (domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votes[signalID][voterID]
	if !ok {
		return domain.Vote{}, fmt.Errorf("vote %s: %w", signalID, domain.ErrNotFound)
	}
	return v, nil
}

func (s *Store) CreateVote(ctx context.Context, v domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.signals[v.SignalID]; !ok {
		return fmt.Errorf("vote %s: %w", v.SignalID, domain.ErrNotFound)
	}
	byVoter := s.votes[v.SignalID]
	if _, ok := byVoter[v.VoterID]; ok {
		return fmt.Errorf("vote %s: %w", v.SignalID, domain.ErrAlreadyExists)
	}
	if byVoter == nil {
		byVoter = make(map[string]domain.Vote)
		s.votes[v.SignalID] = byVoter
	}
	byVoter[v.VoterID] = v
	record(ctx, func() {
		s.mu.Lock()
		delete(s.votes[v.SignalID], v.VoterID)
		s.mu.Unlock()
	})
	return nil
}

func (s *Store) DeleteVote(ctx context.Context, signalID uuid.UUID, voterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.votes[signalID][voterID]
	if !ok {
		return fmt.Errorf("vote %s: %w", signalID, domain.ErrNotFound)
	}
	delete(s.votes[signalID], voterID)
	record(ctx, func() {
		s.mu.Lock()
		if s.votes[signalID] == nil {
			s.votes[signalID] = make(map[string]domain.Vote)
		}
		s.votes[signalID][voterID] = v
		s.mu.Unlock()
	})
	return nil
}

// DeleteVotes removes every vote of a signal and returns how many there were.
func (s *Store) DeleteVotes(ctx context.Context, signalID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.votes[signalID]
	delete(s.votes, signalID)
	record(ctx, func() {
		s.mu.Lock()
		if prev != nil {
			s.votes[signalID] = prev
		}
		s.mu.Unlock()
	})
	return len(prev), nil
}

// ListVotes returns the votes of a signal ordered by cast time.
func (s *Store) ListVotes(_ context.Context, signalID uuid.UUID) ([]domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Vote, 0, len(s.votes[signalID]))
	for _, v := range s.votes[signalID] {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b domain.Vote) int {
		if c := a.CastAt.Compare(b.CastAt); c != 0 {
			return c
		}
		return cmp.Compare(a.VoterID, b.VoterID)
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// Tiles
// ---------------------------------------------------------------------------

func (s *Store) UpsertTile(ctx context.Context, rec domain.TileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Tile.TileKey
	prev, existed := s.tiles[key]
	s.tiles[key] = rec
	record(ctx, func() {
		s.mu.Lock()
		if existed {
			s.tiles[key] = prev
		} else {
			delete(s.tiles, key)
		}
		s.mu.Unlock()
	})
	return nil
}

// ListTiles returns every tile record ordered by key.
func (s *Store) ListTiles(_ context.Context) ([]domain.TileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TileRecord, 0, len(s.tiles))
	for _, rec := range s.tiles {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.TileRecord) int { return cmp.Compare(a.Tile.TileKey, b.Tile.TileKey) })
	return out, nil
}
