package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"eligo/internal/simulation/models"
	id "eligo/pkg/domain"
	"eligo/pkg/platform/sentinel"
)

// InMemoryStore is the development and test session store. Every mutation is
// a compare-and-set under one mutex, mirroring the conditional updates of
// the Postgres store.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[id.SessionID]*models.TemporarySession
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*models.TemporarySession)}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.TemporarySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = clone(session)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.TemporarySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(session), nil
}

func (s *InMemoryStore) Abandon(_ context.Context, sessionID id.SessionID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Migrated || session.AbandonedAt != nil {
		return sentinel.ErrInvalidState
	}
	session.AbandonedAt = &at
	session.AbandonReason = reason
	return nil
}

func (s *InMemoryStore) Reserve(_ context.Context, sessionID id.SessionID, token uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Migrated || session.ReservedBy != nil {
		return sentinel.ErrConflict
	}
	session.ReservedBy = &token
	session.ReservedAt = &at
	return nil
}

func (s *InMemoryStore) Release(_ context.Context, sessionID id.SessionID, token uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Migrated || session.ReservedBy == nil || *session.ReservedBy != token {
		return sentinel.ErrConflict
	}
	session.ReservedBy = nil
	session.ReservedAt = nil
	session.ReservedIdentity = ""
	return nil
}

func (s *InMemoryStore) RecordIdentity(_ context.Context, sessionID id.SessionID, token uuid.UUID, ref id.IdentityRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Migrated || session.ReservedBy == nil || *session.ReservedBy != token {
		return sentinel.ErrConflict
	}
	session.ReservedIdentity = ref
	return nil
}

func (s *InMemoryStore) MarkMigrated(_ context.Context, sessionID id.SessionID, token uuid.UUID, accountID id.AccountID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.Migrated || session.ReservedBy == nil || *session.ReservedBy != token {
		return sentinel.ErrConflict
	}
	session.Migrated = true
	session.MigratedAt = &at
	session.AccountID = &accountID
	session.ReservedBy = nil
	session.ReservedAt = nil
	session.ReservedIdentity = ""
	return nil
}

func (s *InMemoryStore) ListStaleReservations(_ context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, session := range s.sessions {
		if !session.IsReserved() || !session.ReservedAt.Before(before) {
			continue
		}
		out = append(out, models.Reservation{
			SessionID:   session.ID,
			Token:       *session.ReservedBy,
			ReservedAt:  *session.ReservedAt,
			IdentityRef: session.ReservedIdentity,
		})
	}
	slices.SortFunc(out, func(a, b models.Reservation) int { return a.ReservedAt.Compare(b.ReservedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, session := range s.sessions {
		if !session.Migrated && session.ReservedBy == nil && session.ExpiresAt.Before(before) {
			delete(s.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) DeleteMigrated(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, session := range s.sessions {
		if session.Migrated && session.MigratedAt != nil && session.MigratedAt.Before(before) {
			delete(s.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) Stats(_ context.Context, since time.Time) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats models.Stats
	for _, session := range s.sessions {
		if session.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		if session.Completed {
			stats.Completed++
		}
		if session.Migrated {
			stats.Migrated++
		}
		if session.AbandonedAt != nil {
			stats.Abandoned++
		}
	}
	stats.ComputeConversion()
	return stats, nil
}

func clone(src *models.TemporarySession) *models.TemporarySession {
	dst := *src
	dst.Answers = slices.Clone(src.Answers)
	dst.Results = slices.Clone(src.Results)
	dst.Profile.VehicleTypes = slices.Clone(src.Profile.VehicleTypes)
	dst.Profile.FuelTypes = slices.Clone(src.Profile.FuelTypes)
	if src.AbandonedAt != nil {
		v := *src.AbandonedAt
		dst.AbandonedAt = &v
	}
	if src.ReservedBy != nil {
		v := *src.ReservedBy
		dst.ReservedBy = &v
	}
	if src.ReservedAt != nil {
		v := *src.ReservedAt
		dst.ReservedAt = &v
	}
	if src.MigratedAt != nil {
		v := *src.MigratedAt
		dst.MigratedAt = &v
	}
	if src.AccountID != nil {
		v := *src.AccountID
		dst.AccountID = &v
	}
	return &dst
}
