package models

import (
	"time"

	"github.com/google/uuid"

	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
	id "eligo/pkg/domain"
)

// TemporarySession holds one anonymous questionnaire run and its scored
// results until the visitor registers or the session expires.
//
// Invariants:
//   - Answers, Results, Profile and Company are written once at creation
//   - ExpiresAt is checked on every read, independently of the access token
//   - Migrated only moves false → true, through a conditional update
//   - ReservedBy is set only while Migrated is false
//   - ReservedIdentity is the login identity created under the current
//     reservation, cleared with it
type TemporarySession struct {
	ID          id.SessionID
	Answers     []extract.Answer
	Results     eligibility.Results
	Profile     eligibility.AttributeProfile
	Company     extract.CompanyAttributes
	ClientIP    string
	UserAgent   string
	DeviceLabel string
	Completed   bool
	CreatedAt   time.Time
	ExpiresAt   time.Time

	AbandonedAt   *time.Time
	AbandonReason string

	ReservedBy       *uuid.UUID
	ReservedAt       *time.Time
	ReservedIdentity id.IdentityRef

	Migrated   bool
	MigratedAt *time.Time
	AccountID  *id.AccountID
}

// IsExpired reports whether the session row is past its own expiry.
func (s *TemporarySession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *TemporarySession) IsAbandoned() bool {
	return s.AbandonedAt != nil
}

// IsReserved reports whether a migration currently holds the session.
func (s *TemporarySession) IsReserved() bool {
	return s.ReservedBy != nil && !s.Migrated
}

// Created is returned to the visitor after a simulation run.
type Created struct {
	SessionID   id.SessionID
	ExpiresAt   time.Time
	AccessToken string
	Results     eligibility.Results
}

// Stats summarizes simulator conversion since a point in time.
type Stats struct {
	Total          int
	Completed      int
	Migrated       int
	Abandoned      int
	ConversionRate float64
}

// ComputeConversion sets ConversionRate as the share of completed sessions
// that were migrated, in percent rounded to one decimal.
func (s *Stats) ComputeConversion() {
	if s.Completed == 0 {
		s.ConversionRate = 0
		return
	}
	rate := float64(s.Migrated) / float64(s.Completed) * 100
	s.ConversionRate = float64(int(rate*10+0.5)) / 10
}

// SweepReport counts rows removed by one housekeeping pass.
type SweepReport struct {
	ExpiredDeleted  int
	MigratedDeleted int
}

// Reservation identifies a migration lease on a session.
type Reservation struct {
	SessionID   id.SessionID
	Token       uuid.UUID
	ReservedAt  time.Time
	IdentityRef id.IdentityRef
}
