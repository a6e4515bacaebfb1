package handler

import (
	"time"

	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
	"eligo/internal/simulation/models"
)

type CreateSessionResponse struct {
	SessionID   string               `json:"session_id"`
	ExpiresAt   time.Time            `json:"expires_at"`
	AccessToken string               `json:"access_token"`
	Results     []eligibility.Result `json:"results"`
}

func fromCreated(c *models.Created) CreateSessionResponse {
	return CreateSessionResponse{
		SessionID:   c.SessionID.String(),
		ExpiresAt:   c.ExpiresAt,
		AccessToken: c.AccessToken,
		Results:     nonNil(c.Results),
	}
}

// SessionResponse is the session payload returned to the token holder. Client
// metadata and reservation state stay server-side.
type SessionResponse struct {
	SessionID  string                    `json:"session_id"`
	Answers    []extract.Answer          `json:"answers"`
	Results    []eligibility.Result      `json:"results"`
	Company    extract.CompanyAttributes `json:"company"`
	Completed  bool                      `json:"completed"`
	Abandoned  bool                      `json:"abandoned"`
	Migrated   bool                      `json:"migrated"`
	CreatedAt  time.Time                 `json:"created_at"`
	ExpiresAt  time.Time                 `json:"expires_at"`
	MigratedAt *time.Time                `json:"migrated_at,omitempty"`
}

func fromSession(s *models.TemporarySession) SessionResponse {
	return SessionResponse{
		SessionID:  s.ID.String(),
		Answers:    s.Answers,
		Results:    nonNil(s.Results),
		Company:    s.Company,
		Completed:  s.Completed,
		Abandoned:  s.IsAbandoned(),
		Migrated:   s.Migrated,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		MigratedAt: s.MigratedAt,
	}
}

type StatsResponse struct {
	Since          time.Time `json:"since"`
	Total          int       `json:"total"`
	Completed      int       `json:"completed"`
	Migrated       int       `json:"migrated"`
	Abandoned      int       `json:"abandoned"`
	ConversionRate float64   `json:"conversion_rate"`
}

func nonNil(rs eligibility.Results) []eligibility.Result {
	if rs == nil {
		return []eligibility.Result{}
	}
	return rs
}
