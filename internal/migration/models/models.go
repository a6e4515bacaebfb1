package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"eligo/internal/eligibility"
	"eligo/internal/eligibility/extract"
	id "eligo/pkg/domain"
)

// Score bands used when a scored result becomes a durable record.
const (
	EligibleScore         = 50
	PriorityOneScore      = 80
	PriorityTwoScore      = 60
	DefaultDurationMonths = 12

	ProvenanceSource = "simulator"
)

type RecordStatus string

const (
	StatusEligible    RecordStatus = "eligible"
	StatusNonEligible RecordStatus = "non_eligible"
)

// Account is the durable profile created for a migrated visitor.
type Account struct {
	ID              id.AccountID
	IdentityRef     id.IdentityRef
	Email           string
	DisplayName     string
	CompanyName     string
	Phone           string
	Address         string
	City            string
	PostalCode      string
	SIREN           string
	Sector          string
	EmployeeCount   int
	AnnualRevenue   int64
	CompanyAgeYears int
	PasswordHash    string
	SourceSessionID id.SessionID
	Metadata        map[string]string
	CreatedAt       time.Time
}

// EligibilityRecord is one migrated product outcome owned by an account.
// Provenance is a free-form blob; readers must tolerate unknown keys.
type EligibilityRecord struct {
	ID               id.RecordID
	AccountID        id.AccountID
	CatalogProductID id.CatalogProductID
	Status           RecordStatus
	NormalizedScore  float64
	EstimatedAmount  float64
	PriorityRank     int
	DurationMonths   int
	CurrentStep      int
	Progress         int
	Notes            string
	Provenance       map[string]string
	CreatedAt        time.Time
}

// Snapshot keeps the questionnaire as it was when the account was created.
type Snapshot struct {
	ID        uuid.UUID
	AccountID id.AccountID
	SessionID id.SessionID
	Answers   []extract.Answer
	Results   eligibility.Results
	CreatedAt time.Time
}

// NewRecord derives the durable record for a scored result.
func NewRecord(accountID id.AccountID, productID id.CatalogProductID, sessionID id.SessionID, result eligibility.Result, at time.Time) EligibilityRecord {
	return EligibilityRecord{
		ID:               id.RecordID(uuid.New()),
		AccountID:        accountID,
		CatalogProductID: productID,
		Status:           StatusFor(result.Score),
		NormalizedScore:  float64(result.Score) / 100,
		EstimatedAmount:  result.EstimatedAmount,
		PriorityRank:     PriorityFor(result.Score),
		DurationMonths:   DefaultDurationMonths,
		Notes:            fmt.Sprintf("Migrated from simulator - score %d%%, confidence %s", result.Score, result.Confidence),
		Provenance: map[string]string{
			"source":            ProvenanceSource,
			"source_session_id": sessionID.String(),
			"product_code":      result.ProductCode,
			"score":             fmt.Sprintf("%d", result.Score),
			"confidence":        string(result.Confidence),
			"migrated_at":       at.UTC().Format(time.RFC3339),
		},
		CreatedAt: at,
	}
}

func StatusFor(score int) RecordStatus {
	if score >= EligibleScore {
		return StatusEligible
	}
	return StatusNonEligible
}

func PriorityFor(score int) int {
	switch {
	case score >= PriorityOneScore:
		return 1
	case score >= PriorityTwoScore:
		return 2
	default:
		return 3
	}
}

type OutcomeStatus string

const (
	OutcomeMigrated        OutcomeStatus = "migrated"
	OutcomeAlreadyMigrated OutcomeStatus = "already_migrated"
)

// SkippedProduct is a result left out of the migration because its code
// could not be resolved against the live catalog.
type SkippedProduct struct {
	ProductCode string
	Reason      string
}

const (
	SkipUnmapped           = "unmapped"
	SkipCatalogUnavailable = "catalog_unavailable"
)

// Outcome is the result of a successful or short-circuited migration.
// AccountID is nil when a concurrent migration still holds the session.
type Outcome struct {
	Status              OutcomeStatus
	AccountID           id.AccountID
	MigratedRecordCount int
	SkippedProducts     []SkippedProduct
}

// ReconcileReport summarizes one pass over stale reservations.
type ReconcileReport struct {
	Released  int
	Finalized int
}
