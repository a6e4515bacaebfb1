package audit

import (
	"context"
	"time"

	id "eligo/pkg/domain"
)

// EventCategory drives retention and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers account creation and anything touching
	// personal data. Written through the outbox inside the business transaction.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers simulation traffic and housekeeping.
	CategoryOperations EventCategory = "operations"
)

// AuditEvent names an action.
type AuditEvent string

const (
	EventSimulationCreated    AuditEvent = "simulation_session_created"
	EventSimulationAbandoned  AuditEvent = "simulation_session_abandoned"
	EventHighEligibility      AuditEvent = "high_eligibility_detected"
	EventAccountMigrated      AuditEvent = "account_migrated"
	EventMigrationCompensated AuditEvent = "account_migration_compensated"
	EventReservationReleased  AuditEvent = "migration_reservation_released"
	EventReservationFinalized AuditEvent = "migration_reservation_finalized"
	EventSessionsPurged       AuditEvent = "simulation_sessions_purged"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccountMigrated:      CategoryCompliance,
	EventMigrationCompensated: CategoryCompliance,
	EventReservationFinalized: CategoryCompliance,
}

// Category returns the category for e; unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	Action     AuditEvent
	SessionID  id.SessionID
	AccountID  id.AccountID
	Subject    string
	Reason     string
	RequestID  string
	Attributes map[string]string
}

// Store appends events. Implementations must honor a transaction carried
// in ctx (see pkg/platform/tx) so compliance events commit atomically with
// the business write.
type Store interface {
	Append(ctx context.Context, event Event) error
}
