package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is one serialized event waiting to be relayed to the broker.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// OutboxSource is read by the relay worker.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Payload is the JSON published to the broker.
type Payload struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Timestamp  string            `json:"timestamp"`
	Action     string            `json:"action"`
	SessionID  string            `json:"session_id,omitempty"`
	AccountID  string            `json:"account_id,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewOutboxEntry serializes event. The aggregate is the account when known,
// then the session, so a consumer can partition per owner.
func NewOutboxEntry(event Event) (OutboxEntry, error) {
	entryID := uuid.New()
	payload := Payload{
		ID:         entryID.String(),
		Category:   string(event.Action.Category()),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:     string(event.Action),
		Subject:    event.Subject,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		Attributes: event.Attributes,
	}
	aggregateID := entryID.String()
	if !event.SessionID.IsNil() {
		payload.SessionID = event.SessionID.String()
		aggregateID = payload.SessionID
	}
	if !event.AccountID.IsNil() {
		payload.AccountID = event.AccountID.String()
		aggregateID = payload.AccountID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxEntry{}, err
	}
	return OutboxEntry{
		ID:          entryID,
		AggregateID: aggregateID,
		EventType:   string(event.Action),
		Payload:     data,
		CreatedAt:   event.Timestamp,
	}, nil
}
