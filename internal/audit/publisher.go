package audit

import (
	"context"
	"log/slog"

	audit "eligo/pkg/platform/audit"
	"eligo/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
}

func NewPublisher(store audit.Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{store: store, logger: logger}
}

// Emit stamps the event with the request time, request ID and category, then
// appends it. When ctx carries a transaction the append joins it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Category = event.Action.Category()

	p.logger.DebugContext(ctx, "audit event",
		"action", event.Action,
		"category", event.Category,
		"session_id", event.SessionID,
		"account_id", event.AccountID,
	)
	return p.store.Append(ctx, event)
}
