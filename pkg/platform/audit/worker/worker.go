package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "eligo/pkg/platform/audit"
)

// Producer delivers one serialized event to the broker.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
)

// Relay drains the outbox into the broker. Delivery is at-least-once: an
// entry is marked published only after the broker acknowledged it.
type Relay struct {
	source   audit.OutboxSource
	producer Producer
	logger   *slog.Logger
	batch    int
	interval time.Duration
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(source audit.OutboxSource, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		source:   source,
		producer: producer,
		logger:   slog.Default(),
		batch:    defaultBatchSize,
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were delivered.
// It stops at the first broker failure so ordering per aggregate is kept.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.source.FetchUnpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	delivered := make([]uuid.UUID, 0, len(entries))
	var publishErr error
	for _, e := range entries {
		if err := r.producer.Publish(ctx, []byte(e.AggregateID), e.Payload); err != nil {
			publishErr = err
			break
		}
		delivered = append(delivered, e.ID)
	}

	if err := r.source.MarkPublished(ctx, delivered, time.Now()); err != nil {
		return 0, err
	}
	return len(delivered), publishErr
}
