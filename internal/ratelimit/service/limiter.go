// Package service checks per-IP budgets against a shared store and degrades
// to an in-process window when the store fails repeatedly.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"eligo/internal/ratelimit/metrics"
	"eligo/internal/ratelimit/models"
	"eligo/internal/ratelimit/store"
	"eligo/pkg/platform/circuit"
)

type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

// Limiter applies the configured budget of each endpoint class.
type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithFallback replaces the in-process store used while the circuit is open.
func WithFallback(s Store) Option {
	return func(l *Limiter) { l.fallback = s }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) { l.breaker = b }
}

func New(primary Store, limits map[models.EndpointClass]models.Limit, opts ...Option) (*Limiter, error) {
	for class, limit := range limits {
		if limit.RequestsPerWindow <= 0 || limit.Window <= 0 {
			return nil, fmt.Errorf("rate limit for %s must have a positive budget and window", class)
		}
	}
	l := &Limiter{
		primary:  primary,
		fallback: store.NewInMemoryStore(),
		breaker:  circuit.New("ratelimit-store"),
		limits:   limits,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Degraded reports whether checks are served by the fallback.
func (l *Limiter) Degraded() bool {
	return l.breaker.IsOpen()
}

// CheckIP records one request from ip against class. A class without a
// configured budget is always allowed and yields a nil result.
func (l *Limiter) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.Result, error) {
	limit, ok := l.limits[class]
	if !ok {
		return nil, nil
	}
	key := models.NewIPKey(class, ip)

	result, err := l.primary.Allow(ctx, key, limit)
	if err != nil {
		l.metrics.IncrementStoreError()
		useFallback, change := l.breaker.RecordFailure()
		if change.Opened {
			l.metrics.IncrementCircuitOpened()
			l.logger.WarnContext(ctx, "rate limit store circuit opened", "error", err)
		}
		if !useFallback {
			return nil, err
		}
		l.metrics.IncrementFallback()
		result, err = l.fallback.Allow(ctx, key, limit)
		if err != nil {
			return nil, err
		}
	} else if _, change := l.breaker.RecordSuccess(); change.Closed {
		l.logger.InfoContext(ctx, "rate limit store circuit closed")
	}

	if !result.Allowed {
		l.metrics.IncrementRejected(string(class))
	}
	return result, nil
}
