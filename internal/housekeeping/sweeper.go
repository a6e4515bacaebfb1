// Package housekeeping runs the periodic cleanup pass: temporary sessions past
// their grace period are purged and stale migration reservations reconciled.
// It never starts a migration.
package housekeeping

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	migmodels "eligo/internal/migration/models"
	simmodels "eligo/internal/simulation/models"
)

type SessionSweeper interface {
	Sweep(ctx context.Context) (simmodels.SweepReport, error)
}

type ReservationReconciler interface {
	Reconcile(ctx context.Context) (migmodels.ReconcileReport, error)
}

// Report is the combined result of one pass.
type Report struct {
	Sessions     simmodels.SweepReport
	Reservations migmodels.ReconcileReport
}

const defaultInterval = time.Hour

type Sweeper struct {
	sessions   SessionSweeper
	reconciler ReservationReconciler
	logger     *slog.Logger
	interval   time.Duration
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func New(sessions SessionSweeper, reconciler ReservationReconciler, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions:   sessions,
		reconciler: reconciler,
		logger:     slog.Default(),
		interval:   defaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs a pass immediately and then once per interval until ctx is
// cancelled. Failed passes are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "housekeeping pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs the session sweep and the reservation reconciler side by side.
// Both halves run to completion even when the other fails.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var (
		report Report
		g      errgroup.Group
	)
	g.Go(func() error {
		r, err := s.sessions.Sweep(ctx)
		report.Sessions = r
		return err
	})
	g.Go(func() error {
		r, err := s.reconciler.Reconcile(ctx)
		report.Reservations = r
		return err
	})
	err := g.Wait()

	s.logger.InfoContext(ctx, "housekeeping pass completed",
		"expired_purged", report.Sessions.ExpiredDeleted,
		"migrated_purged", report.Sessions.MigratedDeleted,
		"reservations_released", report.Reservations.Released,
		"reservations_finalized", report.Reservations.Finalized,
	)
	return report, err
}
