package housekeeping

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migmodels "eligo/internal/migration/models"
	simmodels "eligo/internal/simulation/models"
)

type sweepFunc func(ctx context.Context) (simmodels.SweepReport, error)

func (f sweepFunc) Sweep(ctx context.Context) (simmodels.SweepReport, error) { return f(ctx) }

type reconcileFunc func(ctx context.Context) (migmodels.ReconcileReport, error)

func (f reconcileFunc) Reconcile(ctx context.Context) (migmodels.ReconcileReport, error) {
	return f(ctx)
}

func discard() Option { return WithLogger(slog.New(slog.DiscardHandler)) }

func TestRunOnce_CombinesReports(t *testing.T) {
	s := New(
		sweepFunc(func(context.Context) (simmodels.SweepReport, error) {
			return simmodels.SweepReport{ExpiredDeleted: 3, MigratedDeleted: 1}, nil
		}),
		reconcileFunc(func(context.Context) (migmodels.ReconcileReport, error) {
			return migmodels.ReconcileReport{Released: 2, Finalized: 4}, nil
		}),
		discard(),
	)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, simmodels.SweepReport{ExpiredDeleted: 3, MigratedDeleted: 1}, report.Sessions)
	assert.Equal(t, migmodels.ReconcileReport{Released: 2, Finalized: 4}, report.Reservations)
}

func TestRunOnce_ReconcilesEvenWhenSweepFails(t *testing.T) {
	sweepErr := errors.New("db down")
	var reconciled atomic.Bool
	s := New(
		sweepFunc(func(context.Context) (simmodels.SweepReport, error) {
			return simmodels.SweepReport{}, sweepErr
		}),
		reconcileFunc(func(context.Context) (migmodels.ReconcileReport, error) {
			reconciled.Store(true)
			return migmodels.ReconcileReport{Released: 1}, nil
		}),
		discard(),
	)

	report, err := s.RunOnce(context.Background())
	require.ErrorIs(t, err, sweepErr)
	assert.True(t, reconciled.Load())
	assert.Equal(t, 1, report.Reservations.Released)
}

func TestRun_PassesUntilCancelled(t *testing.T) {
	var passes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s := New(
		sweepFunc(func(context.Context) (simmodels.SweepReport, error) {
			if passes.Add(1) >= 3 {
				cancel()
			}
			return simmodels.SweepReport{}, nil
		}),
		reconcileFunc(func(context.Context) (migmodels.ReconcileReport, error) {
			return migmodels.ReconcileReport{}, nil
		}),
		WithInterval(time.Millisecond),
		discard(),
	)

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, passes.Load(), int32(3))
}

func TestNew_IgnoresNonPositiveInterval(t *testing.T) {
	s := New(nil, nil, WithInterval(0))
	assert.Equal(t, defaultInterval, s.interval)
}
