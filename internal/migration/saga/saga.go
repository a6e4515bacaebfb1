// Package saga runs an ordered list of steps and undoes the completed ones,
// newest first, when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrStop ends a run early without failure. Completed steps are kept.
var ErrStop = errors.New("saga stopped")

// Step is one forward action and its compensation. Compensate may be nil for
// read-only steps.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Report lists what a run did, in execution order.
type Report struct {
	Completed   []string
	Compensated []string
	Stopped     bool
}

// StepError is returned when a step fails. Compensations that failed are
// attached so callers can alert on orphaned state.
type StepError struct {
	Step             string
	Err              error
	CompensationErrs []error
}

func (e *StepError) Error() string {
	if len(e.CompensationErrs) > 0 {
		return fmt.Sprintf("step %s: %v (compensation failed: %v)", e.Step, e.Err, errors.Join(e.CompensationErrs...))
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Saga is not safe for reuse across runs; build one per request.
type Saga struct {
	name   string
	steps  []Step
	logger *slog.Logger
	tracer trace.Tracer
}

func New(name string, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{name: name, logger: logger, tracer: otel.Tracer("eligo/saga")}
}

// Then appends a step.
func (s *Saga) Then(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order. Compensations run on a context detached
// from cancellation so an aborted request still cleans up.
func (s *Saga) Run(ctx context.Context) (Report, error) {
	var report Report
	for i, step := range s.steps {
		err := s.runStep(ctx, step)
		if errors.Is(err, ErrStop) {
			report.Stopped = true
			return report, nil
		}
		if err != nil {
			stepErr := &StepError{Step: step.Name, Err: err}
			s.compensate(context.WithoutCancel(ctx), s.steps[:i], &report, stepErr)
			return report, stepErr
		}
		report.Completed = append(report.Completed, step.Name)
	}
	return report, nil
}

func (s *Saga) runStep(ctx context.Context, step Step) error {
	ctx, span := s.tracer.Start(ctx, s.name+"."+step.Name,
		trace.WithAttributes(attribute.String("saga", s.name)),
	)
	defer span.End()

	err := step.Action(ctx)
	if err != nil && !errors.Is(err, ErrStop) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Saga) compensate(ctx context.Context, done []Step, report *Report, stepErr *StepError) {
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.ErrorContext(ctx, "saga compensation failed",
				"saga", s.name,
				"step", step.Name,
				"failed_step", stepErr.Step,
				"error", err,
			)
			stepErr.CompensationErrs = append(stepErr.CompensationErrs, err)
			continue
		}
		report.Compensated = append(report.Compensated, step.Name)
	}
}
