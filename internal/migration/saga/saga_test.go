package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) step(name string, actionErr, compErr error) Step {
	return Step{
		Name: name,
		Action: func(context.Context) error {
			r.calls = append(r.calls, "do:"+name)
			return actionErr
		},
		Compensate: func(context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			return compErr
		},
	}
}

func TestRunCompletesAllSteps(t *testing.T) {
	rec := &recorder{}
	report, err := New("test", nil).
		Then(rec.step("a", nil, nil)).
		Then(rec.step("b", nil, nil)).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, report.Completed)
	assert.Empty(t, report.Compensated)
	assert.Equal(t, []string{"do:a", "do:b"}, rec.calls)
}

func TestRunCompensatesInReverse(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	report, err := New("test", nil).
		Then(rec.step("a", nil, nil)).
		Then(Step{Name: "read", Action: func(context.Context) error { return nil }}).
		Then(rec.step("b", nil, nil)).
		Then(rec.step("c", boom, nil)).
		Run(context.Background())

	require.ErrorIs(t, err, boom)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "c", stepErr.Step)
	assert.Empty(t, stepErr.CompensationErrs)
	assert.Equal(t, []string{"b", "a"}, report.Compensated)
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}, rec.calls)
}

func TestRunCollectsCompensationFailures(t *testing.T) {
	rec := &recorder{}
	undoErr := errors.New("undo failed")
	report, err := New("test", nil).
		Then(rec.step("a", nil, nil)).
		Then(rec.step("b", nil, undoErr)).
		Then(rec.step("c", errors.New("boom"), nil)).
		Run(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Len(t, stepErr.CompensationErrs, 1)
	assert.ErrorIs(t, stepErr.CompensationErrs[0], undoErr)
	assert.Equal(t, []string{"a"}, report.Compensated)
	assert.Contains(t, err.Error(), "compensation failed")
}

func TestRunStops(t *testing.T) {
	rec := &recorder{}
	report, err := New("test", nil).
		Then(rec.step("a", nil, nil)).
		Then(rec.step("b", ErrStop, nil)).
		Then(rec.step("c", nil, nil)).
		Run(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Stopped)
	assert.Equal(t, []string{"a"}, report.Completed)
	assert.Equal(t, []string{"do:a", "do:b"}, rec.calls)
}

func TestCompensationIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compCtxErr error
	_, err := New("test", nil).
		Then(Step{
			Name:       "a",
			Action:     func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compCtxErr = ctx.Err(); return nil },
		}).
		Then(Step{
			Name: "b",
			Action: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		}).
		Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compCtxErr)
}
