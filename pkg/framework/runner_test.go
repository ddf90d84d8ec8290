package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRunnerCollectsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx)
	r.Go(
		NamedRun("fails", RunFunc(func(context.Context) error { return errBoom })),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		RunFunc(func(context.Context) error { return nil }),
	)
	cancel()
	err := r.Wait()
	require.ErrorIs(t, err, errBoom)
	var agg *AggregatedError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 1)
	require.NoError(t, r.Wait())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	unblock := make(chan struct{})
	var closes int
	closer := closerFunc(func() error {
		closes++
		close(unblock)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return errBoom
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, closes)

	closes = 0
	unblock = make(chan struct{})
	err = RunWithContextCloser(context.Background(), closer, func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, 1, closes)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errs.Add(errBoom)
	require.Equal(t, "boom", errs.Aggregate().Error())
	errs.Add(errors.New("bang"))
	require.Equal(t, "multiple errors:\n  boom\n  bang", errs.Error())
	require.ErrorIs(t, errs.Aggregate(), errBoom)
}
