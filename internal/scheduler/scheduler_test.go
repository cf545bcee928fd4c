package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	runs int32
}

func (r *fakeRunner) RunOnce(ctx context.Context, now time.Time) error {
	atomic.AddInt32(&r.runs, 1)
	return nil
}

func (r *fakeRunner) count() int32 {
	return atomic.LoadInt32(&r.runs)
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zap.NewNop(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return runner.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestStartTicks(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zap.NewNop(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return runner.count() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-errCh
}

func TestStartIsNotReentrant(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zap.NewNop(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return runner.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A second Start on an active scheduler returns without running.
	assert.NoError(t, s.Start(ctx))
	assert.Equal(t, int32(1), runner.count())

	cancel()
	<-errCh
}
