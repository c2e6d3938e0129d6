package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"docchat-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_RunsAndStopsPeriodicServices(t *testing.T) {
	log := logger.NewNopLogger()
	sup := NewSupervisor("test", time.Second, log)

	var ticks atomic.Int32
	var stopped atomic.Bool
	sup.Add(NewPeriodic("counter", 5*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return errors.New("failures are logged, not fatal")
	}, log))
	sup.Add(&blockingService{stopped: &stopped})

	sup.Start(context.Background())
	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, sup.Stop(2*time.Second))
	assert.True(t, stopped.Load(), "Stop returns only after services have returned")

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}

func TestSupervisor_StopWithoutStart(t *testing.T) {
	sup := NewSupervisor("idle", time.Second, logger.NewNopLogger())
	assert.NoError(t, sup.Stop(time.Second))
}

type blockingService struct {
	stopped *atomic.Bool
}

func (b *blockingService) Serve(ctx context.Context) error {
	<-ctx.Done()
	time.Sleep(10 * time.Millisecond)
	b.stopped.Store(true)
	return ctx.Err()
}

func TestTaskSet_DrainWaitsForTasks(t *testing.T) {
	ts := NewTaskSet(10, logger.NewNopLogger())

	var finished atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, ts.Go("sleep", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
			return nil
		}))
	}

	require.NoError(t, ts.Drain(time.Second))
	assert.Equal(t, int32(5), finished.Load())

	err := ts.Go("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrTaskSetClosed)
	assert.Equal(t, int64(1), ts.Dropped())
}

func TestTaskSet_FailuresAndPanicsAreCounted(t *testing.T) {
	ts := NewTaskSet(0, logger.NewNopLogger())

	require.NoError(t, ts.Go("fails", func(ctx context.Context) error { return errors.New("nats down") }))
	require.NoError(t, ts.Go("panics", func(ctx context.Context) error { panic("boom") }))
	require.NoError(t, ts.Go("ok", func(ctx context.Context) error { return nil }))

	require.NoError(t, ts.Drain(time.Second))
	assert.Equal(t, int64(2), ts.Failures())
}

func TestTaskSet_DrainTimeoutCancelsTasks(t *testing.T) {
	ts := NewTaskSet(0, logger.NewNopLogger())

	var sawCancel atomic.Bool
	require.NoError(t, ts.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}))

	err := ts.Drain(20 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, sawCancel.Load())
}

func TestTaskSet_LimitDropsExcess(t *testing.T) {
	ts := NewTaskSet(1, logger.NewNopLogger())
	release := make(chan struct{})

	require.NoError(t, ts.Go("holder", func(ctx context.Context) error {
		<-release
		return nil
	}))
	assert.Error(t, ts.Go("excess", func(ctx context.Context) error { return nil }))
	close(release)

	require.NoError(t, ts.Drain(time.Second))
	assert.Equal(t, int64(1), ts.Dropped())
}
