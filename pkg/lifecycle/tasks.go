package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"docchat-be/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var ErrTaskSetClosed = errors.New("task set is draining")

// TaskSet runs short-lived side effects (event publishing and the like) in
// the background while keeping track of them, so failures are logged and
// shutdown can wait for the ones in flight.
type TaskSet struct {
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.ILogger

	mu     sync.RWMutex
	closed bool

	failures atomic.Int64
	dropped  atomic.Int64
}

func NewTaskSet(limit int, log logger.ILogger) *TaskSet {
	ctx, cancel := context.WithCancel(context.Background())
	t := &TaskSet{ctx: ctx, cancel: cancel, logger: log}
	if limit > 0 {
		t.group.SetLimit(limit)
	}
	return t
}

// Go starts fn unless the set is draining or full.
func (t *TaskSet) Go(name string, fn func(ctx context.Context) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		return ErrTaskSetClosed
	}

	started := t.group.TryGo(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			if err != nil {
				t.failures.Add(1)
				t.logger.Error("LIFECYCLE", "Background task failed", map[string]interface{}{
					"task":  name,
					"error": err.Error(),
				})
			}
			// errors are reported here; Wait must not see them
			err = nil
		}()
		return fn(t.ctx)
	})
	if !started {
		t.dropped.Add(1)
		t.logger.Warn("LIFECYCLE", "Background task dropped, too many in flight", map[string]interface{}{"task": name})
		return fmt.Errorf("task %s dropped: limit reached", name)
	}
	return nil
}

// Drain stops accepting tasks and waits for the running ones. When the
// timeout elapses their context is cancelled and they get one more timeout
// to return.
func (t *TaskSet) Drain(timeout time.Duration) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = t.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancel()
		return nil
	case <-time.After(timeout):
		t.cancel()
	}

	select {
	case <-done:
		return errors.New("background tasks cancelled after drain timeout")
	case <-time.After(timeout):
		return errors.New("background tasks still running after cancellation")
	}
}

func (t *TaskSet) Failures() int64 { return t.failures.Load() }
func (t *TaskSet) Dropped() int64  { return t.dropped.Load() }
