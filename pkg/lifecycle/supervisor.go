package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-be/internal/pkg/logger"

	"github.com/thejerf/suture/v4"
)

// Supervisor owns every long-running background service of the process.
// Stop cancels them and waits for all of them to return.
type Supervisor struct {
	sup    *suture.Supervisor
	logger logger.ILogger
	cancel context.CancelFunc
	errCh  <-chan error
}

func NewSupervisor(name string, stopTimeout time.Duration, log logger.ILogger) *Supervisor {
	sup := suture.New(name, suture.Spec{
		Timeout: stopTimeout,
		EventHook: func(e suture.Event) {
			log.Warn("LIFECYCLE", e.String(), e.Map())
		},
	})
	return &Supervisor{sup: sup, logger: log}
}

func (s *Supervisor) Add(service suture.Service) {
	s.sup.Add(service)
}

func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = s.sup.ServeBackground(ctx)
}

// Stop cancels all services and blocks until the supervisor has returned or
// the timeout elapses.
func (s *Supervisor) Stop(timeout time.Duration) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case err := <-s.errCh:
		if report, rerr := s.sup.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
			s.logger.Error("LIFECYCLE", "Services did not stop in time", map[string]interface{}{
				"count": len(report),
			})
			return fmt.Errorf("%d services did not stop", len(report))
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("LIFECYCLE", "Supervisor returned", map[string]interface{}{"error": err.Error()})
		}
		return nil
	case <-time.After(timeout):
		return errors.New("supervisor did not stop before timeout")
	}
}

// Periodic runs fn on a fixed interval until its context is cancelled.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	logger   logger.ILogger
}

func NewPeriodic(name string, interval time.Duration, fn func(ctx context.Context) error, log logger.ILogger) *Periodic {
	return &Periodic{name: name, interval: interval, fn: fn, logger: log}
}

func (p *Periodic) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.fn(ctx); err != nil {
				p.logger.Error("LIFECYCLE", "Periodic task failed", map[string]interface{}{
					"task":  p.name,
					"error": err.Error(),
				})
			}
		}
	}
}

func (p *Periodic) String() string {
	return p.name
}
