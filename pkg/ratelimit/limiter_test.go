package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(clock *fakeClock, queryCap, maxConcurrent int) *Limiter {
	return New(Config{
		QueryCap:      queryCap,
		Window:        time.Hour,
		MaxConcurrent: maxConcurrent,
		Now:           clock.Now,
	})
}

func denialOf(t *testing.T, err error) *Denial {
	t.Helper()
	var d *Denial
	require.True(t, errors.As(err, &d), "expected a *Denial, got %v", err)
	return d
}

func TestLimiter_QueryCapWithinWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, 3, 10)

	for i := 0; i < 3; i++ {
		ticket, err := l.Admit("s1")
		require.NoError(t, err)
		ticket.Release()
		clock.Advance(time.Minute)
	}

	_, err := l.Admit("s1")
	d := denialOf(t, err)
	assert.Equal(t, ReasonRateLimited, d.Reason)
	// oldest stamp leaves the window 60m after it was taken; 3m have passed
	assert.Equal(t, 57*time.Minute, d.RetryAfter)

	// another session is unaffected
	ticket, err := l.Admit("s2")
	require.NoError(t, err)
	ticket.Release()
}

func TestLimiter_WindowBoundaryIsDeterministic(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{t: start}
	l := newLimiter(clock, 1, 10)

	ticket, err := l.Admit("s1")
	require.NoError(t, err)
	ticket.Release()

	clock.Advance(time.Hour - time.Nanosecond)
	_, err = l.Admit("s1")
	assert.Equal(t, ReasonRateLimited, denialOf(t, err).Reason, "stamp still inside the window")

	// exactly one window later the first stamp is at now-60m, which is expired
	clock.Advance(time.Nanosecond)
	for i := 0; i < 20; i++ {
		assert.Equal(t, 0, l.Count("s1"))
	}
	ticket, err = l.Admit("s1")
	require.NoError(t, err)
	ticket.Release()
	assert.Equal(t, 1, l.Count("s1"))
}

func TestLimiter_ConcurrencyCap(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, 100, 5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tickets []*Ticket
		denials []*Denial
	)
	start := make(chan struct{})
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ticket, err := l.Admit("session")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var d *Denial
				if errors.As(err, &d) {
					denials = append(denials, d)
				}
				return
			}
			tickets = append(tickets, ticket)
		}(i)
	}
	close(start)
	wg.Wait()

	require.Len(t, tickets, 5)
	require.Len(t, denials, 1)
	assert.Equal(t, ReasonConcurrencyLimited, denials[0].Reason)
	assert.Equal(t, 5, l.InFlight())
	// a concurrency denial does not consume query quota
	assert.Equal(t, 5, l.Count("session"))

	for _, ticket := range tickets {
		ticket.Release()
		ticket.Release()
	}
	assert.Equal(t, 0, l.InFlight())

	ticket, err := l.Admit("session")
	require.NoError(t, err, "slots are available again after release")
	ticket.Release()
}

func TestLimiter_SweepDropsExpiredWindows(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, 10, 10)

	for _, id := range []string{"a", "b", "c"} {
		ticket, err := l.Admit(id)
		require.NoError(t, err)
		ticket.Release()
	}
	clock.Advance(30 * time.Minute)
	ticket, err := l.Admit("c")
	require.NoError(t, err)
	ticket.Release()

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 1, l.Count("c"))
}

func TestLimiter_SweepConcurrentWithAdmits(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, 1000, 1000)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				l.Sweep()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		ticket, err := l.Admit("hot")
		require.NoError(t, err)
		ticket.Release()
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 200, l.Count("hot"), "no accepted query may be lost to a concurrent sweep")
}

func TestLimiter_Forget(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, 1, 10)

	ticket, err := l.Admit("s1")
	require.NoError(t, err)
	ticket.Release()

	l.Forget("s1")
	ticket, err = l.Admit("s1")
	require.NoError(t, err)
	ticket.Release()
}
