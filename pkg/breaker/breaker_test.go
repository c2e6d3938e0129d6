package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type clientErr struct{}

func (clientErr) Error() string     { return "bad request" }
func (clientErr) ClientError() bool { return true }

var errUpstream = errors.New("upstream 503")

func newTestBreaker(clock *fakeClock) *Breaker {
	return New(Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  time.Minute,
		Now:              clock.Now,
	})
}

func fail(ctx context.Context) error    { return errUpstream }
func succeed(ctx context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Equal(t, Closed, b.State())
		require.ErrorIs(t, b.Call(ctx, fail), errUpstream)
	}
	assert.Equal(t, Open, b.State())

	invoked := false
	err := b.Call(ctx, func(context.Context) error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, invoked, "open breaker must not invoke the call")
	assert.Equal(t, uint64(1), b.Snapshot().Rejected)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = b.Call(ctx, fail)
	}
	require.NoError(t, b.Call(ctx, succeed))
	for i := 0; i < 4; i++ {
		_ = b.Call(ctx, fail)
	}
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_ClientErrorsAreNeutral(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = b.Call(ctx, func(context.Context) error { return clientErr{} })
		_ = b.Call(ctx, func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 0, b.Snapshot().ConsecutiveFailures)
}

func TestBreaker_HalfOpenTrials(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []error
		want     State
	}{
		{name: "all trials succeed", outcomes: []error{nil, nil}, want: Closed},
		{name: "first trial fails", outcomes: []error{errUpstream}, want: Open},
		{name: "second trial fails", outcomes: []error{nil, errUpstream}, want: Open},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
			b := newTestBreaker(clock)
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				_ = b.Call(ctx, fail)
			}
			require.Equal(t, Open, b.State())

			clock.Advance(59 * time.Second)
			assert.Equal(t, Open, b.State())
			clock.Advance(time.Second)
			assert.Equal(t, HalfOpen, b.State())

			for _, outcome := range tt.outcomes {
				outcome := outcome
				_ = b.Call(ctx, func(context.Context) error { return outcome })
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreaker_HalfOpenLimitsConcurrentTrials(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = b.Call(ctx, fail)
	}
	clock.Advance(time.Minute)

	done1, err := b.Allow()
	require.NoError(t, err)
	done2, err := b.Allow()
	require.NoError(t, err)

	_, err = b.Allow()
	assert.ErrorIs(t, err, ErrOpen, "only SuccessThreshold trials may be in flight")

	// a neutral outcome frees its trial slot
	done1(context.Canceled)
	done3, err := b.Allow()
	require.NoError(t, err)

	done2(nil)
	done3(nil)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_StaleOutcomeIgnored(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := newTestBreaker(clock)
	ctx := context.Background()

	slow, err := b.Allow()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_ = b.Call(ctx, fail)
	}
	require.Equal(t, Open, b.State())

	clock.Advance(time.Minute)
	require.Equal(t, HalfOpen, b.State())

	// completes after the breaker moved on
	slow(errUpstream)
	assert.Equal(t, HalfOpen, b.State())
}

func TestBreaker_StateChangeHook(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	var transitions []string
	b := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		RecoveryTimeout:  time.Second,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	_ = b.Call(ctx, fail)
	clock.Advance(time.Second)
	require.NoError(t, b.Call(ctx, succeed))

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}
