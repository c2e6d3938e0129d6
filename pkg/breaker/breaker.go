package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpen is returned without invoking the guarded call while the breaker is open
// or while all half-open trial slots are taken.
var ErrOpen = errors.New("circuit breaker is open")

// ClientError is implemented by errors caused by the caller's input.
// Such errors never count against the breaker.
type ClientError interface {
	ClientError() bool
}

type Config struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration

	// IsFailure decides whether a non-nil error counts as a provider failure.
	// Errors for which it returns false are neutral.
	IsFailure     func(error) bool
	OnStateChange func(from, to State)
	Now           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  60 * time.Second,
	}
}

// DefaultIsFailure treats cancellation and client errors as neutral.
func DefaultIsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ce ClientError
	if errors.As(err, &ce) && ce.ClientError() {
		return false
	}
	return true
}

type Snapshot struct {
	State                State     `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastTransition       time.Time `json:"last_transition"`
	Rejected             uint64    `json:"rejected"`
}

type Breaker struct {
	cfg Config

	mu             sync.Mutex
	state          State
	generation     uint64
	failures       int
	successes      int
	trials         int
	lastTransition time.Time
	rejected       uint64
}

func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = DefaultIsFailure
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		cfg:            cfg,
		state:          Closed,
		lastTransition: cfg.Now(),
	}
}

// Allow reserves one call. On success the caller must report the outcome of the
// call exactly once through the returned function.
func (b *Breaker) Allow() (func(error), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.cfg.Now())

	switch b.state {
	case Open:
		b.rejected++
		return nil, ErrOpen
	case HalfOpen:
		if b.trials >= b.cfg.SuccessThreshold {
			b.rejected++
			return nil, ErrOpen
		}
		b.trials++
	}

	gen := b.generation
	var once sync.Once
	return func(err error) {
		once.Do(func() { b.report(gen, err) })
	}, nil
}

// Call runs fn through the breaker.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}
	err = fn(ctx)
	done(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.cfg.Now())
	return b.state
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.cfg.Now())
	return Snapshot{
		State:                b.state,
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		LastTransition:       b.lastTransition,
		Rejected:             b.rejected,
	}
}

func (b *Breaker) report(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// outcome belongs to a previous state; it has no bearing on the current one
	if gen != b.generation {
		return
	}

	switch {
	case err == nil:
		b.onSuccess()
	case b.cfg.IsFailure(err):
		b.onFailure()
	default:
		if b.state == HalfOpen && b.trials > 0 {
			b.trials--
		}
	}
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(Closed)
		}
	}
}

func (b *Breaker) onFailure() {
	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		b.failures++
		b.transition(Open)
	}
}

func (b *Breaker) advance(now time.Time) {
	if b.state == Open && now.Sub(b.lastTransition) >= b.cfg.RecoveryTimeout {
		b.transition(HalfOpen)
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.generation++
	b.lastTransition = b.cfg.Now()
	b.trials = 0
	b.successes = 0
	if to == Closed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
