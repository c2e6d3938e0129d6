package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

type Reason string

const (
	ReasonRateLimited        Reason = "rate_limited"
	ReasonConcurrencyLimited Reason = "concurrency_limited"
)

// Denial is returned when a request is not admitted. It never blocks.
type Denial struct {
	Reason     Reason
	RetryAfter time.Duration
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%s: retry after %s", d.Reason, d.RetryAfter)
}

type Config struct {
	QueryCap      int
	Window        time.Duration
	MaxConcurrent int

	// ConcurrencyRetryAfter is the hint returned with concurrency denials,
	// since no slot release time is known in advance.
	ConcurrencyRetryAfter time.Duration
	Now                   func() time.Time
}

func DefaultConfig() Config {
	return Config{
		QueryCap:              100,
		Window:                60 * time.Minute,
		MaxConcurrent:         5,
		ConcurrencyRetryAfter: 2 * time.Second,
	}
}

type window struct {
	mu      sync.Mutex
	stamps  []time.Time
	removed bool
}

// trim drops every timestamp at or before cutoff. Must be called with mu held.
func (w *window) trim(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Limiter combines a per-session sliding window with a process-wide cap on
// concurrent streams.
type Limiter struct {
	cfg      Config
	slots    *semaphore.Weighted
	inFlight atomic.Int64
	windows  sync.Map // session id -> *window
}

func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.QueryCap <= 0 {
		cfg.QueryCap = def.QueryCap
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.ConcurrencyRetryAfter <= 0 {
		cfg.ConcurrencyRetryAfter = def.ConcurrencyRetryAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Ticket represents one admitted request holding a concurrency slot.
type Ticket struct {
	once    sync.Once
	limiter *Limiter
}

// Release returns the concurrency slot. Calls after the first are no-ops.
func (t *Ticket) Release() {
	t.once.Do(func() {
		t.limiter.inFlight.Add(-1)
		t.limiter.slots.Release(1)
	})
}

// Admit checks both gates. The query is only counted against the session's
// window when both pass.
func (l *Limiter) Admit(sessionID string) (*Ticket, error) {
	for {
		v, _ := l.windows.LoadOrStore(sessionID, &window{})
		w := v.(*window)

		w.mu.Lock()
		if w.removed {
			w.mu.Unlock()
			continue
		}

		now := l.cfg.Now()
		w.trim(now.Add(-l.cfg.Window))

		if len(w.stamps) >= l.cfg.QueryCap {
			retry := w.stamps[0].Add(l.cfg.Window).Sub(now)
			w.mu.Unlock()
			return nil, &Denial{Reason: ReasonRateLimited, RetryAfter: retry}
		}

		if !l.slots.TryAcquire(1) {
			w.mu.Unlock()
			return nil, &Denial{Reason: ReasonConcurrencyLimited, RetryAfter: l.cfg.ConcurrencyRetryAfter}
		}
		l.inFlight.Add(1)

		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return &Ticket{limiter: l}, nil
	}
}

// Count reports accepted queries for a session inside the current window.
func (l *Limiter) Count(sessionID string) int {
	v, ok := l.windows.Load(sessionID)
	if !ok {
		return 0
	}
	w := v.(*window)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trim(l.cfg.Now().Add(-l.cfg.Window))
	return len(w.stamps)
}

func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Forget drops a session's window, e.g. after the session is deleted.
func (l *Limiter) Forget(sessionID string) {
	v, ok := l.windows.Load(sessionID)
	if !ok {
		return
	}
	w := v.(*window)
	w.mu.Lock()
	w.removed = true
	l.windows.CompareAndDelete(sessionID, w)
	w.mu.Unlock()
}

// Sweep trims every window and drops the empty ones. Each window is locked on
// its own, so a sweep only ever contends with requests of the same session
// and only for the duration of a trim.
func (l *Limiter) Sweep() int {
	cutoff := l.cfg.Now().Add(-l.cfg.Window)
	dropped := 0
	l.windows.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		w.trim(cutoff)
		if len(w.stamps) == 0 && !w.removed {
			w.removed = true
			l.windows.CompareAndDelete(key, w)
			dropped++
		}
		w.mu.Unlock()
		return true
	})
	return dropped
}
