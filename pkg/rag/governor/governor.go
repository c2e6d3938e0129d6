package governor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrSpendLimitExceeded = errors.New("session spend limit exceeded")

type Config struct {
	SpendCeiling float64
	TTL          time.Duration
	Now          func() time.Time
}

func DefaultConfig() Config {
	return Config{SpendCeiling: 5.00, TTL: 24 * time.Hour}
}

type account struct {
	spent        float64
	createdAt    time.Time
	lastActivity time.Time
}

// Usage is a point-in-time view of one session's accounting.
type Usage struct {
	SessionID    string    `json:"session_id"`
	Spent        float64   `json:"spent_usd"`
	Ceiling      float64   `json:"ceiling_usd"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Governor tracks spend and idle time per session. Spend is checked before a
// request is admitted and recorded once its cost is known; recorded spend is
// never refunded.
type Governor struct {
	cfg Config

	mu       sync.Mutex
	accounts map[string]*account
}

func New(cfg Config) *Governor {
	def := DefaultConfig()
	if cfg.SpendCeiling <= 0 {
		cfg.SpendCeiling = def.SpendCeiling
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Governor{cfg: cfg, accounts: make(map[string]*account)}
}

// Touch marks activity on a session. A session seen for the first time is
// seeded with its persisted spend.
func (g *Governor) Touch(sessionID string, persistedSpend float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.cfg.Now()
	if a, ok := g.accounts[sessionID]; ok {
		a.lastActivity = now
		return
	}
	g.accounts[sessionID] = &account{spent: persistedSpend, createdAt: now, lastActivity: now}
}

// CheckBudget fails once recorded spend has reached the ceiling.
func (g *Governor) CheckBudget(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[sessionID]
	if !ok {
		return nil
	}
	if a.spent >= g.cfg.SpendCeiling {
		return fmt.Errorf("%w: spent %.4f of %.4f", ErrSpendLimitExceeded, a.spent, g.cfg.SpendCeiling)
	}
	return nil
}

// AddSpend records the cost of a completed request. The amount is always
// recorded; ErrSpendLimitExceeded signals that the new total is over the
// ceiling and later requests will be refused.
func (g *Governor) AddSpend(sessionID string, amount float64) (float64, error) {
	if amount < 0 {
		amount = 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.cfg.Now()
	a, ok := g.accounts[sessionID]
	if !ok {
		a = &account{createdAt: now}
		g.accounts[sessionID] = a
	}
	a.spent += amount
	a.lastActivity = now

	if a.spent > g.cfg.SpendCeiling {
		return a.spent, fmt.Errorf("%w: spent %.4f of %.4f", ErrSpendLimitExceeded, a.spent, g.cfg.SpendCeiling)
	}
	return a.spent, nil
}

func (g *Governor) Usage(sessionID string) (Usage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[sessionID]
	if !ok {
		return Usage{}, false
	}
	return Usage{
		SessionID:    sessionID,
		Spent:        a.spent,
		Ceiling:      g.cfg.SpendCeiling,
		CreatedAt:    a.createdAt,
		LastActivity: a.lastActivity,
	}, true
}

func (g *Governor) Forget(sessionID string) {
	g.mu.Lock()
	delete(g.accounts, sessionID)
	g.mu.Unlock()
}

func (g *Governor) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.accounts)
}

// Sweep evicts sessions idle for at least the TTL and returns their ids.
func (g *Governor) Sweep() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.cfg.Now().Add(-g.cfg.TTL)
	var evicted []string
	for id, a := range g.accounts {
		if !a.lastActivity.After(cutoff) {
			delete(g.accounts, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// IdleCutoff is the last-activity time at or before which a session is
// considered expired.
func (g *Governor) IdleCutoff() time.Time {
	return g.cfg.Now().Add(-g.cfg.TTL)
}

func (g *Governor) Ceiling() float64 {
	return g.cfg.SpendCeiling
}
