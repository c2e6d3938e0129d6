package cache

import (
	"sync"
	"time"

	"docchat-be/pkg/store"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type Config struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time
}

func DefaultConfig() Config {
	return Config{Capacity: 500, TTL: 24 * time.Hour}
}

// Entry is a cached answer and the document scope it was produced from.
type Entry struct {
	Fingerprint      string
	Answer           string
	Sources          []store.Source
	Documents        []string
	CompletionTokens int
	CreatedAt        time.Time
	LastAccess       time.Time
	Hits             int
}

type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	HitRate  float64 `json:"hit_rate"`
}

// Cache is an LRU of answers with a per-entry TTL.
type Cache struct {
	cfg Config

	mu     sync.Mutex
	lru    *simplelru.LRU[string, *Entry]
	hits   uint64
	misses uint64
}

func New(cfg Config) (*Cache, error) {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	lru, err := simplelru.NewLRU[string, *Entry](cfg.Capacity, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{cfg: cfg, lru: lru}, nil
}

func (c *Cache) expired(e *Entry, now time.Time) bool {
	return !now.Before(e.CreatedAt.Add(c.cfg.TTL))
}

// Get returns a copy of the entry. Expired entries are removed and reported
// as a miss.
func (c *Cache) Get(fingerprint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	e, ok := c.lru.Get(fingerprint)
	if ok && c.expired(e, now) {
		c.lru.Remove(fingerprint)
		ok = false
	}
	if !ok {
		c.misses++
		return Entry{}, false
	}

	c.hits++
	e.Hits++
	e.LastAccess = now
	return *e, true
}

// Put stores the entry under its fingerprint, evicting the least recently
// used entry when full. A second put for the same fingerprint replaces the first.
func (c *Cache) Put(entry Entry) {
	now := c.cfg.Now()
	e := entry
	e.CreatedAt = now
	e.LastAccess = now
	e.Hits = 0
	e.Documents = normalizeScope(entry.Documents)

	c.mu.Lock()
	c.lru.Add(e.Fingerprint, &e)
	c.mu.Unlock()
}

// InvalidateByDocument removes every entry whose recorded scope includes the
// document and returns how many were removed.
func (c *Cache) InvalidateByDocument(documentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		for _, d := range e.Documents {
			if d == documentID {
				c.lru.Remove(key)
				removed++
				break
			}
		}
	}
	return removed
}

// Clear empties the cache and returns the number of entries it held.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.lru.Purge()
	return n
}

// Sweep removes expired entries.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.cfg.Now()
	removed := 0
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && c.expired(e, now) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.lru.Len(),
		Capacity: c.cfg.Capacity,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
