package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// EmbeddingRepository memoizes query embeddings in process memory.
type EmbeddingRepository struct {
	cache *cache.Cache
}

// NewEmbeddingRepository creates a store whose entries expire after ttl.
// Expired items are only purged by DeleteExpired, which the supervisor runs
// on a schedule.
func NewEmbeddingRepository(ttl time.Duration) *EmbeddingRepository {
	return &EmbeddingRepository{
		cache: cache.New(ttl, 0),
	}
}

func (r *EmbeddingRepository) Save(key string, vector []float32) {
	r.cache.Set(key, vector, cache.DefaultExpiration)
}

func (r *EmbeddingRepository) Get(key string) ([]float32, bool) {
	if x, found := r.cache.Get(key); found {
		return x.([]float32), true
	}
	return nil, false
}

func (r *EmbeddingRepository) Delete(key string) {
	r.cache.Delete(key)
}

// DeleteExpired purges expired entries and returns how many remain.
func (r *EmbeddingRepository) DeleteExpired() int {
	r.cache.DeleteExpired()
	return r.cache.ItemCount()
}
