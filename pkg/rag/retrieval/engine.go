package retrieval

import (
	"context"
	"sort"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/embedding"
	"docchat-be/pkg/store"
	"docchat-be/pkg/tokens"

	"golang.org/x/sync/errgroup"
)

// ChunkIndex is the vector similarity index over document chunks.
type ChunkIndex interface {
	// SearchChunks returns up to topK chunks of one document, most similar first.
	SearchChunks(ctx context.Context, documentID string, vector []float32, topK int) ([]store.Chunk, error)
}

// SummaryIndex serves precomputed document summaries.
type SummaryIndex interface {
	// RankDocuments returns the summaries most similar to the vector.
	RankDocuments(ctx context.Context, vector []float32, limit int) ([]store.Summary, error)
	GetSummaries(ctx context.Context, documentIDs []string) ([]store.Summary, error)
}

// Config encapsulates retrieval parameters
type Config struct {
	SimilarityFloor float64
	FocusBoost      float64
	TokenBudget     int
	TopK            int
	MaxDocuments    int
}

// DefaultConfig returns default retrieval configuration
func DefaultConfig() Config {
	return Config{
		SimilarityFloor: 0.7,
		FocusBoost:      0.15,
		TokenBudget:     8000,
		TopK:            5,
		MaxDocuments:    3,
	}
}

// Result is the token-bounded context for one query.
type Result struct {
	Chunks      []store.Chunk
	TotalTokens int
	// Documents is the resolved scope.
	Documents []string
	// Summaries is set when no chunk survived filtering.
	Summaries []store.Summary
	// Degraded is set when the index or embedder failed and the result was
	// assembled from whatever remained available.
	Degraded bool
}

func (r *Result) UsedFallback() bool {
	return len(r.Chunks) == 0
}

type Engine struct {
	embedder  embedding.EmbeddingProvider
	chunks    ChunkIndex
	summaries SummaryIndex
	counter   tokens.Counter
	cfg       Config
	logger    logger.ILogger
}

func NewEngine(
	embedder embedding.EmbeddingProvider,
	chunks ChunkIndex,
	summaries SummaryIndex,
	counter tokens.Counter,
	cfg Config,
	log logger.ILogger,
) *Engine {
	def := DefaultConfig()
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = def.MaxDocuments
	}
	return &Engine{
		embedder:  embedder,
		chunks:    chunks,
		summaries: summaries,
		counter:   counter,
		cfg:       cfg,
		logger:    log,
	}
}

// Retrieve builds the context for a query. An empty documentID means open
// scope. Index and embedder failures degrade to the summary fallback; only
// context cancellation is returned as an error.
func (e *Engine) Retrieve(ctx context.Context, query, documentID string, focus *store.FocusContext) (*Result, error) {
	res := &Result{}
	if documentID != "" {
		res.Documents = []string{documentID}
	}

	emb, err := e.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("RETRIEVAL", "Query embedding failed, using summary fallback", map[string]interface{}{
			"error": err.Error(),
		})
		res.Degraded = true
		return e.fallback(ctx, res, nil)
	}
	vector := emb.Embedding.Values

	var ranked []store.Summary
	if documentID == "" {
		ranked, err = e.summaries.RankDocuments(ctx, vector, e.cfg.MaxDocuments)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("RETRIEVAL", "Document ranking failed", map[string]interface{}{"error": err.Error()})
			res.Degraded = true
			return res, nil
		}
		for _, s := range ranked {
			res.Documents = append(res.Documents, s.DocumentID)
		}
	}

	candidates, degraded := e.search(ctx, res.Documents, vector)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	res.Degraded = res.Degraded || degraded

	filtered := e.rank(candidates, focus)
	res.Chunks, res.TotalTokens = e.pack(filtered)

	e.logger.Debug("RETRIEVAL", "Context assembled", map[string]interface{}{
		"documents":  len(res.Documents),
		"candidates": len(candidates),
		"kept":       len(res.Chunks),
		"tokens":     res.TotalTokens,
	})

	if len(res.Chunks) == 0 {
		return e.fallback(ctx, res, ranked)
	}
	return res, nil
}

// search fetches top-K per document concurrently. Results keep the scope
// order, then the index order within a document.
func (e *Engine) search(ctx context.Context, documents []string, vector []float32) ([]store.Chunk, bool) {
	perDoc := make([][]store.Chunk, len(documents))
	failed := make([]bool, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxDocuments)
	for i, docID := range documents {
		g.Go(func() error {
			found, err := e.chunks.SearchChunks(gctx, docID, vector, e.cfg.TopK)
			if err != nil {
				failed[i] = true
				e.logger.Warn("RETRIEVAL", "Chunk search failed", map[string]interface{}{
					"document_id": docID,
					"error":       err.Error(),
				})
				return nil
			}
			perDoc[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      []store.Chunk
		degraded bool
	)
	for i := range documents {
		out = append(out, perDoc[i]...)
		degraded = degraded || failed[i]
	}
	return out, degraded
}

// rank drops chunks under the floor, boosts focused chunks and sorts by
// boosted score. Equal scores keep their original order.
func (e *Engine) rank(candidates []store.Chunk, focus *store.FocusContext) []store.Chunk {
	kept := make([]store.Chunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity < e.cfg.SimilarityFloor {
			continue
		}
		c.BoostedScore = c.Similarity
		if focus.Overlaps(c.DocumentID, c.StartChar, c.EndChar) {
			c.BoostedScore += e.cfg.FocusBoost
			if c.BoostedScore > 1.0 {
				c.BoostedScore = 1.0
			}
		}
		kept = append(kept, c)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].BoostedScore > kept[j].BoostedScore
	})
	return kept
}

// pack takes chunks in order until the next one would exceed the budget.
func (e *Engine) pack(ranked []store.Chunk) ([]store.Chunk, int) {
	var (
		out   []store.Chunk
		total int
	)
	for _, c := range ranked {
		n := c.TokenCount
		if n <= 0 {
			n = e.counter.Count(c.Content)
			c.TokenCount = n
		}
		if total+n > e.cfg.TokenBudget {
			break
		}
		total += n
		out = append(out, c)
	}
	return out, total
}

func (e *Engine) fallback(ctx context.Context, res *Result, ranked []store.Summary) (*Result, error) {
	summaries := ranked
	if len(summaries) == 0 && len(res.Documents) > 0 {
		var err error
		summaries, err = e.summaries.GetSummaries(ctx, res.Documents)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("RETRIEVAL", "Summary fallback failed", map[string]interface{}{"error": err.Error()})
			res.Degraded = true
			return res, nil
		}
	}

	budget := e.cfg.TokenBudget
	for _, s := range summaries {
		if s.Text == "" {
			continue
		}
		n := e.counter.Count(s.Text)
		if n > budget {
			break
		}
		budget -= n
		res.TotalTokens += n
		res.Summaries = append(res.Summaries, s)
	}
	return res, nil
}
