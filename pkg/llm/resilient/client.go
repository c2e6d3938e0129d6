package resilient

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/breaker"
	"docchat-be/pkg/llm"

	"github.com/cenkalti/backoff/v5"
)

type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// Client opens provider streams behind a circuit breaker. Opening a stream is
// retried with exponential backoff; the whole attempt, including the life of
// the stream, is reported to the breaker as a single call.
type Client struct {
	provider llm.LLMProvider
	breaker  *breaker.Breaker
	cfg      Config
	logger   logger.ILogger
}

func NewClient(provider llm.LLMProvider, br *breaker.Breaker, cfg Config, log logger.ILogger) *Client {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	return &Client{provider: provider, breaker: br, cfg: cfg, logger: log}
}

func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// Open returns breaker.ErrOpen without calling the provider while the breaker is open.
func (c *Client) Open(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	done, err := c.breaker.Allow()
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval

	attempt := 0
	stream, err := backoff.Retry(ctx, func() (llm.Stream, error) {
		attempt++
		s, err := c.provider.ChatStream(ctx, history, opts...)
		if err == nil {
			return s, nil
		}
		var pe *llm.ProviderError
		if errors.As(err, &pe) {
			if !pe.Retryable() {
				return nil, backoff.Permanent(err)
			}
			if pe.RetryAfter > 0 {
				return nil, backoff.RetryAfter(retryAfterSeconds(pe.RetryAfter))
			}
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("LLM", "Provider call failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"wait_ms": wait.Milliseconds(),
				"error":   err.Error(),
			})
		}),
	)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = errors.Join(ctx.Err(), err)
		}
		done(err)
		return nil, err
	}

	return &guardedStream{inner: stream, ctx: ctx, done: done}, nil
}

// guardedStream reports the stream outcome to the breaker once, on Close.
type guardedStream struct {
	inner llm.Stream
	ctx   context.Context
	done  func(error)

	mu      sync.Mutex
	eof     bool
	lastErr error
	once    sync.Once
}

func (s *guardedStream) Recv() (llm.Chunk, error) {
	chunk, err := s.inner.Recv()
	if err != nil {
		s.mu.Lock()
		if errors.Is(err, io.EOF) {
			s.eof = true
		} else {
			s.lastErr = err
		}
		s.mu.Unlock()
	}
	return chunk, err
}

func (s *guardedStream) Close() error {
	err := s.inner.Close()
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case s.eof:
			s.done(nil)
		case s.ctx.Err() != nil:
			// the caller gave up; a deadline counts, a disconnect does not
			s.done(s.ctx.Err())
		case s.lastErr != nil:
			s.done(s.lastErr)
		default:
			s.done(context.Canceled)
		}
	})
	return err
}

// retryAfterSeconds rounds a provider hint up so the wait is never shorter
// than what the provider asked for.
func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
