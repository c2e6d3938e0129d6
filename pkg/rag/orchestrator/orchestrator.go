package orchestrator

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/breaker"
	"docchat-be/pkg/events"
	"docchat-be/pkg/lifecycle"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/cache"
	"docchat-be/pkg/rag/governor"
	"docchat-be/pkg/rag/prompt"
	"docchat-be/pkg/rag/retrieval"
	"docchat-be/pkg/rag/validation"
	"docchat-be/pkg/ratelimit"
	"docchat-be/pkg/store"
	"docchat-be/pkg/tokens"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "ORCHESTRATOR"

// Outcome is how a request ended.
type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeCached        Outcome = "cached"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeDisconnected  Outcome = "disconnected"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeUnavailable   Outcome = "unavailable"
	OutcomeRejected      Outcome = "rejected"
	OutcomeFailed        Outcome = "failed"
)

// Interrupted reports whether a persisted answer is partial.
func (o Outcome) Interrupted() bool {
	return o != OutcomeCompleted && o != OutcomeCached
}

// Session is what the orchestrator needs to know about a chat session.
type Session struct {
	ID         string
	DocumentID string
	SpentUSD   float64
}

// AssistantMessage is the single assistant write of a request.
type AssistantMessage struct {
	SessionID  string
	Content    string
	Sources    []store.Source
	Accounting Accounting
	Cached     bool
	Outcome    Outcome
	LatencyMs  int64
}

// ConversationStore persists sessions and messages.
type ConversationStore interface {
	// Session returns store.ErrSessionNotFound for unknown ids.
	Session(ctx context.Context, sessionID string) (*Session, error)
	// History returns up to limit prior messages, oldest first.
	History(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)
	SaveUserMessage(ctx context.Context, sessionID, content string, focus *store.FocusContext) error
	SaveAssistantMessage(ctx context.Context, msg AssistantMessage) (string, error)
	RecordUsage(ctx context.Context, sessionID string, costUSD float64, tokens int) error
}

type Retriever interface {
	Retrieve(ctx context.Context, query, documentID string, focus *store.FocusContext) (*retrieval.Result, error)
}

// Generator opens a breaker-guarded completion stream.
type Generator interface {
	Open(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Config struct {
	StreamTimeout   time.Duration
	FinalizeTimeout time.Duration
	HistoryLimit    int
	Pricing         Pricing
	Now             func() time.Time
}

func DefaultConfig() Config {
	return Config{
		StreamTimeout:   60 * time.Second,
		FinalizeTimeout: 10 * time.Second,
		HistoryLimit:    10,
		Pricing:         DefaultPricing(),
	}
}

// Deps are the collaborators of an Orchestrator. Publisher and Tasks are
// optional; without them no completion events are sent.
type Deps struct {
	Validator *validation.QueryValidator
	Store     ConversationStore
	Governor  *governor.Governor
	Limiter   *ratelimit.Limiter
	Cache     *cache.Cache
	Retriever Retriever
	Generator Generator
	Counter   tokens.Counter
	Publisher Publisher
	Tasks     *lifecycle.TaskSet
	Logger    logger.ILogger
}

// Request is one user turn.
type Request struct {
	SessionID string
	Query     string
	Focus     *store.FocusContext
}

// Result summarizes a handled request.
type Result struct {
	Outcome    Outcome
	MessageID  string
	Answer     string
	Accounting Accounting
}

// Emitter delivers one event to the client. An error means the client is
// gone; the request is then finalized as disconnected.
type Emitter func(Event) error

type Orchestrator struct {
	deps   Deps
	cfg    Config
	tracer trace.Tracer
	metric *instruments
}

func New(deps Deps, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = def.StreamTimeout
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = def.FinalizeTimeout
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	if cfg.Pricing == (Pricing{}) {
		cfg.Pricing = def.Pricing
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Counter == nil {
		deps.Counter = tokens.EstimateCounter{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	in, err := newInstruments()
	if err != nil {
		deps.Logger.Warn(module, "Metric instruments unavailable", map[string]interface{}{"error": err.Error()})
	}

	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		tracer: otel.Tracer(instrumentationName),
		metric: in,
	}
}

// turn carries the mutable state of one request through Handle.
type turn struct {
	req     Request
	emit    Emitter
	cancel  context.CancelFunc
	started time.Time

	session *Session
	ticket  *ratelimit.Ticket

	gone bool

	answer      strings.Builder
	sources     []store.Source
	documents   []string
	fingerprint string
	degraded    bool
	messages    []llm.Message
	usage       *llm.Usage
	opened      bool
	cached      *cache.Entry
	outcome     Outcome
	cause       error
}

func (t *turn) send(ev Event) {
	if t.gone {
		return
	}
	if err := t.emit(ev); err != nil {
		t.gone = true
		t.cancel()
	}
}

// Handle runs one request to completion, emitting events as it goes. After
// the user message has been persisted, exactly one assistant message is
// written whatever the outcome.
func (o *Orchestrator) Handle(ctx context.Context, req Request, emit Emitter) *Result {
	ctx, span := o.tracer.Start(ctx, "orchestrator.handle", trace.WithAttributes(attribute.String("session.id", req.SessionID)))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := &turn{req: req, emit: emit, cancel: cancel, started: o.cfg.Now()}

	if res, ok := o.admit(ctx, t); !ok {
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		return res
	}
	defer t.ticket.Release()

	o.generate(ctx, t)

	res := o.finalize(ctx, t)
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Outcome.Interrupted() {
		span.SetStatus(codes.Error, string(res.Outcome))
	}
	return res
}

// admit validates the request and runs the session, spend and rate checks,
// then persists the user message. Nothing is persisted when it fails.
func (o *Orchestrator) admit(ctx context.Context, t *turn) (*Result, bool) {
	reject := func(code, message string, retryAfter time.Duration) (*Result, bool) {
		o.metric.denied(ctx, code)
		o.metric.outcome(ctx, OutcomeRejected)
		t.send(errorEvent(code, message, retryAfterSeconds(retryAfter), ""))
		return &Result{Outcome: OutcomeRejected}, false
	}

	query, err := o.deps.Validator.Query(t.req.Query)
	if err != nil {
		return reject(CodeInvalidInput, userMessage(err), 0)
	}
	focus, err := o.deps.Validator.Focus(t.req.Focus)
	if err != nil {
		return reject(CodeInvalidInput, userMessage(err), 0)
	}
	t.req.Query = query
	t.req.Focus = focus

	session, err := o.deps.Store.Session(ctx, t.req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return reject(CodeSessionNotFound, "", 0)
		}
		o.deps.Logger.Error(module, "Failed to load session", map[string]interface{}{
			"session_id": t.req.SessionID,
			"error":      err.Error(),
		})
		return reject(CodeInternal, "", 0)
	}
	t.session = session

	o.deps.Governor.Touch(session.ID, session.SpentUSD)
	if err := o.deps.Governor.CheckBudget(session.ID); err != nil {
		o.deps.Logger.Info(module, "Request refused, spend ceiling reached", map[string]interface{}{
			"session_id": session.ID,
			"detail":     err.Error(),
		})
		return reject(CodeSpendLimitExceeded, "", 0)
	}

	ticket, err := o.deps.Limiter.Admit(session.ID)
	if err != nil {
		var denial *ratelimit.Denial
		if errors.As(err, &denial) {
			code := CodeRateLimited
			if denial.Reason == ratelimit.ReasonConcurrencyLimited {
				code = CodeConcurrencyLimited
			}
			return reject(code, "", denial.RetryAfter)
		}
		return reject(CodeInternal, "", 0)
	}
	t.ticket = ticket

	history, err := o.deps.Store.History(ctx, session.ID, o.cfg.HistoryLimit)
	if err != nil {
		o.deps.Logger.Warn(module, "Failed to load history, continuing without it", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		history = nil
	}

	if err := o.deps.Store.SaveUserMessage(ctx, session.ID, t.req.Query, t.req.Focus); err != nil {
		ticket.Release()
		o.deps.Logger.Error(module, "Failed to persist user message", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		o.metric.outcome(ctx, OutcomeFailed)
		t.send(errorEvent(CodeInternal, "", 0, ""))
		return &Result{Outcome: OutcomeFailed}, false
	}

	// read before the user message is written, so it excludes this turn
	t.messages = history
	return nil, true
}

func (o *Orchestrator) scope(t *turn) []string {
	if t.session.DocumentID == "" {
		return nil
	}
	return []string{t.session.DocumentID}
}

// generate serves the turn from the cache or from the provider. It never
// returns an error; the outcome is recorded on the turn.
func (o *Orchestrator) generate(ctx context.Context, t *turn) {
	t.fingerprint = cache.Fingerprint(t.req.Query, o.scope(t), t.req.Focus)

	if entry, ok := o.deps.Cache.Get(t.fingerprint); ok {
		o.metric.cacheLookup(ctx, true)
		o.replay(t, entry)
		return
	}
	o.metric.cacheLookup(ctx, false)

	retrieveCtx, span := o.tracer.Start(ctx, "orchestrator.retrieve")
	result, err := o.deps.Retriever.Retrieve(retrieveCtx, t.req.Query, t.session.DocumentID, t.req.Focus)
	if err != nil {
		span.RecordError(err)
		span.End()
		t.outcome, t.cause = OutcomeDisconnected, err
		return
	}
	span.SetAttributes(
		attribute.Int("chunks", len(result.Chunks)),
		attribute.Int("tokens", result.TotalTokens),
		attribute.Bool("fallback", result.UsedFallback()),
	)
	span.End()

	t.documents = result.Documents
	t.degraded = result.Degraded
	for _, c := range result.Chunks {
		src := c.Source()
		t.sources = append(t.sources, src)
		t.send(sourceEvent(src))
	}

	t.messages = prompt.NewContextualBuilder(t.req.Query, t.messages, result, t.req.Focus).Build()
	o.stream(ctx, t)
}

func (o *Orchestrator) replay(t *turn, entry cache.Entry) {
	t.cached = &entry
	t.sources = entry.Sources
	t.documents = entry.Documents
	for _, src := range entry.Sources {
		t.send(sourceEvent(src))
	}
	for _, piece := range strings.SplitAfter(entry.Answer, " ") {
		if piece == "" {
			continue
		}
		t.send(tokenEvent(piece))
	}
	t.answer.WriteString(entry.Answer)
	t.outcome = OutcomeCached
}

// stream relays provider deltas under the stream deadline.
func (o *Orchestrator) stream(ctx context.Context, t *turn) {
	genCtx, cancel := context.WithTimeout(ctx, o.cfg.StreamTimeout)
	defer cancel()

	genCtx, span := o.tracer.Start(genCtx, "orchestrator.generate")
	defer span.End()

	s, err := o.deps.Generator.Open(genCtx, t.messages)
	if err != nil {
		t.outcome, t.cause = o.classify(ctx, genCtx, err), err
		if errors.Is(err, breaker.ErrOpen) {
			o.metric.breakerDenied.Add(ctx, 1)
		}
		span.RecordError(err)
		return
	}
	t.opened = true

	for {
		chunk, err := s.Recv()
		if chunk.Usage != nil {
			t.usage = chunk.Usage
		}
		if chunk.Content != "" {
			t.answer.WriteString(chunk.Content)
			t.send(tokenEvent(chunk.Content))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				t.outcome = OutcomeCompleted
			} else {
				t.outcome, t.cause = o.classify(ctx, genCtx, err), err
				span.RecordError(err)
			}
			break
		}
		if t.gone {
			t.outcome, t.cause = OutcomeDisconnected, context.Canceled
			break
		}
	}

	if err := s.Close(); err != nil {
		o.deps.Logger.Debug(module, "Stream close returned error", map[string]interface{}{"error": err.Error()})
	}
	span.SetAttributes(attribute.String("outcome", string(t.outcome)))
}

func (o *Orchestrator) classify(reqCtx, genCtx context.Context, err error) Outcome {
	switch {
	case reqCtx.Err() != nil:
		return OutcomeDisconnected
	case errors.Is(err, breaker.ErrOpen):
		return OutcomeUnavailable
	case errors.Is(genCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeProviderError
	}
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func userMessage(err error) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Message
	}
	return "Invalid request."
}
