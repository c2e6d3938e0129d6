package orchestrator

import (
	"context"
	"errors"

	"docchat-be/pkg/events"
	"docchat-be/pkg/llm"
	"docchat-be/pkg/rag/cache"
	"docchat-be/pkg/rag/governor"
)

// finalize runs for every admitted request. It works on a context detached
// from the client so a disconnect cannot abort persistence.
func (o *Orchestrator) finalize(ctx context.Context, t *turn) *Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FinalizeTimeout)
	defer cancel()

	latency := o.cfg.Now().Sub(t.started).Milliseconds()
	answer := t.answer.String()
	acct := o.account(t, answer)

	if t.cause != nil {
		o.deps.Logger.Warn(module, "Generation ended early", map[string]interface{}{
			"session_id": t.session.ID,
			"outcome":    string(t.outcome),
			"partial":    len(answer),
			"error":      t.cause.Error(),
		})
	}

	messageID, saveErr := o.deps.Store.SaveAssistantMessage(ctx, AssistantMessage{
		SessionID:  t.session.ID,
		Content:    answer,
		Sources:    t.sources,
		Accounting: acct,
		Cached:     t.cached != nil,
		Outcome:    t.outcome,
		LatencyMs:  latency,
	})
	if saveErr != nil {
		o.deps.Logger.Error(module, "Failed to persist assistant message", map[string]interface{}{
			"session_id": t.session.ID,
			"outcome":    string(t.outcome),
			"error":      saveErr.Error(),
		})
	}

	if t.outcome == OutcomeCompleted && answer != "" && !t.degraded {
		o.deps.Cache.Put(cache.Entry{
			Fingerprint:      t.fingerprint,
			Answer:           answer,
			Sources:          t.sources,
			Documents:        t.documents,
			CompletionTokens: acct.CompletionTokens,
		})
	}

	t.ticket.Release()

	if _, err := o.deps.Governor.AddSpend(t.session.ID, acct.CostUSD); err != nil {
		if errors.Is(err, governor.ErrSpendLimitExceeded) {
			o.deps.Logger.Info(module, "Session crossed its spend ceiling", map[string]interface{}{
				"session_id": t.session.ID,
				"detail":     err.Error(),
			})
		}
	}
	if err := o.deps.Store.RecordUsage(ctx, t.session.ID, acct.CostUSD, acct.TotalTokens); err != nil {
		o.deps.Logger.Error(module, "Failed to record session usage", map[string]interface{}{
			"session_id": t.session.ID,
			"error":      err.Error(),
		})
	}

	o.metric.outcome(ctx, t.outcome)
	o.publish(t, messageID, acct, latency)

	o.deps.Logger.Info(module, "Request finalized", map[string]interface{}{
		"session_id":        t.session.ID,
		"message_id":        messageID,
		"outcome":           string(t.outcome),
		"prompt_tokens":     acct.PromptTokens,
		"completion_tokens": acct.CompletionTokens,
		"cost_usd":          acct.CostUSD,
		"latency_ms":        latency,
	})

	switch {
	case saveErr != nil:
		t.send(errorEvent(CodeInternal, "", 0, answer))
	case t.outcome.Interrupted():
		t.send(errorEvent(errorCode(t.outcome), "", 0, answer))
	default:
		t.send(Event{Type: EventDone, Data: DonePayload{
			MessageID:        messageID,
			PromptTokens:     acct.PromptTokens,
			CompletionTokens: acct.CompletionTokens,
			CachedTokens:     acct.CachedTokens,
			TotalTokens:      acct.TotalTokens,
			CostUSD:          acct.CostUSD,
			Cached:           t.cached != nil,
			Interrupted:      false,
			LatencyMs:        latency,
			Sources:          t.sources,
		}})
	}

	return &Result{Outcome: t.outcome, MessageID: messageID, Answer: answer, Accounting: acct}
}

// account prefers provider-reported usage and falls back to local counts.
// Cache replays and requests that never reached the provider cost nothing.
func (o *Orchestrator) account(t *turn, answer string) Accounting {
	if t.cached != nil {
		return Accounting{CompletionTokens: t.cached.CompletionTokens, TotalTokens: t.cached.CompletionTokens}
	}
	if !t.opened {
		return Accounting{}
	}

	var u llm.Usage
	if t.usage != nil {
		u = *t.usage
	}
	if u.PromptTokens == 0 {
		for _, m := range t.messages {
			u.PromptTokens += o.deps.Counter.Count(m.Content)
		}
	}
	if u.CompletionTokens == 0 && answer != "" {
		u.CompletionTokens = o.deps.Counter.Count(answer)
	}
	return o.cfg.Pricing.account(u)
}

func (o *Orchestrator) publish(t *turn, messageID string, acct Accounting, latency int64) {
	if o.deps.Publisher == nil || o.deps.Tasks == nil {
		return
	}
	ev := events.ChatCompleted{
		SessionID:        t.session.ID,
		MessageID:        messageID,
		Outcome:          string(t.outcome),
		PromptTokens:     acct.PromptTokens,
		CompletionTokens: acct.CompletionTokens,
		CachedTokens:     acct.CachedTokens,
		CostUSD:          acct.CostUSD,
		Cached:           t.cached != nil,
		Interrupted:      t.outcome.Interrupted(),
		LatencyMs:        latency,
		OccurredAt:       o.cfg.Now(),
	}
	err := o.deps.Tasks.Go(events.TypeChatCompleted, func(ctx context.Context) error {
		return o.deps.Publisher.Publish(ctx, ev)
	})
	if err != nil {
		o.deps.Logger.Debug(module, "Completion event not scheduled", map[string]interface{}{
			"session_id": t.session.ID,
			"error":      err.Error(),
		})
	}
}

func errorCode(o Outcome) string {
	switch o {
	case OutcomeTimeout:
		return CodeTimeout
	case OutcomeUnavailable:
		return CodeServiceUnavailable
	case OutcomeProviderError:
		return CodeProviderError
	default:
		return CodeInternal
	}
}
