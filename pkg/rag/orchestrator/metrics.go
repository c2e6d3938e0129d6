package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "docchat-be/rag/orchestrator"

type instruments struct {
	requests      metric.Int64Counter
	cacheLookups  metric.Int64Counter
	denials       metric.Int64Counter
	breakerDenied metric.Int64Counter
}

func newInstruments() (*instruments, error) {
	meter := otel.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)
	if in.requests, err = meter.Int64Counter("rag.requests", metric.WithDescription("Chat requests by outcome")); err != nil {
		return nopInstruments(), err
	}
	if in.cacheLookups, err = meter.Int64Counter("rag.cache.lookups", metric.WithDescription("Response cache lookups by result")); err != nil {
		return nopInstruments(), err
	}
	if in.denials, err = meter.Int64Counter("rag.admission.denials", metric.WithDescription("Requests refused before generation")); err != nil {
		return nopInstruments(), err
	}
	if in.breakerDenied, err = meter.Int64Counter("rag.breaker.rejections", metric.WithDescription("Generation calls refused by the open breaker")); err != nil {
		return nopInstruments(), err
	}
	return &in, nil
}

func nopInstruments() *instruments {
	return &instruments{
		requests:      noop.Int64Counter{},
		cacheLookups:  noop.Int64Counter{},
		denials:       noop.Int64Counter{},
		breakerDenied: noop.Int64Counter{},
	}
}

func (in *instruments) outcome(ctx context.Context, o Outcome) {
	in.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o))))
}

func (in *instruments) cacheLookup(ctx context.Context, hit bool) {
	in.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (in *instruments) denied(ctx context.Context, code string) {
	in.denials.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", code)))
}
