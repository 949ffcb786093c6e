package oteltrace

import (
	"context"

	"github.com/ardenlake/bookshop/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New returns a tracer port backed by the global otel tracer provider.
// Without an SDK provider installed this degrades to no-op spans.
func New(name string) observability.Tracer {
	if name == "" {
		name = "bookshop"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
