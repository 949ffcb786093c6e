package httptransport

import (
	"net/http"
	"time"

	"github.com/ardenlake/bookshop/internal/auth"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
)

// ObservabilityMiddleware wires per-request plumbing:
//   - W3C trace context extraction
//   - X-Request-ID generation and echo
//   - request-scoped logger on the context
//   - HTTP RED metrics with low-cardinality route labels
func ObservabilityMiddleware(base observability.Logger, tel observability.Observability) func(http.Handler) http.Handler {
	if base == nil {
		base = tel.Logger()
	}
	prop := otel.GetTextMapPropagator()
	counter := tel.Metrics().Counter(observability.MHTTPRequests)
	duration := tel.Metrics().Histogram(observability.MHTTPRequestDuration)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			sc := trace.SpanContextFromContext(ctx)

			rid := r.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)

			fields := []observability.Field{observability.F("request_id", rid)}
			if sc.IsValid() {
				fields = append(fields,
					observability.F("trace_id", sc.TraceID().String()),
					observability.F("span_id", sc.SpanID().String()),
				)
			}
			ctx = logctx.With(ctx, base.With(fields...))

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			labels := []observability.Label{
				observability.L("method", r.Method),
				observability.L("route", route),
				observability.L("status", http.StatusText(rec.status)),
			}
			counter.Add(1, labels...)
			duration.Observe(time.Since(start).Seconds(), labels...)
		})
	}
}

// RequireOwner resolves the caller's owner identity before any cart or
// checkout handler runs. An unresolved owner short-circuits with 401
// and no mutation.
func RequireOwner(resolver auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID, err := resolver.OwnerID(r)
			if err != nil {
				writeFailure(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithOwner(r.Context(), ownerID)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
