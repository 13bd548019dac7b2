package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestMiddleware_TracesRequests(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs := New("wifidog-auth-test", promclient.NewRegistry(), nil, sdktrace.WithSpanProcessor(recorder))
	defer obs.Shutdown(t.Context())

	var inner trace.SpanContext
	r := chi.NewRouter()
	r.Use(obs.Middleware)
	r.Get("/ping/", func(w http.ResponseWriter, r *http.Request) {
		inner = trace.SpanContextFromContext(r.Context())
		_, _ = w.Write([]byte("Pong"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/?gw_id=GW1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET /ping/", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Contains(t, span.Attributes(), attribute.Int("http.status_code", 200))

	assert.True(t, inner.IsValid())
	assert.Equal(t, span.SpanContext().TraceID(), inner.TraceID())
	assert.Equal(t, span.SpanContext().TraceID().String(), rec.Header().Get(TraceHeader))
}

func TestMiddleware_ZeroValueSkipsTracing(t *testing.T) {
	var obs Observability
	h := obs.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get(TraceHeader))
}
