package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"

	"go.opentelemetry.io/otel/trace"
)

func TestInitTracer_EmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := observability.InitTracer("", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
}

func TestTracingMiddleware_ExtractsTraceparent(t *testing.T) {
	if _, err := observability.InitTracer("", "test"); err != nil {
		t.Fatal(err)
	}

	var got trace.SpanContext
	h := observability.TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = trace.SpanContextFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("unexpected trace id %s", got.TraceID())
	}
}
