package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedRouter(t *testing.T) (http.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(zap.New(core)))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/v1/expenses", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/v1/chat/send", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {}\n\n"))
	})
	r.Delete("/v1/chats/{chatId}/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return r, logs
}

func TestZapLoggerMiddleware_ChatRouteFields(t *testing.T) {
	h, logs := observedRouter(t)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/chats/chat-42/stream", nil))

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("expected warn for 404, got %s", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["chat_id"] != "chat-42" {
		t.Errorf("expected chat_id chat-42, got %v", fields["chat_id"])
	}
	if fields["route"] != "/v1/chats/{chatId}/stream" {
		t.Errorf("expected route pattern, got %v", fields["route"])
	}
	if _, ok := fields["stream"]; ok {
		t.Error("plain request must not carry a stream field")
	}
}

func TestZapLoggerMiddleware_SSESend(t *testing.T) {
	h, logs := observedRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/send", nil)
	req.Header.Set("Accept", "text/event-stream")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http stream").All()
	if len(entries) != 1 {
		t.Fatalf("expected one stream log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["stream"] != observability.StreamSSE {
		t.Errorf("expected stream=sse, got %v", fields["stream"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Errorf("expected status 200, got %v", fields["status"])
	}
	if _, ok := fields["chat_id"]; ok {
		t.Error("send route has no chat id in the path")
	}
}

func TestZapLoggerMiddleware_SkipsHealthEndpoints(t *testing.T) {
	h, logs := observedRouter(t)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if logs.Len() != 0 {
		t.Errorf("expected health endpoints to stay out of the log, got %d entries", logs.Len())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/expenses", nil))
	if logs.Len() != 1 {
		t.Errorf("expected one entry for a regular request, got %d", logs.Len())
	}
}

func TestStreamKind(t *testing.T) {
	ws := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	ws.Header.Set("Upgrade", "websocket")
	if got := observability.StreamKind(ws); got != observability.StreamWebsocket {
		t.Errorf("expected websocket, got %q", got)
	}
	if got := observability.StreamKind(httptest.NewRequest(http.MethodGet, "/v1/expenses", nil)); got != "" {
		t.Errorf("expected no stream kind, got %q", got)
	}
}
