package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is stamped on every log line and names the tracer resource.
const ServiceName = "finance-assistant-bfa"

// Stream kinds reported in the "stream" log field.
const (
	StreamSSE       = "sse"
	StreamWebsocket = "websocket"
)

// quietPaths are health-check and scrape endpoints; they are never logged.
var quietPaths = map[string]bool{
	"/ping":    true,
	"/metrics": true,
	"/healthz": true,
	"/readyz":  true,
}

// NewLogger creates a structured zap logger.
// debug level → colorized console; otherwise → compact JSON at the parsed level
// (unknown levels fall back to info).
func NewLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": ServiceName}
	// no sampling: every chat send outcome must reach the log
	cfg.Sampling = nil

	switch lvl, err := zapcore.ParseLevel(level); {
	case err == nil && lvl == zapcore.DebugLevel:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case err == nil:
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}

// StreamKind reports whether the request opens a long-lived stream:
// an SSE chat send or the websocket event feed. Empty for plain requests.
func StreamKind(r *http.Request) string {
	switch {
	case strings.EqualFold(r.Header.Get("Upgrade"), "websocket"):
		return StreamWebsocket
	case strings.Contains(r.Header.Get("Accept"), "text/event-stream"):
		return StreamSSE
	default:
		return ""
	}
}

// ZapLoggerMiddleware logs one line per HTTP request once it finishes.
//
// Streams (SSE sends, websocket sessions) are logged as "http stream" so their
// latency reads as session length, not request time. Chat routes carry chat_id.
// Level: Error for 5xx, Warn for 4xx, Info otherwise.
func ZapLoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			stream := StreamKind(r)

			defer func() {
				status := ww.Status()
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("bytes", ww.BytesWritten()),
				}
				// routing has run by now, so the pattern and params are filled in
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						fields = append(fields, zap.String("route", pattern))
					}
					if chatID := rctx.URLParam("chatId"); chatID != "" {
						fields = append(fields, zap.String("chat_id", chatID))
					}
				}

				msg := "http request"
				if stream != "" {
					msg = "http stream"
					fields = append(fields, zap.String("stream", stream))
				}

				switch {
				case status >= 500:
					logger.Error(msg, fields...)
				case status >= 400:
					logger.Warn(msg, fields...)
				default:
					logger.Info(msg, fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TracingMiddleware extracts trace context from incoming requests.
func TracingMiddleware(next http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		propagator = propagation.TraceContext{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
