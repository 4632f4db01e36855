package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/port"
	maindomain "github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// tracer é o tracer OpenTelemetry para o módulo chat/infra.
var tracer = otel.Tracer("chat/infra")

// errUpstreamStatus marca respostas 5xx como falha para o circuit breaker
// sem perder a resposta, que ainda vai para o Assembler.
var errUpstreamStatus = errors.New("chat backend returned 5xx")

// ============================================================
// ChatBackendClient: cliente HTTP do backend conversacional
// ============================================================
//
// Contrato:
//
//	Request:  POST {baseURL}/chat
//	          {"message", "chatId", "systemPrompt", "tone", "stream", "maxTokens"}
//	Response: JSON único com campo de resposta, ou corpo chunked (texto / NDJSON / SSE)
//
// O client NÃO lê o corpo. Ele só abre a requisição e devolve o body
// para o Assembler consumir chunk a chunk.
//
// Sem retry: um POST de chat não é idempotente, então é sempre uma tentativa só.
// O circuit breaker conta falhas de rede e respostas 5xx.

type ChatBackendClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
}

// NewChatBackendClient cria o client. O httpClient não deve ter Timeout global,
// senão streams longos são cortados; o prazo vem do context.
func NewChatBackendClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker) *ChatBackendClient {
	return &ChatBackendClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
	}
}

var _ port.ChatTransport = (*ChatBackendClient)(nil)

// Open envia o request e devolve a resposta com o body aberto.
func (c *ChatBackendClient) Open(ctx context.Context, req *domain.BackendRequest) (*port.TransportResponse, error) {
	ctx, span := tracer.Start(ctx, "ChatBackendClient.Open")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.id", req.ChatID),
		attribute.Bool("chat.stream", req.Stream),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var resp *http.Response
	_, err = c.cb.Execute(func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create http request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if req.Stream {
			httpReq.Header.Set("Accept", "text/event-stream, application/x-ndjson, text/plain, application/json")
		} else {
			httpReq.Header.Set("Accept", "application/json")
		}

		r, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= 500 {
			return nil, errUpstreamStatus
		}
		return nil, nil
	})

	switch {
	case err == nil, errors.Is(err, errUpstreamStatus):
		// segue: a resposta (mesmo 5xx) vai para o Assembler
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		span.RecordError(err)
		return nil, &maindomain.ErrCircuitOpen{Service: "chat-backend"}
	default:
		span.RecordError(err)
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	return &port.TransportResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Streamed:    req.Stream && !isJSON(contentType),
		Body:        resp.Body,
	}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
