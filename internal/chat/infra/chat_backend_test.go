package infra_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/infra"
	maindomain "github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatBackendClient_PostsRequestAndHandsBackBody(t *testing.T) {
	var got domain.BackendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "Hello")
	}))
	defer srv.Close()

	client := infra.NewChatBackendClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("chat-backend", zap.NewNop()))
	resp, err := client.Open(context.Background(), &domain.BackendRequest{
		Message: "hi", ChatID: "c1", Tone: domain.ToneFriendly, Stream: true, MaxTokens: 512,
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Hello", string(body))
	assert.True(t, resp.Streamed)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "c1", got.ChatID)
	assert.Equal(t, 512, got.MaxTokens)
}

func TestChatBackendClient_JSONResponseIsNotStreamed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `{"reply":"ok"}`)
	}))
	defer srv.Close()

	client := infra.NewChatBackendClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("chat-backend", zap.NewNop()))
	resp, err := client.Open(context.Background(), &domain.BackendRequest{Message: "hi", Stream: true})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.False(t, resp.Streamed)
}

func TestChatBackendClient_ServerErrorStillReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"boom"}`)
	}))
	defer srv.Close()

	client := infra.NewChatBackendClient(srv.Client(), srv.URL, resilience.NewCircuitBreaker("chat-backend", zap.NewNop()))
	resp, err := client.Open(context.Background(), &domain.BackendRequest{Message: "hi"})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"boom"}`, string(body))
}

func TestChatBackendClient_OpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker("chat-backend", zap.NewNop())
	client := infra.NewChatBackendClient(srv.Client(), srv.URL, cb)

	var lastErr error
	for i := 0; i < 10 && lastErr == nil; i++ {
		resp, err := client.Open(context.Background(), &domain.BackendRequest{Message: "hi"})
		if err == nil {
			resp.Body.Close()
		}
		lastErr = err
	}

	var open *maindomain.ErrCircuitOpen
	require.ErrorAs(t, lastErr, &open)
	assert.Equal(t, "chat-backend", open.Service)
}

func TestChatBackendClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := infra.NewChatBackendClient(http.DefaultClient, url, resilience.NewCircuitBreaker("chat-backend", zap.NewNop()))
	_, err := client.Open(context.Background(), &domain.BackendRequest{Message: "hi"})
	assert.Error(t, err)
}
