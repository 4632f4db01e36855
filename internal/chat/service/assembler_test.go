package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/port"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/service"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func run(t *testing.T, tr *fakeTransport) (service.AssemblyResult, *recorder) {
	t.Helper()
	rec := &recorder{}
	a := service.NewAssembler(tr, observability.NewMetrics(), zap.NewNop())
	res := a.Run(context.Background(), &domain.BackendRequest{ChatID: "c1", Message: "hi", Stream: true}, service.Hooks{
		OnChunk: rec.onChunk,
		OnState: rec.onState,
	})
	return res, rec
}

func TestAssembler_AccumulatesChunks(t *testing.T) {
	res, rec := run(t, streamed("Hel", "lo wor", "ld"))

	assert.Equal(t, "Hello world", res.Text)
	assert.Equal(t, domain.StateComplete, res.State)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, []string{"Hel", "Hello wor", "Hello world"}, rec.chunks)
	assert.Equal(t, []domain.StreamState{domain.StateAwaitingHeaders, domain.StateStreaming, domain.StateComplete}, rec.states)
}

func TestAssembler_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error field", 500, `{"error":"boom"}`, "⚠️ boom"},
		{"json message field", 400, `{"message":"bad tone"}`, "⚠️ bad tone"},
		{"nested error object", 429, `{"error":{"message":"slow down"}}`, "⚠️ slow down"},
		{"raw text", 502, "Bad Gateway", "⚠️ Bad Gateway"},
		{"empty body", 503, "", "⚠️ Error 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rec := run(t, buffered(tt.status, tt.body))

			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, domain.StateFailed, res.State)
			assert.Empty(t, rec.chunks)
		})
	}
}

func TestAssembler_NetworkFailureUsesDistinctMarker(t *testing.T) {
	res, _ := run(t, failing(errors.New("connection refused")))

	assert.Equal(t, "❌ connection refused", res.Text)
	assert.Equal(t, domain.StateFailed, res.State)
}

func TestAssembler_BufferedResponseIsSingleChunk(t *testing.T) {
	res, rec := run(t, buffered(200, `{"reply":"Hi there","tokens":12}`))

	assert.Equal(t, "Hi there", res.Text)
	assert.Equal(t, domain.StateComplete, res.State)
	assert.Equal(t, []string{"Hi there"}, rec.chunks)
	assert.NotContains(t, rec.states, domain.StateStreaming)
}

func TestAssembler_BufferedPlainText(t *testing.T) {
	res, _ := run(t, buffered(200, "just text"))
	assert.Equal(t, "just text", res.Text)
}

func TestAssembler_NDJSONExtraction(t *testing.T) {
	res, rec := run(t, streamed(`{"reply":"Hel"}`+"\n"+`{"rep`, `ly":"lo"}`+"\n"))

	assert.Equal(t, "Hello", res.Text)
	require.Len(t, rec.chunks, 2)
	assert.Equal(t, "Hel", rec.chunks[0])
	assert.Equal(t, "Hello", rec.chunks[1])
}

func TestAssembler_FieldPriority(t *testing.T) {
	res, _ := run(t, streamed(`{"response":"r","content":"c"}`+"\n"+`{"message":{"content":"m"}}`+"\n"+`{"response":"x"}`+"\n"))
	assert.Equal(t, "cmx", res.Text)
}

func TestAssembler_SSEFrames(t *testing.T) {
	res, _ := run(t, streamed(
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\ndata: [DONE]\n\n",
	))
	assert.Equal(t, "Hi!", res.Text)
}

func TestAssembler_MalformedLinesKeepRawText(t *testing.T) {
	res, _ := run(t, streamed("not json\n", "{broken\n", "tail"))
	assert.Equal(t, "not json\n{broken\ntail", res.Text)
	assert.Equal(t, domain.StateComplete, res.State)
}

func TestAssembler_SingleJSONObjectWithoutNewline(t *testing.T) {
	res, rec := run(t, streamed(`{"reply":`, `"done"}`))

	assert.Equal(t, "done", res.Text)
	// dois chunks crus + o refinamento final
	assert.Len(t, rec.chunks, 3)
}

func TestAssembler_SplitUTF8Rune(t *testing.T) {
	b := []byte("café")
	res, rec := run(t, streamed(string(b[:4]), string(b[4:])))

	assert.Equal(t, "café", res.Text)
	assert.Equal(t, "caf", rec.chunks[0])
}

func TestAssembler_CancelKeepsPartialText(t *testing.T) {
	tr, pw := piped()
	rec := &recorder{}
	a := service.NewAssembler(tr, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan service.AssemblyResult, 1)
	go func() {
		done <- a.Run(ctx, &domain.BackendRequest{ChatID: "c1"}, service.Hooks{OnChunk: rec.onChunk})
	}()

	_, err := pw.Write([]byte("Hel"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case res := <-done:
		assert.Equal(t, domain.StateCancelled, res.State)
		assert.Equal(t, "Hel", res.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("assembler did not stop after cancellation")
	}
}

func TestAssembler_DeadlineIsFailureNotCancel(t *testing.T) {
	tr := &fakeTransport{open: func(ctx context.Context) (*port.TransportResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rec := &recorder{}
	a := service.NewAssembler(tr, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := a.Run(ctx, &domain.BackendRequest{ChatID: "c1"}, service.Hooks{OnState: rec.onState})

	assert.Equal(t, domain.StateFailed, res.State)
	assert.Equal(t, domain.NetworkFailureMarker+"the assistant took too long to respond", res.Text)
	assert.Equal(t, []domain.StreamState{domain.StateAwaitingHeaders, domain.StateFailed}, rec.states)
}
