package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/port"
)

// chunkBody entrega exatamente um chunk por Read.
type chunkBody struct {
	chunks [][]byte
	closed bool
}

func newChunkBody(chunks ...string) *chunkBody {
	b := &chunkBody{}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

func (b *chunkBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, errors.New("read on closed body")
	}
	if len(b.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[0])
	b.chunks = b.chunks[1:]
	return n, nil
}

func (b *chunkBody) Close() error {
	b.closed = true
	return nil
}

// fakeTransport devolve uma resposta fixa (ou erro) e guarda os requests.
type fakeTransport struct {
	mu       sync.Mutex
	open     func(ctx context.Context) (*port.TransportResponse, error)
	requests []domain.BackendRequest
}

func (f *fakeTransport) Open(ctx context.Context, req *domain.BackendRequest) (*port.TransportResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()
	return f.open(ctx)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func streamed(chunks ...string) *fakeTransport {
	return &fakeTransport{open: func(context.Context) (*port.TransportResponse, error) {
		return &port.TransportResponse{StatusCode: 200, ContentType: "text/plain", Streamed: true, Body: newChunkBody(chunks...)}, nil
	}}
}

func buffered(status int, body string) *fakeTransport {
	return &fakeTransport{open: func(context.Context) (*port.TransportResponse, error) {
		return &port.TransportResponse{StatusCode: status, ContentType: "application/json", Body: io.NopCloser(strings.NewReader(body))}, nil
	}}
}

func failing(err error) *fakeTransport {
	return &fakeTransport{open: func(context.Context) (*port.TransportResponse, error) { return nil, err }}
}

// piped devolve um transporte cujo body é alimentado pelo teste.
func piped() (*fakeTransport, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &fakeTransport{open: func(context.Context) (*port.TransportResponse, error) {
		return &port.TransportResponse{StatusCode: 200, Streamed: true, Body: pr}, nil
	}}, pw
}

// recorder captura os hooks do Assembler.
type recorder struct {
	mu     sync.Mutex
	chunks []string
	states []domain.StreamState
}

func (r *recorder) onChunk(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, s)
}

func (r *recorder) onState(s domain.StreamState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chunks...)
}
