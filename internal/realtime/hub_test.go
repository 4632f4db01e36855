package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSubscriber struct {
	id       string
	mu       sync.Mutex
	messages [][]byte
	full     bool
	closed   bool
}

func (m *mockSubscriber) ID() string { return m.id }

func (m *mockSubscriber) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.full {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := &mockSubscriber{id: "a"}
	b := &mockSubscriber{id: "b"}

	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_PublishPreservesOrder(t *testing.T) {
	hub := NewHub(zap.NewNop())
	sub := &mockSubscriber{id: "a"}
	hub.Register(sub)

	hub.Publish(domain.NewEvent(domain.EventMessageUpdated, "message", map[string]string{"content": "Hel"}))
	hub.Publish(domain.NewEvent(domain.EventMessageUpdated, "message", map[string]string{"content": "Hello"}))

	require.Len(t, sub.messages, 2)
	var last domain.Event
	require.NoError(t, json.Unmarshal(sub.messages[1], &last))
	assert.Equal(t, domain.EventMessageUpdated, last.Type)
	assert.Equal(t, "Hello", last.Payload.(map[string]any)["content"])
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow := &mockSubscriber{id: "slow", full: true}
	hub.Register(slow)

	hub.Publish(domain.NewEvent(domain.EventChatCreated, "chat", nil))

	assert.Zero(t, hub.ClientCount())
	assert.True(t, slow.closed)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a := &mockSubscriber{id: "a"}
	hub.Register(a)

	hub.Close()

	assert.True(t, a.closed)
	assert.Zero(t, hub.ClientCount())
}
