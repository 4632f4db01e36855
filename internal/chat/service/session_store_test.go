package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/service"
	maindomain "github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/memory"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newStore(t *testing.T, storage *memory.SessionStorage, opts ...service.StoreOption) *service.SessionStore {
	t.Helper()
	opts = append([]service.StoreOption{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithIDGenerator(sequentialIDs()),
	}, opts...)
	return service.NewSessionStore(context.Background(), storage, zap.NewNop(), opts...)
}

type capturePublisher struct {
	events []maindomain.Event
}

func (c *capturePublisher) Publish(e maindomain.Event) { c.events = append(c.events, e) }

func TestSessionStore_SeedsWhenEmpty(t *testing.T) {
	store := newStore(t, memory.NewSessionStorage())

	chats := store.ListChats()
	require.Len(t, chats, 2)
	assert.Equal(t, "seed-chat-1", chats[0].ID)
	assert.Equal(t, "seed-chat-2", chats[1].ID)
	assert.Equal(t, "seed-chat-1", store.ActiveChatID())
	assert.Equal(t, domain.RoleSystem, chats[0].Messages[0].Role)
	assert.Equal(t, domain.DefaultSettings(), store.Settings())
}

func TestSessionStore_MalformedBlobFallsBackToSeed(t *testing.T) {
	storage := memory.NewSessionStorage()
	storage.Put(domain.StorageKeyChats, []byte(`{"chats": "nope"`))
	storage.Put(domain.StorageKeySettings, []byte(`not json`))

	store := newStore(t, storage)

	assert.Len(t, store.ListChats(), 2)
	assert.Equal(t, "seed-chat-1", store.ActiveChatID())
	assert.Equal(t, domain.DefaultSettings(), store.Settings())
}

func TestSessionStore_CreateChatBecomesActiveAtFront(t *testing.T) {
	pub := &capturePublisher{}
	store := newStore(t, memory.NewSessionStorage(), service.WithPublisher(pub))

	chat := store.CreateChat(context.Background(), "  ")

	assert.Equal(t, service.DefaultChatTitle, chat.Title)
	assert.Equal(t, chat.ID, store.ActiveChatID())
	assert.Equal(t, chat.ID, store.ListChats()[0].ID)
	require.Len(t, chat.Messages, 1)
	assert.Equal(t, domain.RoleSystem, chat.Messages[0].Role)
	assert.Equal(t, domain.DefaultSystemPrompt, chat.Messages[0].Content)

	require.Len(t, pub.events, 1)
	assert.Equal(t, maindomain.EventChatCreated, pub.events[0].Type)
}

func TestSessionStore_DeleteNonActiveKeepsActive(t *testing.T) {
	store := newStore(t, memory.NewSessionStorage())

	require.NoError(t, store.DeleteChat(context.Background(), "seed-chat-2"))

	assert.Equal(t, "seed-chat-1", store.ActiveChatID())
	assert.Len(t, store.ListChats(), 1)
}

func TestSessionStore_DeleteOnlyActiveChatLeavesNoneActive(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewSessionStorage())
	require.NoError(t, store.DeleteChat(ctx, "seed-chat-2"))

	require.NoError(t, store.DeleteChat(ctx, "seed-chat-1"))

	assert.Empty(t, store.ActiveChatID())
	assert.Empty(t, store.ListChats())
}

func TestSessionStore_DeleteActiveFallsBackToMostRecent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewSessionStorage())
	created := store.CreateChat(ctx, "Groceries")

	require.NoError(t, store.DeleteChat(ctx, created.ID))
	assert.Equal(t, "seed-chat-1", store.ActiveChatID())
}

func TestSessionStore_DeleteUnknownChat(t *testing.T) {
	store := newStore(t, memory.NewSessionStorage())

	err := store.DeleteChat(context.Background(), "missing")

	var notFound *maindomain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
	assert.Len(t, store.ListChats(), 2)
}

func TestSessionStore_SetActiveMovesToFront(t *testing.T) {
	store := newStore(t, memory.NewSessionStorage())

	_, err := store.SetActiveChat(context.Background(), "seed-chat-2")
	require.NoError(t, err)

	assert.Equal(t, "seed-chat-2", store.ActiveChatID())
	assert.Equal(t, "seed-chat-2", store.ListChats()[0].ID)
}

func TestSessionStore_RenameRejectsEmptyTitle(t *testing.T) {
	store := newStore(t, memory.NewSessionStorage())

	_, err := store.RenameChat(context.Background(), "seed-chat-1", "   ")

	var validation *maindomain.ErrValidation
	assert.ErrorAs(t, err, &validation)

	chat, err := store.RenameChat(context.Background(), "seed-chat-1", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", chat.Title)
}

func TestSessionStore_PatchReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewSessionStorage())

	msg, err := store.AppendMessage(ctx, "seed-chat-1", domain.RoleAssistant, "")
	require.NoError(t, err)

	for _, content := range []string{"Hel", "Hello wor", "Hello world"} {
		c := content
		_, err := store.PatchMessage(ctx, "seed-chat-1", msg.ID, domain.MessagePatch{Content: &c})
		require.NoError(t, err)
	}
	pinned := true
	got, err := store.PatchMessage(ctx, "seed-chat-1", msg.ID, domain.MessagePatch{Pinned: &pinned})
	require.NoError(t, err)

	assert.Equal(t, "Hello world", got.Content)
	assert.True(t, got.Pinned)
}

func TestSessionStore_AppendRejectsInvalidRole(t *testing.T) {
	_, err := newStore(t, memory.NewSessionStorage()).AppendMessage(context.Background(), "seed-chat-1", domain.Role("robot"), "x")

	var validation *maindomain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}

func TestSessionStore_DeleteMessage(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewSessionStorage())

	require.NoError(t, store.DeleteMessage(ctx, "seed-chat-2", "seed-msg-4"))
	chat, err := store.GetChat("seed-chat-2")
	require.NoError(t, err)
	assert.Len(t, chat.Messages, 2)

	err = store.DeleteMessage(ctx, "seed-chat-2", "seed-msg-4")
	var notFound *maindomain.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestSessionStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewSessionStorage()
	store := newStore(t, storage)

	chat := store.CreateChat(ctx, "Trip")
	_, err := store.AppendMessage(ctx, chat.ID, domain.RoleUser, "Budget for Lisbon?")
	require.NoError(t, err)
	_, err = store.SetActiveChat(ctx, "seed-chat-2")
	require.NoError(t, err)
	_, err = store.UpdateSettings(ctx, domain.Settings{Tone: domain.ToneConcise, PaletteIndex: 3, MaxResponseLength: 256})
	require.NoError(t, err)

	reloaded := newStore(t, storage)

	assert.Equal(t, store.ListChats(), reloaded.ListChats())
	assert.Equal(t, "seed-chat-2", reloaded.ActiveChatID())
	assert.Equal(t, store.Settings(), reloaded.Settings())
}

func TestSessionStore_WriteThroughOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewSessionStorage()
	store := newStore(t, storage)

	before := storage.Writes()
	chat := store.CreateChat(ctx, "A")
	_, _ = store.RenameChat(ctx, chat.ID, "B")
	_ = store.DeleteChat(ctx, chat.ID)

	assert.Equal(t, before+3, storage.Writes())
}

func TestSessionStore_WriteFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewSessionStorage()
	metrics := observability.NewMetrics()
	store := newStore(t, storage, service.WithMetrics(metrics))

	storage.FailWrites(true)
	chat := store.CreateChat(ctx, "Offline")

	assert.Equal(t, chat.ID, store.ActiveChatID())
	assert.Len(t, store.ListChats(), 3)
	assert.Equal(t, 1.0, metrics.StorageFailures("save"))
}

func TestSessionStore_UpdateSettingsValidation(t *testing.T) {
	store := newStore(t, memory.NewSessionStorage())
	ctx := context.Background()

	tests := []struct {
		name string
		in   domain.Settings
	}{
		{"unknown tone", domain.Settings{Tone: "sarcastic"}},
		{"palette out of range", domain.Settings{PaletteIndex: domain.PaletteCount}},
		{"length too small", domain.Settings{MaxResponseLength: 10}},
		{"length too large", domain.Settings{MaxResponseLength: 100000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.UpdateSettings(ctx, tt.in)
			var validation *maindomain.ErrValidation
			assert.ErrorAs(t, err, &validation)
		})
	}
	assert.Equal(t, domain.DefaultSettings(), store.Settings())
}
