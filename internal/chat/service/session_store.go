package service

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	maindomain "github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// SessionStore: dono da coleção de chats e das configurações
// ============================================================
//
// Invariantes:
//   - chats fica em ordem de uso mais recente primeiro (criar ou ativar traz para a frente)
//   - toda mutação grava a coleção inteira no storage logo em seguida (write-through)
//   - falha de gravação é logada e engolida: o estado em memória continua correto
//   - blob ausente ou ilegível no boot vira o seed de dois chats, nunca erro
//
// Um único mutex protege tudo. Isso já serializa os patches de um mesmo chat
// (append → patch → patch...) e a ordem das gravações no storage.

// DefaultChatTitle é usado quando o chat é criado sem título.
const DefaultChatTitle = "New chat"

// SessionStore guarda os chats e as configurações do dashboard.
type SessionStore struct {
	mu       sync.Mutex
	chats    []domain.Chat
	activeID string
	settings domain.Settings

	storage   port.SessionStorage
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

// StoreOption customiza o SessionStore (usado pelos testes).
type StoreOption func(*SessionStore)

// WithClock troca a fonte de tempo.
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// WithIDGenerator troca o gerador de ids.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *SessionStore) { s.newID = newID }
}

// WithPublisher liga a publicação de eventos de mudança.
func WithPublisher(p port.EventPublisher) StoreOption {
	return func(s *SessionStore) { s.publisher = p }
}

// WithMetrics liga a contagem de falhas de storage.
func WithMetrics(m *observability.Metrics) StoreOption {
	return func(s *SessionStore) { s.metrics = m }
}

// NewSessionStore carrega o estado persistido (ou o seed) e devolve o store pronto.
func NewSessionStore(ctx context.Context, storage port.SessionStorage, logger *zap.Logger, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		storage: storage,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.settings = s.loadSettings(ctx)
	session, ok := s.loadSession(ctx)
	if !ok {
		session = seedSession(s.now(), s.settings.SystemPrompt)
		s.logger.Info("chat sessions seeded", zap.Int("chats", len(session.Chats)))
	}
	s.chats = session.Chats
	s.activeID = session.ActiveChatID
	if s.activeID != "" && s.indexOf(s.activeID) < 0 {
		s.activeID = ""
	}
	return s
}

// ============================================================
// Leitura
// ============================================================

// ListChats devolve uma cópia dos chats na ordem de recência.
func (s *SessionStore) ListChats() []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneChats()
}

// Session devolve chats e chat ativo lidos de uma vez só.
func (s *SessionStore) Session() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Session{Chats: s.cloneChats(), ActiveChatID: s.activeID}
}

func (s *SessionStore) cloneChats() []domain.Chat {
	out := make([]domain.Chat, len(s.chats))
	for i, c := range s.chats {
		out[i] = c.Clone()
	}
	return out
}

// GetChat devolve uma cópia do chat.
func (s *SessionStore) GetChat(id string) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Chat{}, chatNotFound(id)
	}
	return s.chats[i].Clone(), nil
}

// ActiveChatID devolve o chat ativo ("" quando não há).
func (s *SessionStore) ActiveChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Settings devolve as configurações atuais.
func (s *SessionStore) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ============================================================
// Mutações de chat
// ============================================================

// CreateChat cria um chat com a mensagem de sistema atual e o torna ativo.
func (s *SessionStore) CreateChat(ctx context.Context, title string) domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultChatTitle
	}
	now := s.now()
	chat := domain.Chat{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: now,
		Messages: []domain.Message{{
			ID:        s.newID(),
			Role:      domain.RoleSystem,
			Content:   s.settings.SystemPrompt,
			Timestamp: now,
		}},
	}
	s.chats = slices.Insert(s.chats, 0, chat)
	s.activeID = chat.ID

	s.persist(ctx)
	s.publish(maindomain.EventChatCreated, "chat", chat)
	return chat.Clone()
}

// DeleteChat remove o chat com todas as mensagens.
// Se era o ativo, a ativação passa para o mais recente restante (ou nenhum).
func (s *SessionStore) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return chatNotFound(id)
	}
	s.chats = slices.Delete(s.chats, i, i+1)
	if s.activeID == id {
		s.activeID = ""
		if len(s.chats) > 0 {
			s.activeID = s.chats[0].ID
		}
	}

	s.persist(ctx)
	s.publish(maindomain.EventChatDeleted, "chat", map[string]string{"id": id, "activeChatId": s.activeID})
	return nil
}

// RenameChat troca o título.
func (s *SessionStore) RenameChat(ctx context.Context, id, title string) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Chat{}, &maindomain.ErrValidation{Field: "title", Message: "title must not be empty"}
	}
	i := s.indexOf(id)
	if i < 0 {
		return domain.Chat{}, chatNotFound(id)
	}
	s.chats[i].Title = title

	s.persist(ctx)
	s.publish(maindomain.EventChatUpdated, "chat", map[string]string{"id": id, "title": title})
	return s.chats[i].Clone(), nil
}

// SetActiveChat marca o chat como ativo e o move para a frente da lista.
func (s *SessionStore) SetActiveChat(ctx context.Context, id string) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Chat{}, chatNotFound(id)
	}
	chat := s.chats[i]
	s.chats = slices.Delete(s.chats, i, i+1)
	s.chats = slices.Insert(s.chats, 0, chat)
	s.activeID = id

	s.persist(ctx)
	s.publish(maindomain.EventChatUpdated, "chat", map[string]string{"id": id, "activeChatId": id})
	return chat.Clone(), nil
}

// ============================================================
// Mutações de mensagem
// ============================================================

// AppendMessage acrescenta uma mensagem no fim do chat.
func (s *SessionStore) AppendMessage(ctx context.Context, chatID string, role domain.Role, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !role.Valid() {
		return domain.Message{}, &maindomain.ErrValidation{Field: "role", Message: "must be system, user or assistant"}
	}
	i := s.indexOf(chatID)
	if i < 0 {
		return domain.Message{}, chatNotFound(chatID)
	}
	msg := domain.Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	s.chats[i].Messages = append(s.chats[i].Messages, msg)

	s.persist(ctx)
	s.publish(maindomain.EventMessageCreated, "message", messageEvent{ChatID: chatID, Message: msg})
	return msg, nil
}

// PatchMessage aplica a alteração parcial. Content substitui o texto inteiro.
func (s *SessionStore) PatchMessage(ctx context.Context, chatID, messageID string, patch domain.MessagePatch) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ci, mi, err := s.locate(chatID, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	msg := &s.chats[ci].Messages[mi]
	if patch.Content != nil {
		msg.Content = *patch.Content
	}
	if patch.Pinned != nil {
		msg.Pinned = *patch.Pinned
	}

	s.persist(ctx)
	s.publish(maindomain.EventMessageUpdated, "message", messageEvent{ChatID: chatID, Message: *msg})
	return *msg, nil
}

// DeleteMessage remove uma mensagem.
func (s *SessionStore) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ci, mi, err := s.locate(chatID, messageID)
	if err != nil {
		return err
	}
	s.chats[ci].Messages = slices.Delete(s.chats[ci].Messages, mi, mi+1)

	s.persist(ctx)
	s.publish(maindomain.EventMessageDeleted, "message", map[string]string{"chatId": chatID, "id": messageID})
	return nil
}

// ============================================================
// Configurações
// ============================================================

// UpdateSettings valida e grava as configurações.
// Chats já existentes mantêm o system prompt com que foram criados.
func (s *SessionStore) UpdateSettings(ctx context.Context, in domain.Settings) (domain.Settings, error) {
	if in.Tone != "" && !in.Tone.Valid() {
		return domain.Settings{}, &maindomain.ErrValidation{Field: "tone", Message: "must be friendly, professional or concise"}
	}
	if in.PaletteIndex < 0 || in.PaletteIndex >= domain.PaletteCount {
		return domain.Settings{}, &maindomain.ErrValidation{Field: "paletteIndex", Message: "out of range"}
	}
	if in.MaxResponseLength != 0 &&
		(in.MaxResponseLength < domain.MinMaxResponseLength || in.MaxResponseLength > domain.MaxMaxResponseLength) {
		return domain.Settings{}, &maindomain.ErrValidation{Field: "maxResponseLength", Message: "out of range"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = in.Normalize()
	s.save(ctx, domain.StorageKeySettings, s.settings)
	return s.settings, nil
}

// ============================================================
// Persistência
// ============================================================

type messageEvent struct {
	ChatID  string         `json:"chatId"`
	Message domain.Message `json:"message"`
}

func (s *SessionStore) persist(ctx context.Context) {
	s.save(ctx, domain.StorageKeyChats, domain.Session{Chats: s.chats, ActiveChatID: s.activeID})
}

func (s *SessionStore) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.storage.Save(context.WithoutCancel(ctx), key, data)
	}
	if err != nil {
		s.logger.Warn("session storage write failed; state kept in memory only",
			zap.String("key", key),
			zap.Error(err),
		)
		if s.metrics != nil {
			s.metrics.IncrStorageFailure("save")
		}
	}
}

func (s *SessionStore) loadSession(ctx context.Context) (domain.Session, bool) {
	data, found, err := s.storage.Load(ctx, domain.StorageKeyChats)
	if err != nil {
		s.loadFailed(domain.StorageKeyChats, err)
		return domain.Session{}, false
	}
	if !found {
		return domain.Session{}, false
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil || session.Chats == nil {
		s.logger.Warn("malformed chat sessions ignored", zap.Error(err))
		return domain.Session{}, false
	}
	return session, true
}

func (s *SessionStore) loadSettings(ctx context.Context) domain.Settings {
	data, found, err := s.storage.Load(ctx, domain.StorageKeySettings)
	if err != nil {
		s.loadFailed(domain.StorageKeySettings, err)
		return domain.DefaultSettings()
	}
	if !found {
		return domain.DefaultSettings()
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		s.logger.Warn("malformed settings ignored", zap.Error(err))
		return domain.DefaultSettings()
	}
	return settings.Normalize()
}

func (s *SessionStore) loadFailed(key string, err error) {
	s.logger.Warn("session storage read failed; using defaults", zap.String("key", key), zap.Error(err))
	if s.metrics != nil {
		s.metrics.IncrStorageFailure("load")
	}
}

func (s *SessionStore) publish(eventType, entity string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(maindomain.NewEvent(eventType, entity, payload))
	}
}

func (s *SessionStore) indexOf(id string) int {
	return slices.IndexFunc(s.chats, func(c domain.Chat) bool { return c.ID == id })
}

func (s *SessionStore) locate(chatID, messageID string) (int, int, error) {
	ci := s.indexOf(chatID)
	if ci < 0 {
		return 0, 0, chatNotFound(chatID)
	}
	mi := slices.IndexFunc(s.chats[ci].Messages, func(m domain.Message) bool { return m.ID == messageID })
	if mi < 0 {
		return 0, 0, &maindomain.ErrNotFound{Resource: "message", ID: messageID}
	}
	return ci, mi, nil
}

func chatNotFound(id string) error {
	return &maindomain.ErrNotFound{Resource: "chat", ID: id}
}

// ============================================================
// Seed
// ============================================================

// seedSession devolve o conjunto fixo de dois chats usado quando não há estado salvo.
func seedSession(now time.Time, systemPrompt string) domain.Session {
	msg := func(id string, role domain.Role, content string) domain.Message {
		return domain.Message{ID: id, Role: role, Content: content, Timestamp: now}
	}
	return domain.Session{
		Chats: []domain.Chat{
			{
				ID:        "seed-chat-1",
				Title:     "Welcome",
				CreatedAt: now,
				Messages: []domain.Message{
					msg("seed-msg-1", domain.RoleSystem, systemPrompt),
					msg("seed-msg-2", domain.RoleAssistant, "Hi! I can help you understand your spending, set budgets and track your goals. What would you like to look at?"),
				},
			},
			{
				ID:        "seed-chat-2",
				Title:     "Budget tips",
				CreatedAt: now,
				Messages: []domain.Message{
					msg("seed-msg-3", domain.RoleSystem, systemPrompt),
					msg("seed-msg-4", domain.RoleUser, "How can I spend less on food?"),
					msg("seed-msg-5", domain.RoleAssistant, "Plan your meals for the week, shop with a list and keep takeout for special occasions. Setting a Food budget lets me warn you before you go over."),
				},
			},
		},
		ActiveChatID: "seed-chat-1",
	}
}
