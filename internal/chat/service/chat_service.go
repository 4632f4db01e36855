// Package service: chat_service.go implementa o ChatService.
//
// ============================================================
// ARQUITETURA: envio sequencial explícito
// ============================================================
//
// O ChatService é o orquestrador da rota POST /v1/chat/send.
// Ele costura SessionStore, Assembler e o hub de eventos.
//
// Fluxo completo:
//  1. Valida o texto (vazio ou longo demais → erro antes de qualquer chamada de rede)
//  2. Sem chatId → cria o chat e usa o id devolvido direto (sem timer nem hand-off)
//  3. Anexa a mensagem do usuário e um placeholder vazio do assistente
//  4. Cancela qualquer envio ainda em curso no mesmo chat e registra o novo
//  5. Pega uma vaga no bulkhead e roda o Assembler
//  6. Cada chunk substitui o conteúdo inteiro do placeholder (o store publica o evento)
//  7. O texto final, inclusive de erro, vai para o placeholder e o SendResult é devolvido
//
// Falhas de transporte e upstream NUNCA voltam como erro: viram conteúdo
// da mensagem do assistente. Só validação e chat inexistente são erros.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	maindomain "github.com/boddenberg/finance-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// chatTracer é o tracer OpenTelemetry para o módulo de chat.
var chatTracer = otel.Tracer("chat/service")

// maxTitleRunes limita o título gerado a partir da primeira mensagem.
const maxTitleRunes = 40

// inflight é um envio em andamento. token distingue envios do mesmo chat.
type inflight struct {
	token  uint64
	cancel context.CancelFunc
}

// ChatService é o serviço principal do chat.
type ChatService struct {
	store     *SessionStore
	assembler *Assembler
	bulkhead  *resilience.Bulkhead
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger

	// streamTimeout é o prazo máximo de uma montagem (0 = sem prazo próprio)
	streamTimeout time.Duration

	mu        sync.Mutex
	inflight  map[string]inflight
	nextToken uint64
}

// NewChatService cria o ChatService com as dependências injetadas.
// publisher e metrics podem ser nil.
func NewChatService(
	store *SessionStore,
	assembler *Assembler,
	bulkhead *resilience.Bulkhead,
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	streamTimeout time.Duration,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		store:         store,
		assembler:     assembler,
		bulkhead:      bulkhead,
		publisher:     publisher,
		metrics:       metrics,
		streamTimeout: streamTimeout,
		logger:        logger,
		inflight:      make(map[string]inflight),
	}
}

// Store expõe o SessionStore para as rotas de CRUD.
func (s *ChatService) Store() *SessionStore {
	return s.store
}

// Send envia a mensagem e espera a resposta do assistente terminar.
// onChunk (opcional) recebe o texto acumulado a cada chunk; é usado pelo SSE.
func (s *ChatService) Send(ctx context.Context, chatID, text string, onChunk func(string)) (*domain.SendResult, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.Send")
	defer span.End()

	// Passo 1: validação de entrada
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &maindomain.ErrValidation{Field: "message", Message: "message must not be empty"}
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageLength {
		return nil, &maindomain.ErrValidation{Field: "message", Message: "message is too long"}
	}

	// Passo 2: chat novo quando não veio id
	if chatID == "" {
		chatID = s.store.CreateChat(ctx, titleFrom(text)).ID
	} else if _, err := s.store.GetChat(chatID); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.id", chatID))

	// Passo 3: mensagem do usuário + placeholder
	userMsg, err := s.store.AppendMessage(ctx, chatID, domain.RoleUser, text)
	if err != nil {
		return nil, err
	}
	placeholder, err := s.store.AppendMessage(ctx, chatID, domain.RoleAssistant, "")
	if err != nil {
		return nil, err
	}

	// Passo 4: um envio por chat
	runCtx, release := s.begin(ctx, chatID)
	defer release()

	settings := s.store.Settings()
	req := &domain.BackendRequest{
		Message:      text,
		ChatID:       chatID,
		SystemPrompt: settings.SystemPrompt,
		Tone:         settings.Tone,
		Stream:       settings.Streaming,
		MaxTokens:    settings.MaxResponseLength,
	}

	s.logger.Info("chat send started",
		zap.String("chat_id", chatID),
		zap.Int("message_length", len(text)),
		zap.Bool("stream", req.Stream),
	)

	// Passo 5: bulkhead + Assembler
	result := s.assemble(runCtx, chatID, placeholder.ID, req, onChunk)

	// Passo 7: conteúdo final, substituído por inteiro
	final, err := s.store.PatchMessage(context.WithoutCancel(ctx), chatID, placeholder.ID, domain.MessagePatch{Content: &result.Text})
	if err != nil {
		// o chat foi apagado durante o envio
		s.logger.Warn("chat removed while streaming", zap.String("chat_id", chatID), zap.Error(err))
		final = placeholder
		final.Content = result.Text
	}

	s.recordOutcome(result.State)
	s.logger.Info("chat send finished",
		zap.String("chat_id", chatID),
		zap.String("state", string(result.State)),
		zap.Int("chunks", result.Chunks),
	)
	span.SetAttributes(attribute.String("chat.state", string(result.State)))

	return &domain.SendResult{
		ChatID:           chatID,
		UserMessage:      userMsg,
		AssistantMessage: final,
		State:            result.State,
	}, nil
}

// Cancel aborta o envio em andamento no chat. Devolve false se não havia nenhum.
func (s *ChatService) Cancel(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.inflight[chatID]
	if !ok {
		return false
	}
	f.cancel()
	delete(s.inflight, chatID)
	return true
}

// Sending indica se há envio em andamento no chat.
func (s *ChatService) Sending(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[chatID]
	return ok
}

func (s *ChatService) assemble(ctx context.Context, chatID, placeholderID string, req *domain.BackendRequest, onChunk func(string)) AssemblyResult {
	if err := s.bulkhead.Acquire(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("no stream slot before deadline", zap.String("chat_id", chatID))
			return AssemblyResult{Text: timeoutText(""), State: domain.StateFailed}
		}
		return AssemblyResult{State: domain.StateCancelled}
	}
	defer s.bulkhead.Release()

	if s.metrics != nil {
		s.metrics.StreamStarted()
		defer s.metrics.StreamFinished()
	}

	return s.assembler.Run(ctx, req, Hooks{
		OnState: func(state domain.StreamState) {
			s.publish(maindomain.EventStreamState, "stream", map[string]string{
				"chatId":    chatID,
				"messageId": placeholderID,
				"state":     string(state),
			})
		},
		OnChunk: func(cumulative string) {
			if _, err := s.store.PatchMessage(ctx, chatID, placeholderID, domain.MessagePatch{Content: &cumulative}); err != nil {
				s.logger.Debug("patch during stream failed", zap.String("chat_id", chatID), zap.Error(err))
			}
			if onChunk != nil {
				onChunk(cumulative)
			}
		},
	})
}

// begin registra o envio, cancelando o anterior do mesmo chat.
func (s *ChatService) begin(ctx context.Context, chatID string) (context.Context, func()) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if s.streamTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.streamTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	s.mu.Lock()
	if prev, ok := s.inflight[chatID]; ok {
		s.logger.Info("cancelling previous send", zap.String("chat_id", chatID))
		prev.cancel()
	}
	s.nextToken++
	token := s.nextToken
	s.inflight[chatID] = inflight{token: token, cancel: cancel}
	s.mu.Unlock()

	return runCtx, func() {
		cancel()
		s.mu.Lock()
		if cur, ok := s.inflight[chatID]; ok && cur.token == token {
			delete(s.inflight, chatID)
		}
		s.mu.Unlock()
	}
}

func (s *ChatService) recordOutcome(state domain.StreamState) {
	if s.metrics == nil {
		return
	}
	switch state {
	case domain.StateComplete:
		s.metrics.IncrChatSend(observability.SendCompleted)
	case domain.StateCancelled:
		s.metrics.IncrChatSend(observability.SendCancelled)
	default:
		s.metrics.IncrChatSend(observability.SendFailed)
	}
}

func (s *ChatService) publish(eventType, entity string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(maindomain.NewEvent(eventType, entity, payload))
	}
}

// titleFrom gera o título do chat a partir da primeira mensagem.
func titleFrom(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= maxTitleRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "…"
}
