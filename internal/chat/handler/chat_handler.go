// Package handler: chat_handler.go implementa as rotas HTTP do chat:
// CRUD de chats e mensagens, envio (JSON ou SSE), cancelamento e configurações.
//
// ============================================================
// ENVIO: JSON x SSE
// ============================================================
//
// POST /v1/chat/send  {"chatId": "...", "message": "..."}
//
//   - Accept: application/json (padrão) → espera a resposta terminar e devolve o SendResult
//
//   - Accept: text/event-stream         → frames "data: {...}\n\n" a cada chunk:
//
//     {"type":"delta","content":"<texto acumulado>"}   substitui o texto exibido
//     {"type":"error","content":"⚠️ ..."}              quando a montagem falhou
//     {"type":"done","content":"<texto final>", ...}  sempre o último frame
//
// Os headers SSE só são escritos no primeiro frame. Assim, erro de validação
// ou chat inexistente ainda voltam como JSON 400/404.
//
// Se o cliente desconectar, o context da request cancela o envio e o
// texto parcial fica salvo na mensagem do assistente.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/domain"
	"github.com/boddenberg/finance-assistant-bfa-go/internal/chat/service"
	maindomain "github.com/boddenberg/finance-assistant-bfa-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// tracer é o tracer OpenTelemetry para o módulo chat/handler.
var tracer = otel.Tracer("chat/handler")

// maxBodyBytes limita o body JSON das rotas de chat.
const maxBodyBytes = 64 << 10

// ============================================================
// Chats
// ============================================================

// ListChatsHandler: GET /v1/chats
// Devolve {"chats": [...], "activeChatId": "..."} na ordem de recência.
func ListChatsHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/chats")
		defer span.End()

		writeJSON(w, http.StatusOK, chatSvc.Store().Session())
	}
}

// CreateChatHandler: POST /v1/chats  {"title": "..."} (body opcional)
func CreateChatHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chats")
		defer span.End()

		var req struct {
			Title string `json:"title"`
		}
		if !decodeOptional(w, r, &req) {
			return
		}

		chat := chatSvc.Store().CreateChat(ctx, req.Title)
		span.SetAttributes(attribute.String("chat.id", chat.ID))
		writeJSON(w, http.StatusCreated, chat)
	}
}

// RenameChatHandler: PATCH /v1/chats/{chatId}  {"title": "..."}
func RenameChatHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/chats/{chatId}")
		defer span.End()

		chatID := chi.URLParam(r, "chatId")
		var req struct {
			Title string `json:"title"`
		}
		if !decode(w, r, &req) {
			return
		}

		chat, err := chatSvc.Store().RenameChat(ctx, chatID, req.Title)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, chat)
	}
}

// DeleteChatHandler: DELETE /v1/chats/{chatId}?confirm=true
//
// Apagar um chat leva todas as mensagens junto, por isso a confirmação
// é obrigatória. Um envio em andamento no chat é cancelado antes.
func DeleteChatHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/chats/{chatId}")
		defer span.End()

		chatID := chi.URLParam(r, "chatId")
		span.SetAttributes(attribute.String("chat.id", chatID))

		if r.URL.Query().Get("confirm") != "true" {
			writeError(w, http.StatusBadRequest, "deleting a chat removes all of its messages; repeat with ?confirm=true")
			return
		}

		chatSvc.Cancel(chatID)
		if err := chatSvc.Store().DeleteChat(ctx, chatID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ActivateChatHandler: POST /v1/chats/{chatId}/activate
func ActivateChatHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chats/{chatId}/activate")
		defer span.End()

		chat, err := chatSvc.Store().SetActiveChat(ctx, chi.URLParam(r, "chatId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, chat)
	}
}

// ============================================================
// Mensagens
// ============================================================

// AppendMessageHandler: POST /v1/chats/{chatId}/messages  {"role": "user", "content": "..."}
// Só grava; não chama o backend de chat (para isso existe /v1/chat/send).
func AppendMessageHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chats/{chatId}/messages")
		defer span.End()

		var req struct {
			Role    domain.Role `json:"role"`
			Content string      `json:"content"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Role == "" {
			req.Role = domain.RoleUser
		}

		msg, err := chatSvc.Store().AppendMessage(ctx, chi.URLParam(r, "chatId"), req.Role, req.Content)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// PatchMessageHandler: PATCH /v1/chats/{chatId}/messages/{messageId}  {"content"?, "pinned"?}
func PatchMessageHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/chats/{chatId}/messages/{messageId}")
		defer span.End()

		var patch domain.MessagePatch
		if !decode(w, r, &patch) {
			return
		}
		if patch.Content == nil && patch.Pinned == nil {
			writeError(w, http.StatusBadRequest, "nothing to update: send content and/or pinned")
			return
		}

		msg, err := chatSvc.Store().PatchMessage(ctx, chi.URLParam(r, "chatId"), chi.URLParam(r, "messageId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// DeleteMessageHandler: DELETE /v1/chats/{chatId}/messages/{messageId}
func DeleteMessageHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/chats/{chatId}/messages/{messageId}")
		defer span.End()

		if err := chatSvc.Store().DeleteMessage(ctx, chi.URLParam(r, "chatId"), chi.URLParam(r, "messageId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Envio
// ============================================================

// SendHandler: POST /v1/chat/send
func SendHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat/send")
		defer span.End()

		var req domain.SendRequest
		if !decode(w, r, &req) {
			return
		}

		if !wantsEventStream(r) {
			result, err := chatSvc.Send(ctx, req.ChatID, req.Message, nil)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}

		sse := newSSEWriter(w)
		result, err := chatSvc.Send(ctx, req.ChatID, req.Message, func(cumulative string) {
			sse.frame(sseFrame{Type: "delta", Content: cumulative})
		})
		if err != nil {
			if sse.started {
				sse.frame(sseFrame{Type: "error", Content: err.Error()})
				sse.frame(sseFrame{Type: "done"})
				return
			}
			handleServiceError(w, err, logger)
			return
		}

		if result.State == domain.StateFailed {
			sse.frame(sseFrame{Type: "error", Content: result.AssistantMessage.Content})
		}
		sse.frame(sseFrame{
			Type:      "done",
			Content:   result.AssistantMessage.Content,
			ChatID:    result.ChatID,
			MessageID: result.AssistantMessage.ID,
			State:     result.State,
		})
	}
}

// CancelSendHandler: DELETE /v1/chats/{chatId}/stream
// Responde {"cancelled": false} quando não havia envio em andamento.
func CancelSendHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/chats/{chatId}/stream")
		defer span.End()

		chatID := chi.URLParam(r, "chatId")
		cancelled := chatSvc.Cancel(chatID)
		if cancelled {
			logger.Info("chat send cancelled by client", zap.String("chat_id", chatID))
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
	}
}

// ============================================================
// Configurações
// ============================================================

// GetSettingsHandler: GET /v1/settings
func GetSettingsHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, chatSvc.Store().Settings())
	}
}

// UpdateSettingsHandler: PUT /v1/settings (substitui o blob inteiro)
func UpdateSettingsHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/settings")
		defer span.End()

		settings := domain.DefaultSettings()
		if !decode(w, r, &settings) {
			return
		}

		saved, err := chatSvc.Store().UpdateSettings(ctx, settings)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// ============================================================
// SSE
// ============================================================

type sseFrame struct {
	Type      string             `json:"type"`
	Content   string             `json:"content"`
	ChatID    string             `json:"chatId,omitempty"`
	MessageID string             `json:"messageId,omitempty"`
	State     domain.StreamState `json:"state,omitempty"`
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: f}
}

func (s *sseWriter) frame(v sseFrame) {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = io.WriteString(s.w, "data: "+string(b)+"\n\n")
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// ============================================================
// Helpers: funções utilitárias do chat handler
// ============================================================

// decode lê o body JSON obrigatório; em caso de erro já responde 400.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptional aceita body vazio.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON serializa data como JSON e escreve na response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError escreve uma resposta de erro padronizada.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleServiceError mapeia erros de domínio para HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *maindomain.ErrNotFound
	var validation *maindomain.ErrValidation
	var conflict *maindomain.ErrConflict

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error())
	default:
		logger.Error("unexpected error in chat handler", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
