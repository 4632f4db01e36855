// Package domain: chat.go define os tipos do Chat Session Store.
//
// Um Chat é uma conversa independente, com título e uma lista ordenada de mensagens.
// A primeira mensagem, quando existe, é sempre o system prompt vigente no momento
// da criação. O restante não tem sequência obrigatória de papéis.
//
// O fluxo completo de um envio:
//  1. Usuário manda a mensagem → BFA anexa a mensagem do usuário no chat
//  2. BFA anexa um placeholder vazio do assistente
//  3. BFA chama o backend conversacional (POST /chat)
//  4. O Assembler vai montando a resposta e substitui o conteúdo do placeholder a cada chunk
//  5. O estado final (Complete / Failed / Cancelled) fica registrado no SendResult
package domain

import "time"

// ============================================================
// Chaves de persistência (versionadas pelo sufixo)
// ============================================================

const (
	StorageKeyChats    = "finance-dashboard.chats.v1"
	StorageKeySettings = "finance-dashboard.settings.v1"
)

// MaxMessageLength é o tamanho máximo (em caracteres) de uma mensagem do usuário.
const MaxMessageLength = 4000

// Marcadores que prefixam respostas de erro.
// O de upstream (HTTP não-2xx) e o de rede são diferentes de propósito:
// a UI precisa distinguir os dois casos.
const (
	UpstreamFailureMarker = "⚠️ "
	NetworkFailureMarker  = "❌ "
)

// ============================================================
// Chat & Message
// ============================================================

// Role é o papel de quem escreveu a mensagem.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid indica se o papel pertence à enumeração.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message é uma entrada do log da conversa.
// Content só muda enquanto a resposta está sendo montada (streaming);
// Pinned pode ser alternado a qualquer momento.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Pinned    bool      `json:"pinned,omitempty"`
}

// Chat é uma conversa persistida.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Clone devolve uma cópia profunda (a lista de mensagens não é compartilhada).
func (c Chat) Clone() Chat {
	out := c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}

// Session é o blob gravado sob StorageKeyChats.
// Chats fica em ordem de uso mais recente primeiro.
type Session struct {
	Chats        []Chat `json:"chats"`
	ActiveChatID string `json:"activeChatId"`
}

// MessagePatch é a alteração parcial aceita por PatchMessage.
// Campos nil não mudam. Content substitui o texto inteiro (nunca concatena).
type MessagePatch struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}

// ============================================================
// Request/Response do envio
// ============================================================

// SendRequest é o body do POST /v1/chat/send.
// ChatID vazio cria um chat novo e usa o id dele direto.
type SendRequest struct {
	ChatID  string `json:"chatId,omitempty"`
	Message string `json:"message"`
}

// SendResult é devolvido quando a resposta do assistente termina (em qualquer estado final).
type SendResult struct {
	ChatID           string      `json:"chatId"`
	UserMessage      Message     `json:"userMessage"`
	AssistantMessage Message     `json:"assistantMessage"`
	State            StreamState `json:"state"`
}

// BackendRequest é o payload enviado ao backend conversacional (POST /chat).
type BackendRequest struct {
	Message      string `json:"message"`
	ChatID       string `json:"chatId"`
	SystemPrompt string `json:"systemPrompt"`
	Tone         Tone   `json:"tone"`
	Stream       bool   `json:"stream"`
	MaxTokens    int    `json:"maxTokens"`
}

// ============================================================
// Máquina de estados do Assembler
// ============================================================

// StreamState é o estado de uma montagem de resposta.
//
//	Idle → AwaitingHeaders → Streaming → Complete
//	qualquer estado não-Idle → Failed
//	qualquer estado não-final → Cancelled (abandono pelo usuário)
type StreamState string

const (
	StateIdle            StreamState = "idle"
	StateAwaitingHeaders StreamState = "awaiting_headers"
	StateStreaming       StreamState = "streaming"
	StateComplete        StreamState = "complete"
	StateFailed          StreamState = "failed"
	StateCancelled       StreamState = "cancelled"
)

// Terminal indica se o estado é final.
func (s StreamState) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}
