package domain

import "time"

// Event é a notificação empurrada para os dashboards conectados via websocket.
type Event struct {
	Type      string    `json:"type"`
	Entity    string    `json:"entity"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tipos de evento publicados pelo BFA.
const (
	EventChatCreated     = "chat.created"
	EventChatDeleted     = "chat.deleted"
	EventChatUpdated     = "chat.updated"
	EventMessageCreated  = "message.created"
	EventMessageUpdated  = "message.updated"
	EventMessageDeleted  = "message.deleted"
	EventStreamState     = "stream.state"
	EventExpensesChanged = "expenses.changed"
	EventBudgetsChanged  = "budgets.changed"
	EventGoalsChanged    = "goals.changed"
)

// NewEvent monta um evento com timestamp UTC.
func NewEvent(eventType, entity string, payload any) Event {
	return Event{Type: eventType, Entity: entity, Payload: payload, Timestamp: time.Now().UTC()}
}
