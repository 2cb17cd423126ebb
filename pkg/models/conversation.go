package models

import "time"

// ConversationState is the bounded set of positions a live conversation can
// occupy. States are mapped onto flow nodes by the execution engine; they
// are not node ids themselves.
type ConversationState string

const (
	StateGreeting        ConversationState = "greeting"
	StateAwaitingService ConversationState = "awaiting_service"
	StateAwaitingDate    ConversationState = "awaiting_date"
	StateAwaitingTime    ConversationState = "awaiting_time"
	StateAwaitingPayment ConversationState = "awaiting_payment"
	StateCompleted       ConversationState = "completed"
)

// IsKnownState reports whether s is a recognized conversation state.
func IsKnownState(s ConversationState) bool {
	switch s {
	case StateGreeting, StateAwaitingService, StateAwaitingDate,
		StateAwaitingTime, StateAwaitingPayment, StateCompleted:
		return true
	default:
		return false
	}
}

// Conversation is the live, per-sender execution context. (TenantID,
// PhoneNumber) is unique: one active conversation per sender per tenant.
// Conversations are never deleted; "completed" is just another state value.
type Conversation struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"    validate:"required"`
	PhoneNumber     string            `json:"phone_number" validate:"required"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CurrentState    ConversationState `json:"current_state"`
	SelectedService string            `json:"selected_service,omitempty"`
	SelectedDate    string            `json:"selected_date,omitempty"`
	SelectedTime    string            `json:"selected_time,omitempty"`
	ContextData     map[string]any    `json:"context_data,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
