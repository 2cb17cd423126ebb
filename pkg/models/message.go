package models

import "time"

// MessageType distinguishes what a logged message carried.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Message is an immutable, append-only log entry tied to a conversation.
// Entries are never mutated after being written; they exist for audit and
// statistics only.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id" validate:"required"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	IsFromBot      bool        `json:"is_from_bot"`
	Timestamp      time.Time   `json:"timestamp"`
}
