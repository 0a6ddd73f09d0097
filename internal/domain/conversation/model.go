package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation lifecycle states.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// MessageTypeText is the only message type patients may submit today.
const MessageTypeText = "text"

// Conversation is a chat thread owned by one patient.
type Conversation struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	Title     string     `db:"title" json:"title"`
	Context   *string    `db:"context" json:"context,omitempty"`
	Status    string     `db:"status" json:"status"`
	EndTime   *time.Time `db:"end_time" json:"end_time,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Message is one entry in a conversation. A nil PatientID means the assistant
// authored it; ParentMessageID links an assistant reply back to the patient
// message that triggered it.
type Message struct {
	ID              uuid.UUID              `db:"id" json:"id"`
	ConversationID  uuid.UUID              `db:"conversation_id" json:"conversation_id"`
	PatientID       *uuid.UUID             `db:"patient_id" json:"patient_id,omitempty"`
	Content         string                 `db:"content" json:"content"`
	MessageType     string                 `db:"message_type" json:"message_type"`
	Metadata        map[string]interface{} `db:"metadata" json:"metadata,omitempty"`
	ParentMessageID *uuid.UUID             `db:"parent_message_id" json:"parent_message_id,omitempty"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
}

// FromAssistant reports whether the assistant authored this message.
func (m *Message) FromAssistant() bool {
	return m.PatientID == nil
}
