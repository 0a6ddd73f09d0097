package conversation

import (
	"context"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	Update(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Conversation, int, error)
}

// MessageRepository persists conversation messages. List must return messages
// oldest first.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	List(ctx context.Context, conversationID uuid.UUID) ([]*Message, error)
	HasChildReply(ctx context.Context, parentID uuid.UUID) (bool, error)
}
