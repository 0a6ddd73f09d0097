package document

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge/carebridge/internal/domain/conversation"
)

// ConversationSource exposes a patient's documents to the conversation
// orchestrator as signed text URLs.
type ConversationSource struct {
	svc *Service
}

func NewConversationSource(svc *Service) *ConversationSource {
	return &ConversationSource{svc: svc}
}

func (s *ConversationSource) ListUserDocuments(ctx context.Context, userID uuid.UUID) ([]conversation.DocumentRef, error) {
	docs, _, err := s.svc.repo.ListByOwner(ctx, userID, 100, 0)
	if err != nil {
		return nil, err
	}

	refs := make([]conversation.DocumentRef, 0, len(docs))
	for _, d := range docs {
		ref := conversation.DocumentRef{ID: d.ID, HasText: d.TextStatus == TextReady}
		if ref.HasText {
			ref.TextURL = s.svc.TextURL(d)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
