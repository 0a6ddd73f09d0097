package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/llm"
	"github.com/carebridge/carebridge/internal/platform/websocket"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrForbidden            = errors.New("conversation belongs to another user")
	ErrAssistantUnavailable = errors.New("assistant is unavailable")
	ErrAlreadyAnswered      = errors.New("message already has a reply")
	ErrInvalidInput         = errors.New("invalid input")
)

type Service struct {
	convs     ConversationRepository
	msgs      MessageRepository
	docs      DocumentSource
	fetcher   TextFetcher
	assistant llm.Client
	publisher websocket.EventPublisher
	logger    zerolog.Logger

	fetchTimeout     time.Duration
	fetchConcurrency int
}

func NewService(
	convs ConversationRepository,
	msgs MessageRepository,
	docs DocumentSource,
	fetcher TextFetcher,
	assistant llm.Client,
	publisher websocket.EventPublisher,
	fetchTimeout time.Duration,
	fetchConcurrency int,
	logger zerolog.Logger,
) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	if fetchConcurrency <= 0 {
		fetchConcurrency = 8
	}
	return &Service{
		convs:            convs,
		msgs:             msgs,
		docs:             docs,
		fetcher:          fetcher,
		assistant:        assistant,
		publisher:        publisher,
		logger:           logger,
		fetchTimeout:     fetchTimeout,
		fetchConcurrency: fetchConcurrency,
	}
}

// ── Conversation CRUD ──

func (s *Service) Create(ctx context.Context, patientID uuid.UUID, title string, convContext *string) (*Conversation, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if title == "" {
		title = "New conversation"
	}

	c := &Conversation{
		PatientID: patientID,
		Title:     title,
		Context:   convContext,
		Status:    StatusActive,
	}
	if err := s.convs.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Get returns a conversation after verifying the caller owns it.
func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID) (*Conversation, error) {
	c, err := s.convs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if c.PatientID != callerID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	return s.convs.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	c, err := s.Get(ctx, id, callerID)
	if err != nil {
		return err
	}
	return s.convs.Delete(ctx, c.ID)
}

// UpdateStatus drives the conversation lifecycle. Completing a conversation
// stamps its end time; archived conversations cannot change again.
func (s *Service) UpdateStatus(ctx context.Context, id, callerID uuid.UUID, status string) (*Conversation, error) {
	c, err := s.Get(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	next, err := applyTransition(c.Status, status)
	if err != nil {
		return nil, err
	}

	c.Status = next
	if next == StatusCompleted {
		now := time.Now().UTC()
		c.EndTime = &now
	}
	if err := s.convs.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return c, nil
}

// ListMessages returns the conversation history oldest first.
func (s *Service) ListMessages(ctx context.Context, id, callerID uuid.UUID) ([]*Message, error) {
	c, err := s.Get(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	return s.msgs.List(ctx, c.ID)
}

// ── Turn orchestration ──

type SubmitInput struct {
	ConversationID uuid.UUID
	PatientID      uuid.UUID
	Content        string
	MessageType    string
	Metadata       map[string]interface{}
	// RegenerateOf asks for a reply to an existing patient message instead of
	// appending a new one. Refused if that message was already answered.
	RegenerateOf *uuid.UUID
}

// SubmitMessage runs one conversation turn: it stores the patient's message,
// assembles context from the history and the patient's document texts, asks
// the assistant for a single completion, and stores the reply linked to the
// patient message.
//
// The patient's message is durable before the remote call starts, so an
// assistant failure never loses it. Document fetch problems only shrink the
// context, they never fail the turn.
func (s *Service) SubmitMessage(ctx context.Context, in SubmitInput) (*Message, error) {
	if in.MessageType == "" {
		in.MessageType = MessageTypeText
	}
	if in.MessageType != MessageTypeText {
		return nil, fmt.Errorf("%w: unsupported message_type: %s", ErrInvalidInput, in.MessageType)
	}
	if in.RegenerateOf == nil && strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	conv, err := s.convs.GetByID(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.PatientID != in.PatientID {
		return nil, ErrForbidden
	}

	var patientMsg *Message
	if in.RegenerateOf != nil {
		patientMsg, err = s.resolveRegenerate(ctx, conv, *in.RegenerateOf)
		if err != nil {
			return nil, err
		}
	} else {
		patientMsg = &Message{
			ConversationID: conv.ID,
			PatientID:      &in.PatientID,
			Content:        in.Content,
			MessageType:    in.MessageType,
			Metadata:       in.Metadata,
		}
		if err := s.msgs.Append(ctx, patientMsg); err != nil {
			return nil, fmt.Errorf("store message: %w", err)
		}
		s.notify(ctx, conv.ID, patientMsg)
	}

	history, err := s.msgs.List(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	texts := s.fetchDocumentTexts(ctx, in.PatientID)
	promptCtx := buildContext(history, texts)

	reply, err := s.assistant.Complete(ctx, promptCtx)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("completion call failed")
		return nil, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	assistantMsg := &Message{
		ConversationID:  conv.ID,
		Content:         reply,
		MessageType:     MessageTypeText,
		ParentMessageID: &patientMsg.ID,
	}
	if err := s.msgs.Append(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}
	s.notify(ctx, conv.ID, assistantMsg)

	return assistantMsg, nil
}

// resolveRegenerate validates a regenerate request against the triggering
// message. A message that already has a child reply is refused so a retried
// turn cannot double-answer it.
func (s *Service) resolveRegenerate(ctx context.Context, conv *Conversation, msgID uuid.UUID) (*Message, error) {
	m, err := s.msgs.GetByID(ctx, msgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.ConversationID != conv.ID {
		return nil, ErrMessageNotFound
	}
	if m.FromAssistant() {
		return nil, fmt.Errorf("%w: cannot regenerate a reply to an assistant message", ErrInvalidInput)
	}

	answered, err := s.msgs.HasChildReply(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing reply: %w", err)
	}
	if answered {
		return nil, ErrAlreadyAnswered
	}
	return m, nil
}

// fetchDocumentTexts gathers the text of every document the patient uploaded
// that has one. Fetches run concurrently with a bounded number in flight and a
// per-fetch deadline; a failed or empty fetch is skipped, never included
// partially, and never cancels the others.
func (s *Service) fetchDocumentTexts(ctx context.Context, patientID uuid.UUID) []string {
	refs, err := s.docs.ListUserDocuments(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("document listing failed, answering without documents")
		return nil
	}

	var withText []DocumentRef
	for _, ref := range refs {
		if ref.HasText {
			withText = append(withText, ref)
		}
	}
	if len(withText) == 0 {
		return nil
	}

	results := make([]string, len(withText))
	sem := make(chan struct{}, s.fetchConcurrency)
	var wg sync.WaitGroup

	for i, ref := range withText {
		wg.Add(1)
		go func(i int, ref DocumentRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
			defer cancel()

			text, err := s.fetcher.FetchText(fetchCtx, ref.TextURL)
			if err != nil {
				s.logger.Warn().Err(err).Str("document_id", ref.ID.String()).Msg("document text fetch failed, skipping")
				return
			}
			results[i] = text
		}(i, ref)
	}
	wg.Wait()

	var texts []string
	for _, t := range results {
		if t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

// buildContext assembles the completion context: the fixed system prompt, an
// optional single block with all fetched document texts, then the history with
// roles derived from who authored each message.
func buildContext(history []*Message, docTexts []string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	if len(docTexts) > 0 {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: strings.Join(docTexts, "\n")})
	}

	for _, m := range history {
		role := llm.RoleUser
		if m.FromAssistant() {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

func (s *Service) notify(ctx context.Context, conversationID uuid.UUID, m *Message) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = s.publisher.Publish(ctx, websocket.Event{
		Type:       websocket.EventMessageCreated,
		Topic:      websocket.ConversationTopic(conversationID.String()),
		ResourceID: m.ID.String(),
		Timestamp:  time.Now().UTC(),
		Data:       data,
	})
}
