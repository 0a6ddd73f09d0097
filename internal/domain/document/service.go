package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/blobstore"
	"github.com/carebridge/carebridge/internal/platform/llm"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrForbidden        = errors.New("document belongs to another user")
	ErrTextUnavailable  = errors.New("document has no extracted text")
	ErrInvalidInput     = errors.New("invalid input")
)

// summaryCharLimit caps how much document text is sent to the assistant when
// generating an upload summary.
const summaryCharLimit = 8000

type Service struct {
	repo      Repository
	blobs     blobstore.BlobStore
	signer    *blobstore.URLSigner
	baseURL   string
	assistant llm.Client
	logger    zerolog.Logger
}

// NewService wires the document domain. The assistant client is optional; when
// nil, uploads skip summary generation.
func NewService(repo Repository, blobs blobstore.BlobStore, signer *blobstore.URLSigner, baseURL string, assistant llm.Client, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, signer: signer, baseURL: baseURL, assistant: assistant, logger: logger}
}

type UploadInput struct {
	OwnerID     uuid.UUID
	FileName    string
	ContentType string
	Content     io.Reader
}

// Upload stores the raw file, extracts its text, and records the document.
// Extraction and summarization are best effort: a file we cannot read is still
// stored, with text_status set to failed.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Document, error) {
	if in.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalidInput)
	}
	if in.FileName == "" {
		return nil, blobstore.ErrMissingFileName
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, blobstore.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > blobstore.MaxFileSize {
		return nil, blobstore.ErrFileTooLarge
	}

	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    in.FileName,
		ContentType: in.ContentType,
		OwnerID:     in.OwnerID.String(),
	}, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	doc := &Document{
		OwnerID:     in.OwnerID,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Size:        meta.Size,
		BlobID:      meta.ID,
		TextStatus:  TextFailed,
	}

	text, err := ExtractText(in.ContentType, data)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("file_name", in.FileName).Msg("text extraction failed")
	case text == "":
		s.logger.Warn().Str("file_name", in.FileName).Msg("document contains no text")
	default:
		doc.ExtractedText = &text
		doc.TextStatus = TextReady
		doc.Summary = s.summarize(ctx, text)
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *Service) summarize(ctx context.Context, text string) *string {
	if s.assistant == nil {
		return nil
	}
	if len(text) > summaryCharLimit {
		text = text[:summaryCharLimit]
	}

	sumCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	summary, err := s.assistant.Complete(sumCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Summarize the following medical document in at most two sentences."},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("document summary generation failed")
		return nil
	}
	return &summary
}

// Get returns a document after an ownership check. Only the owner and admins
// may read a document.
func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID, callerRole string) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if doc.OwnerID != callerID && callerRole != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	return doc, nil
}

// ListForOwner returns the caller's own documents.
func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Download streams the original uploaded file.
func (s *Service) Download(ctx context.Context, id, callerID uuid.UUID, callerRole string) (io.ReadCloser, *Document, error) {
	doc, err := s.Get(ctx, id, callerID, callerRole)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Download(ctx, doc.BlobID)
	if err != nil {
		return nil, nil, fmt.Errorf("download blob: %w", err)
	}
	return rc, doc, nil
}

// Delete removes the document record and its blob. The blob removal is best
// effort so a storage hiccup does not leave the record behind.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID, callerRole string) error {
	doc, err := s.Get(ctx, id, callerID, callerRole)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.blobs.Delete(ctx, doc.BlobID); err != nil {
		s.logger.Warn().Err(err).Str("blob_id", doc.BlobID).Msg("blob removal failed")
	}
	return nil
}

// TextURL builds a signed, time-limited URL serving the document's extracted
// text. The token only grants access to this one document.
func (s *Service) TextURL(doc *Document) string {
	return fmt.Sprintf("%s/api/documents/%s/text?token=%s", s.baseURL, doc.ID, s.signer.Sign(doc.ID.String()))
}

// GetTextByToken serves extracted text for token-bearing callers. The token is
// checked against this specific document id, so a leaked URL cannot be replayed
// for other documents.
func (s *Service) GetTextByToken(ctx context.Context, id uuid.UUID, token string) (string, error) {
	if err := s.signer.Verify(id.String(), token); err != nil {
		return "", ErrForbidden
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	if doc.TextStatus != TextReady || doc.ExtractedText == nil {
		return "", ErrTextUnavailable
	}
	return *doc.ExtractedText, nil
}
