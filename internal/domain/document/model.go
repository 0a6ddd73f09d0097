package document

import (
	"time"

	"github.com/google/uuid"
)

// Text extraction outcomes. Only documents with TextReady are offered to the
// assistant as context.
const (
	TextPending = "pending"
	TextReady   = "ready"
	TextFailed  = "failed"
)

// Document is an uploaded patient file with its extracted text, if any.
type Document struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	OwnerID       uuid.UUID  `db:"owner_id" json:"owner_id"`
	FileName      string     `db:"file_name" json:"file_name"`
	ContentType   string     `db:"content_type" json:"content_type"`
	Size          int64      `db:"size" json:"size"`
	BlobID        string     `db:"blob_id" json:"-"`
	Summary       *string    `db:"summary" json:"summary,omitempty"`
	ExtractedText *string    `db:"extracted_text" json:"-"`
	TextStatus    string     `db:"text_status" json:"text_status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
