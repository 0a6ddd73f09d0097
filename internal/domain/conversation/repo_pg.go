package conversation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/carebridge/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// ── Conversations ──

type conversationRepoPG struct{ pool *pgxpool.Pool }

func NewConversationRepoPG(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepoPG{pool: pool}
}

const convCols = `id, patient_id, title, context, status, end_time, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.PatientID, &c.Title, &c.Context, &c.Status, &c.EndTime, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *conversationRepoPG) Create(ctx context.Context, c *Conversation) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO conversation (id, patient_id, title, context, status)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.PatientID, c.Title, c.Context, c.Status)
	return err
}

func (r *conversationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	return scanConversation(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+convCols+` FROM conversation WHERE id = $1`, id))
}

func (r *conversationRepoPG) Update(ctx context.Context, c *Conversation) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE conversation SET title=$2, context=$3, status=$4, end_time=$5, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Title, c.Context, c.Status, c.EndTime)
	return err
}

func (r *conversationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM conversation WHERE id = $1`, id)
	return err
}

func (r *conversationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM conversation WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+convCols+` FROM conversation WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

// ── Messages ──

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

const msgCols = `id, conversation_id, patient_id, content, message_type, metadata, parent_message_id, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.PatientID, &m.Content, &m.MessageType, &m.Metadata, &m.ParentMessageID, &m.CreatedAt)
	return &m, err
}

func (r *messageRepoPG) Append(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO message (id, conversation_id, patient_id, content, message_type, metadata, parent_message_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.PatientID, m.Content, m.MessageType, m.Metadata, m.ParentMessageID,
	).Scan(&m.CreatedAt)
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+msgCols+` FROM message WHERE id = $1`, id))
}

// List returns the full history oldest first. The id tiebreak keeps ordering
// stable for messages created in the same microsecond.
func (r *messageRepoPG) List(ctx context.Context, conversationID uuid.UUID) ([]*Message, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+msgCols+` FROM message WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *messageRepoPG) HasChildReply(ctx context.Context, parentID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM message WHERE parent_message_id = $1)`, parentID).Scan(&exists)
	return exists, err
}
