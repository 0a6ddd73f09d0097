package document

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const docCols = `id, owner_id, file_name, content_type, size, blob_id, summary,
	extracted_text, text_status, created_at, updated_at`

func (r *repoPG) scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.FileName, &d.ContentType, &d.Size, &d.BlobID, &d.Summary,
		&d.ExtractedText, &d.TextStatus, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO document (id, owner_id, file_name, content_type, size, blob_id, summary, extracted_text, text_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.OwnerID, d.FileName, d.ContentType, d.Size, d.BlobID, d.Summary, d.ExtractedText, d.TextStatus)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return r.scanDocument(r.conn(ctx).QueryRow(ctx, `SELECT `+docCols+` FROM document WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, d *Document) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE document SET file_name=$2, summary=$3, extracted_text=$4, text_status=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.FileName, d.Summary, d.ExtractedText, d.TextStatus)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM document WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM document WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+docCols+` FROM document WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Document
	for rows.Next() {
		d, err := r.scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}
