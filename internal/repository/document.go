package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentSelect = `SELECT d.id, d.user_id, d.session_id, d.filename, d.text_count, d.table_count,
       d.image_count, d.size_bytes, d.uploaded_at,
       COALESCE(ARRAY(SELECT u.unit_id::text FROM document_units u WHERE u.document_id = d.id ORDER BY u.unit_id), '{}')
FROM documents d`

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var sessionID *string
	err := row.Scan(&d.ID, &d.UserID, &sessionID, &d.Filename, &d.TextCount, &d.TableCount,
		&d.ImageCount, &d.SizeBytes, &d.UploadedAt, &d.UnitIDs)
	if err != nil {
		return nil, err
	}
	d.SessionID = derefString(sessionID)
	return &d, nil
}

// Create stores the record and its unit links in one statement.
func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	unitIDs := d.UnitIDs
	if unitIDs == nil {
		unitIDs = []string{}
	}
	_, err := r.db.Exec(ctx,
		`WITH doc AS (
			 INSERT INTO documents (id, user_id, session_id, filename, text_count, table_count, image_count, size_bytes, uploaded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id
		 )
		 INSERT INTO document_units (document_id, unit_id)
		 SELECT doc.id, unit_id::uuid FROM doc, unnest($10::text[]) AS unit_id`,
		d.ID, d.UserID, nullableString(d.SessionID), d.Filename, d.TextCount, d.TableCount,
		d.ImageCount, d.SizeBytes, d.UploadedAt, unitIDs,
	)
	return err
}

func (r *DocumentRepository) GetForUser(ctx context.Context, id, userID string) (*domain.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx, documentSelect+` WHERE d.id = $1 AND d.user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByUser pages a user's documents, newest first. A non-empty sessionID
// restricts the list to that session.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID, sessionID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error) {
	limit = pagination.ClampLimit(limit)

	var ts *time.Time
	var lastID *string
	if cursor != nil {
		ts, lastID = &cursor.Timestamp, &cursor.LastID
	}
	rows, err := r.db.Query(ctx,
		documentSelect+`
		 WHERE d.user_id = $1
		   AND ($2::uuid IS NULL OR d.session_id = $2::uuid)
		   AND ($3::timestamptz IS NULL OR (d.uploaded_at, d.id) < ($3, $4::uuid))
		 ORDER BY d.uploaded_at DESC, d.id DESC
		 LIMIT $5`,
		userID, nullableString(sessionID), ts, lastID, limit+1,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := pagination.Trim(docs, limit,
		func(d *domain.Document) string { return d.ID },
		func(d *domain.Document) time.Time { return d.UploadedAt },
	)
	return &page, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id, userID string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
