package repository

import (
	"context"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx pgx.Tx) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.ChatMessage) error {
	images := m.Images
	if images == nil {
		images = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, images, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, m.Role, m.Content, images, m.CreatedAt,
	)
	return err
}

// ListRecent returns the newest limit messages of a session in chronological
// order.
func (r *MessageRepository) ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, role, content, images, created_at FROM (
			 SELECT id, session_id, role, content, images, created_at
			 FROM chat_messages
			 WHERE session_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Images, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
