package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (content, message_type, conversation_id, sender_id, file_path, fully_read_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		m.Content,
		m.MessageType,
		m.ConversationID,
		m.SenderID,
		m.FilePath,
		m.FullyReadAt,
		m.IsDeleted,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, content, message_type, conversation_id, sender_id, created_at, file_path, fully_read_at, is_deleted
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.Content,
			&m.MessageType,
			&m.ConversationID,
			&m.SenderID,
			&m.CreatedAt,
			&m.FilePath,
			&m.FullyReadAt,
			&m.IsDeleted,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) MarkAllReadInConversation(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET fully_read_at = NOW()
		WHERE conversation_id = $1 AND sender_id <> $2 AND fully_read_at IS NULL
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (r *MessageRepo) PruneOld(ctx context.Context, conversationID int64, keepLimit int) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE id IN (
			SELECT id FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)
	`, conversationID, keepLimit)
	if err != nil {
		return fmt.Errorf("prune old messages: %w", err)
	}
	return nil
}
