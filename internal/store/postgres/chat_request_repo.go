package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

const chatRequestColumns = `id, from_user_id, to_user_id, message, status, created_at, expires_at`

type ChatRequestRepo struct {
	db *sql.DB
}

func NewChatRequestRepo(db *sql.DB) *ChatRequestRepo {
	return &ChatRequestRepo{db: db}
}

var _ domain.ChatRequestRepository = (*ChatRequestRepo)(nil)

func (r *ChatRequestRepo) Create(ctx context.Context, req *domain.ChatRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_requests (id, from_user_id, to_user_id, message, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.ID, req.FromUserID, req.ToUserID, req.Message, req.Status, req.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert chat request: %w", err)
	}
	return nil
}

func (r *ChatRequestRepo) GetByID(ctx context.Context, id string) (*domain.ChatRequest, error) {
	req := &domain.ChatRequest{}
	err := r.db.QueryRowContext(ctx, `SELECT `+chatRequestColumns+` FROM chat_requests WHERE id = $1`, id).Scan(
		&req.ID, &req.FromUserID, &req.ToUserID, &req.Message,
		&req.Status, &req.CreatedAt, &req.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat request: %w", err)
	}
	return req, nil
}

func (r *ChatRequestRepo) ListPendingForUser(ctx context.Context, userID int64) ([]*domain.ChatRequest, error) {
	query := `
		SELECT ` + chatRequestColumns + `
		FROM chat_requests
		WHERE to_user_id = $1 AND status = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, domain.ProposalPending)
	if err != nil {
		return nil, fmt.Errorf("list pending chat requests: %w", err)
	}
	defer rows.Close()

	var res []*domain.ChatRequest
	for rows.Next() {
		req := &domain.ChatRequest{}
		if err := rows.Scan(
			&req.ID, &req.FromUserID, &req.ToUserID, &req.Message,
			&req.Status, &req.CreatedAt, &req.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat request: %w", err)
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

func (r *ChatRequestRepo) FindPendingBetween(ctx context.Context, fromUserID, toUserID int64) (*domain.ChatRequest, error) {
	req := &domain.ChatRequest{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+chatRequestColumns+`
		FROM chat_requests
		WHERE status = $1
		AND ((from_user_id = $2 AND to_user_id = $3) OR (from_user_id = $3 AND to_user_id = $2))
		LIMIT 1
	`, domain.ProposalPending, fromUserID, toUserID).Scan(
		&req.ID, &req.FromUserID, &req.ToUserID, &req.Message,
		&req.Status, &req.CreatedAt, &req.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending chat request: %w", err)
	}
	return req, nil
}

func (r *ChatRequestRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE chat_requests SET status = $1 WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update chat request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}
