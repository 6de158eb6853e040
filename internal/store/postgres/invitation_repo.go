package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

const invitationColumns = `id, conversation_id, inviter_id, invitee_id, status, created_at, expires_at`

type InvitationRepo struct {
	db *sql.DB
}

func NewInvitationRepo(db *sql.DB) *InvitationRepo {
	return &InvitationRepo{db: db}
}

var _ domain.InvitationRepository = (*InvitationRepo)(nil)

func (r *InvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations (id, conversation_id, inviter_id, invitee_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inv.ID, inv.ConversationID, inv.InviterID, inv.InviteeID, inv.Status, inv.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepo) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	err := r.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id).Scan(
		&inv.ID, &inv.ConversationID, &inv.InviterID, &inv.InviteeID,
		&inv.Status, &inv.CreatedAt, &inv.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepo) ListPendingForUser(ctx context.Context, userID int64) ([]*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE invitee_id = $1 AND status = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, domain.ProposalPending)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Invitation
	for rows.Next() {
		inv := &domain.Invitation{}
		if err := rows.Scan(
			&inv.ID, &inv.ConversationID, &inv.InviterID, &inv.InviteeID,
			&inv.Status, &inv.CreatedAt, &inv.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (r *InvitationRepo) FindPending(ctx context.Context, conversationID, inviteeID int64) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE conversation_id = $1 AND invitee_id = $2 AND status = $3
		LIMIT 1
	`, conversationID, inviteeID, domain.ProposalPending).Scan(
		&inv.ID, &inv.ConversationID, &inv.InviterID, &inv.InviteeID,
		&inv.Status, &inv.CreatedAt, &inv.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending invitation: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET status = $1 WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update invitation status: %w", err)
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
