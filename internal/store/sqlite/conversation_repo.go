package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

const conversationColumns = `id, name, is_group, created_by, max_members, is_public, only_admins_invite, is_archived, created_at, updated_at`

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, participantIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (name, is_group, created_by, max_members, is_public, only_admins_invite, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, c.Name, c.IsGroup, c.CreatedBy, c.MaxMembers, c.IsPublic, c.OnlyAdminsInvite)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_participants (user_id, conversation_id, joined_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
		`, uid, id); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	// The creator of a group starts out as its only admin.
	if c.IsGroup && c.CreatedBy != 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_admins (user_id, conversation_id)
			VALUES (?, ?)
		`, c.CreatedBy, id); err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.IsGroup, &c.CreatedBy, &c.MaxMembers,
		&c.IsPublic, &c.OnlyAdminsInvite, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	query := `
		SELECT c.id, c.name, c.is_group, c.created_by, c.max_members, c.is_public, c.only_admins_invite, c.is_archived, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.updated_at DESC
	`
	return r.queryConversations(ctx, query, userID)
}

func (r *ConversationRepo) ListPublicGroups(ctx context.Context, limit int) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE is_group = 1 AND is_public = 1 AND is_archived = 0
		ORDER BY updated_at DESC
		LIMIT ?
	`
	return r.queryConversations(ctx, query, limit)
}

// MarkAsRead is a single atomic statement so interleaved calls for the same
// conversation converge to the same final read state.
func (r *ConversationRepo) MarkAsRead(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_at = CURRENT_TIMESTAMP
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetUnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	var lastRead sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT last_read_at
		FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&lastRead)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get last_read_at: %w", err)
	}

	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND sender_id <> ?
	`
	args := []any{conversationID, userID}
	if lastRead.Valid {
		query += " AND created_at > ?"
		args = append(args, lastRead.Time)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *ConversationRepo) FindExistingDirect(ctx context.Context, participantIDs []int64) (*domain.Conversation, error) {
	if len(participantIDs) != 2 {
		return nil, nil
	}
	query := `
		SELECT c.id, c.name, c.is_group, c.created_by, c.max_members, c.is_public, c.only_admins_invite, c.is_archived, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp1 ON cp1.conversation_id = c.id AND cp1.user_id = ?
		JOIN conversation_participants cp2 ON cp2.conversation_id = c.id AND cp2.user_id = ?
		WHERE c.is_group = 0
		LIMIT 1
	`
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, query, participantIDs[0], participantIDs[1]).Scan(
		&c.ID, &c.Name, &c.IsGroup, &c.CreatedBy, &c.MaxMembers,
		&c.IsPublic, &c.OnlyAdminsInvite, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) UpdateSettings(ctx context.Context, conversationID int64, s domain.GroupSettings) error {
	query := `UPDATE conversations SET updated_at = CURRENT_TIMESTAMP`
	var args []any
	if s.Name != nil {
		query += `, name = ?`
		args = append(args, *s.Name)
	}
	if s.MaxMembers != nil {
		query += `, max_members = ?`
		args = append(args, *s.MaxMembers)
	}
	if s.IsPublic != nil {
		query += `, is_public = ?`
		args = append(args, *s.IsPublic)
	}
	if s.OnlyAdminsInvite != nil {
		query += `, only_admins_invite = ?`
		args = append(args, *s.OnlyAdminsInvite)
	}
	if s.IsArchived != nil {
		query += `, is_archived = ?`
		args = append(args, *s.IsArchived)
	}
	query += ` WHERE id = ?`
	args = append(args, conversationID)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (r *ConversationRepo) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_participants (user_id, conversation_id, joined_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`, userID, conversationID)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (r *ConversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_participants WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_admins WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID); err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) PromoteAdmin(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversation_admins (user_id, conversation_id)
		VALUES (?, ?)
	`, userID, conversationID)
	if err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	return nil
}

func (r *ConversationRepo) DemoteAdmin(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM conversation_admins WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("demote admin: %w", err)
	}
	return nil
}

func (r *ConversationRepo) IsAdmin(ctx context.Context, conversationID, userID int64) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM conversation_admins WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is admin: %w", err)
	}
	return true, nil
}

func (r *ConversationRepo) ListAdminIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_admins WHERE conversation_id = ?
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ConversationRepo) queryConversations(ctx context.Context, query string, args ...any) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(
			&c.ID, &c.Name, &c.IsGroup, &c.CreatedBy, &c.MaxMembers,
			&c.IsPublic, &c.OnlyAdminsInvite, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
