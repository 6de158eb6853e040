package domain

import "time"

// User represents an application user.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          *string   `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation represents a chat conversation (direct or group).
// Group conversations additionally carry admins and settings; for direct
// conversations the group fields are ignored.
type Conversation struct {
	ID               int64     `db:"id" json:"id"`
	Name             *string   `db:"name" json:"name,omitempty"`
	IsGroup          bool      `db:"is_group" json:"is_group"`
	CreatedBy        int64     `db:"created_by" json:"created_by"`
	MaxMembers       int       `db:"max_members" json:"max_members"`
	IsPublic         bool      `db:"is_public" json:"is_public"`
	OnlyAdminsInvite bool      `db:"only_admins_invite" json:"only_admins_invite"`
	IsArchived       bool      `db:"is_archived" json:"is_archived"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// ConversationParticipant represents the membership of a user in a conversation.
type ConversationParticipant struct {
	UserID         int64      `db:"user_id"`
	ConversationID int64      `db:"conversation_id"`
	LastReadAt     *time.Time `db:"last_read_at"`
	JoinedAt       *time.Time `db:"joined_at"`
}

// Message types accepted over the send-message operation.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message represents a single chat message.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	Content        string     `db:"content" json:"content"` // encrypted at rest
	MessageType    string     `db:"message_type" json:"message_type"`
	ConversationID int64      `db:"conversation_id" json:"conversation_id"`
	SenderID       int64      `db:"sender_id" json:"sender_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	FilePath       *string    `db:"file_path" json:"file_path,omitempty"`
	FullyReadAt    *time.Time `db:"fully_read_at" json:"fully_read_at,omitempty"`
	IsDeleted      bool       `db:"is_deleted" json:"is_deleted"`
}

// Proposal states shared by invitations and chat requests.
const (
	ProposalPending   = "pending"
	ProposalAccepted  = "accepted"
	ProposalDeclined  = "declined"
	ProposalExpired   = "expired"
	ProposalCancelled = "cancelled"
)

// Invitation is a directed, time-bounded proposal to join a group conversation.
type Invitation struct {
	ID             string    `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	InviterID      int64     `db:"inviter_id" json:"inviter_id"`
	InviteeID      int64     `db:"invitee_id" json:"invitee_id"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the invitation's deadline has passed while it is
// still pending. Status is updated lazily on access; there is no background
// sweeper.
func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == ProposalPending && now.After(i.ExpiresAt)
}

// ChatRequest is a directed proposal to start a direct conversation.
type ChatRequest struct {
	ID         string    `db:"id" json:"id"`
	FromUserID int64     `db:"from_user_id" json:"from_user_id"`
	ToUserID   int64     `db:"to_user_id" json:"to_user_id"`
	Message    *string   `db:"message" json:"message,omitempty"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
}

func (c *ChatRequest) Expired(now time.Time) bool {
	return c.Status == ProposalPending && now.After(c.ExpiresAt)
}
