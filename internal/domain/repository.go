package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListActive(ctx context.Context, offset, limit int) ([]*User, error)
	ListOnline(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	SoftDelete(ctx context.Context, id int64) error
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error
}

// GroupSettings carries the mutable settings of a group conversation.
type GroupSettings struct {
	Name             *string
	MaxMembers       *int
	IsPublic         *bool
	OnlyAdminsInvite *bool
	IsArchived       *bool
}

// ConversationRepository defines persistence operations for conversations,
// their participants and their admin set.
type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation, participantIDs []int64) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	ListPublicGroups(ctx context.Context, limit int) ([]*Conversation, error)
	MarkAsRead(ctx context.Context, conversationID, userID int64) error
	GetUnreadCount(ctx context.Context, conversationID, userID int64) (int, error)
	FindExistingDirect(ctx context.Context, participantIDs []int64) (*Conversation, error)
	UpdateSettings(ctx context.Context, conversationID int64, s GroupSettings) error

	AddParticipant(ctx context.Context, conversationID, userID int64) error
	RemoveParticipant(ctx context.Context, conversationID, userID int64) error
	PromoteAdmin(ctx context.Context, conversationID, userID int64) error
	DemoteAdmin(ctx context.Context, conversationID, userID int64) error
	IsAdmin(ctx context.Context, conversationID, userID int64) (bool, error)
	ListAdminIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	MarkAllReadInConversation(ctx context.Context, conversationID, userID int64) error
	PruneOld(ctx context.Context, conversationID int64, keepLimit int) error
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	ListParticipants(ctx context.Context, conversationID int64) ([]*User, error)
	CountParticipants(ctx context.Context, conversationID int64) (int, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// InvitationRepository defines persistence operations for group invitations.
type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, id string) (*Invitation, error)
	ListPendingForUser(ctx context.Context, userID int64) ([]*Invitation, error)
	FindPending(ctx context.Context, conversationID, inviteeID int64) (*Invitation, error)
	// UpdateStatus transitions an invitation from one status to another as a
	// single atomic statement; it returns ErrConflict when the invitation is
	// no longer in the expected status.
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// ChatRequestRepository defines persistence operations for chat requests.
type ChatRequestRepository interface {
	Create(ctx context.Context, req *ChatRequest) error
	GetByID(ctx context.Context, id string) (*ChatRequest, error)
	ListPendingForUser(ctx context.Context, userID int64) ([]*ChatRequest, error)
	FindPendingBetween(ctx context.Context, fromUserID, toUserID int64) (*ChatRequest, error)
	// UpdateStatus has the same atomic transition semantics as the
	// invitation repository.
	UpdateStatus(ctx context.Context, id, from, to string) error
}
