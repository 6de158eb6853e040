package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

// Group rule violations surfaced to the initiating client only.
var (
	ErrNotAdmin         = errors.New("only group admins may do this")
	ErrGroupFull        = errors.New("group has reached its member capacity")
	ErrAlreadyMember    = errors.New("user is already a member of this group")
	ErrSelfInvite       = errors.New("cannot invite yourself")
	ErrDuplicateInvite  = errors.New("an invitation for this user is already pending")
	ErrInvitationClosed = errors.New("invitation is no longer pending")
	ErrNotPublicGroup   = errors.New("group is not public")
	ErrLastAdmin        = errors.New("cannot demote the only admin")
)

const invitationTTL = 7 * 24 * time.Hour

// MembershipChange describes the outcome of a membership or role mutation so
// the websocket layer can fan it out to affected users.
type MembershipChange struct {
	ConversationID int64
	Action         string
	ActorID        int64
	AffectedID     int64
	RemainingIDs   []int64 // participants after the change
	RemovedIDs     []int64 // users who lost membership
}

// GroupService owns group conversations: creation, invitations, membership
// and admin roles, and group settings.
type GroupService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	invitations   domain.InvitationRepository
	users         domain.UserRepository

	DefaultCapacity int
	now             func() time.Time
}

func NewGroupService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	invitations domain.InvitationRepository,
	users domain.UserRepository,
	defaultCapacity int,
) *GroupService {
	return &GroupService{
		conversations:   conversations,
		participants:    participants,
		invitations:     invitations,
		users:           users,
		DefaultCapacity: defaultCapacity,
		now:             time.Now,
	}
}

type GroupCreateInput struct {
	Name             string
	MemberIDs        []int64
	MaxMembers       int
	IsPublic         bool
	OnlyAdminsInvite bool
}

// CreateGroup creates a group conversation with the creator as its admin.
func (s *GroupService) CreateGroup(ctx context.Context, in GroupCreateInput, creatorID int64) (*domain.Conversation, error) {
	if in.Name == "" {
		return nil, errors.New("group name is required")
	}
	if in.MaxMembers <= 0 {
		in.MaxMembers = s.DefaultCapacity
	}

	uniqueIDs := []int64{creatorID}
	seen := map[int64]struct{}{creatorID: {}}
	for _, id := range in.MemberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniqueIDs = append(uniqueIDs, id)
	}
	if len(uniqueIDs) > in.MaxMembers {
		return nil, ErrGroupFull
	}

	conv := &domain.Conversation{
		Name:             &in.Name,
		IsGroup:          true,
		CreatedBy:        creatorID,
		MaxMembers:       in.MaxMembers,
		IsPublic:         in.IsPublic,
		OnlyAdminsInvite: in.OnlyAdminsInvite,
	}
	if err := s.conversations.Create(ctx, conv, uniqueIDs); err != nil {
		return nil, err
	}
	return conv, nil
}

// Invite creates pending invitations for the given users. Whether plain
// members may invite is controlled by the group's invite policy.
func (s *GroupService) Invite(ctx context.Context, conversationID, inviterID int64, inviteeIDs []int64) ([]*domain.Invitation, error) {
	conv, err := s.groupByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.conversations.IsAdmin(ctx, conversationID, inviterID)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if conv.OnlyAdminsInvite && !isAdmin {
		return nil, ErrNotAdmin
	}
	if !isAdmin {
		isMember, err := s.participants.IsParticipant(ctx, conversationID, inviterID)
		if err != nil {
			return nil, fmt.Errorf("check participant: %w", err)
		}
		if !isMember {
			return nil, ErrNotParticipant
		}
	}

	count, err := s.participants.CountParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}

	var created []*domain.Invitation
	for _, inviteeID := range inviteeIDs {
		if inviteeID == inviterID {
			return nil, ErrSelfInvite
		}
		isMember, err := s.participants.IsParticipant(ctx, conversationID, inviteeID)
		if err != nil {
			return nil, fmt.Errorf("check invitee membership: %w", err)
		}
		if isMember {
			return nil, ErrAlreadyMember
		}
		if pending, err := s.invitations.FindPending(ctx, conversationID, inviteeID); err != nil {
			return nil, fmt.Errorf("check pending invitation: %w", err)
		} else if pending != nil && !pending.Expired(s.now()) {
			return nil, ErrDuplicateInvite
		}
		if conv.MaxMembers > 0 && count+len(created)+1 > conv.MaxMembers {
			return nil, ErrGroupFull
		}

		inv := &domain.Invitation{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			InviterID:      inviterID,
			InviteeID:      inviteeID,
			Status:         domain.ProposalPending,
			ExpiresAt:      s.now().Add(invitationTTL),
		}
		if err := s.invitations.Create(ctx, inv); err != nil {
			return nil, err
		}
		created = append(created, inv)
	}
	return created, nil
}

// AcceptInvitation transitions the invitation and adds the invitee to the
// group. The status transition is atomic, so a concurrent accept/cancel
// resolves to exactly one winner.
func (s *GroupService) AcceptInvitation(ctx context.Context, invitationID string, userID int64) (*MembershipChange, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.InviteeID != userID {
		return nil, ErrForbidden
	}
	if inv.Expired(s.now()) {
		_ = s.invitations.UpdateStatus(ctx, inv.ID, domain.ProposalPending, domain.ProposalExpired)
		return nil, ErrInvitationClosed
	}
	if inv.Status != domain.ProposalPending {
		return nil, ErrInvitationClosed
	}

	conv, err := s.groupByID(ctx, inv.ConversationID)
	if err != nil {
		return nil, err
	}
	count, err := s.participants.CountParticipants(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	if conv.MaxMembers > 0 && count >= conv.MaxMembers {
		return nil, ErrGroupFull
	}

	if err := s.invitations.UpdateStatus(ctx, inv.ID, domain.ProposalPending, domain.ProposalAccepted); err != nil {
		return nil, ErrInvitationClosed
	}
	if err := s.conversations.AddParticipant(ctx, conv.ID, userID); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}

	remaining, err := s.participantIDs(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return &MembershipChange{
		ConversationID: conv.ID,
		Action:         "member-joined",
		ActorID:        userID,
		AffectedID:     userID,
		RemainingIDs:   remaining,
	}, nil
}

// DeclineInvitation transitions a pending invitation to declined and reports
// the inviter so the caller can notify them.
func (s *GroupService) DeclineInvitation(ctx context.Context, invitationID string, userID int64) (*domain.Invitation, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.InviteeID != userID {
		return nil, ErrForbidden
	}
	if err := s.invitations.UpdateStatus(ctx, inv.ID, domain.ProposalPending, domain.ProposalDeclined); err != nil {
		return nil, ErrInvitationClosed
	}
	inv.Status = domain.ProposalDeclined
	return inv, nil
}

// JoinPublicGroup adds the user to a public group without an invitation.
func (s *GroupService) JoinPublicGroup(ctx context.Context, conversationID, userID int64) (*MembershipChange, error) {
	conv, err := s.groupByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsPublic {
		return nil, ErrNotPublicGroup
	}
	isMember, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if isMember {
		return nil, ErrAlreadyMember
	}
	count, err := s.participants.CountParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	if conv.MaxMembers > 0 && count >= conv.MaxMembers {
		return nil, ErrGroupFull
	}

	if err := s.conversations.AddParticipant(ctx, conversationID, userID); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	remaining, err := s.participantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &MembershipChange{
		ConversationID: conversationID,
		Action:         "member-joined",
		ActorID:        userID,
		AffectedID:     userID,
		RemainingIDs:   remaining,
	}, nil
}

// RemoveParticipant removes a member on behalf of an admin. Admins cannot
// remove other admins; demote first.
func (s *GroupService) RemoveParticipant(ctx context.Context, conversationID, adminID, targetID int64) (*MembershipChange, error) {
	if _, err := s.groupByID(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, conversationID, adminID); err != nil {
		return nil, err
	}
	targetIsAdmin, err := s.conversations.IsAdmin(ctx, conversationID, targetID)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if targetIsAdmin {
		return nil, errors.New("cannot remove another admin")
	}
	isMember, err := s.participants.IsParticipant(ctx, conversationID, targetID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isMember {
		return nil, domain.ErrNotFound
	}

	if err := s.conversations.RemoveParticipant(ctx, conversationID, targetID); err != nil {
		return nil, fmt.Errorf("remove participant: %w", err)
	}
	remaining, err := s.participantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &MembershipChange{
		ConversationID: conversationID,
		Action:         "member-removed",
		ActorID:        adminID,
		AffectedID:     targetID,
		RemainingIDs:   remaining,
		RemovedIDs:     []int64{targetID},
	}, nil
}

// Leave removes the caller from the group. When the last admin leaves, the
// longest-standing remaining member is promoted so the group stays
// administrable.
func (s *GroupService) Leave(ctx context.Context, conversationID, userID int64) (*MembershipChange, error) {
	if _, err := s.groupByID(ctx, conversationID); err != nil {
		return nil, err
	}
	isMember, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isMember {
		return nil, ErrNotParticipant
	}

	if err := s.conversations.RemoveParticipant(ctx, conversationID, userID); err != nil {
		return nil, fmt.Errorf("remove participant: %w", err)
	}

	remaining, err := s.participants.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	adminIDs, err := s.conversations.ListAdminIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	if len(adminIDs) == 0 && len(remaining) > 0 {
		// ListParticipants orders deterministically; promote the first.
		if err := s.conversations.PromoteAdmin(ctx, conversationID, remaining[0].ID); err != nil {
			return nil, fmt.Errorf("promote admin: %w", err)
		}
	}

	remainingIDs := make([]int64, len(remaining))
	for i, u := range remaining {
		remainingIDs[i] = u.ID
	}
	return &MembershipChange{
		ConversationID: conversationID,
		Action:         "member-left",
		ActorID:        userID,
		AffectedID:     userID,
		RemainingIDs:   remainingIDs,
		RemovedIDs:     []int64{userID},
	}, nil
}

// PromoteAdmin grants the admin role to an existing member.
func (s *GroupService) PromoteAdmin(ctx context.Context, conversationID, adminID, targetID int64) (*MembershipChange, error) {
	if _, err := s.groupByID(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, conversationID, adminID); err != nil {
		return nil, err
	}
	isMember, err := s.participants.IsParticipant(ctx, conversationID, targetID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isMember {
		return nil, ErrNotParticipant
	}
	if err := s.conversations.PromoteAdmin(ctx, conversationID, targetID); err != nil {
		return nil, fmt.Errorf("promote admin: %w", err)
	}
	remaining, err := s.participantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &MembershipChange{
		ConversationID: conversationID,
		Action:         "admin-promoted",
		ActorID:        adminID,
		AffectedID:     targetID,
		RemainingIDs:   remaining,
	}, nil
}

// DemoteAdmin revokes the admin role. The last admin cannot be demoted so
// the group never ends up without one.
func (s *GroupService) DemoteAdmin(ctx context.Context, conversationID, adminID, targetID int64) (*MembershipChange, error) {
	if _, err := s.groupByID(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, conversationID, adminID); err != nil {
		return nil, err
	}
	isAdmin, err := s.conversations.IsAdmin(ctx, conversationID, targetID)
	if err != nil {
		return nil, fmt.Errorf("check admin: %w", err)
	}
	if !isAdmin {
		return nil, ErrNotAdmin
	}
	adminIDs, err := s.conversations.ListAdminIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	if len(adminIDs) <= 1 {
		return nil, ErrLastAdmin
	}
	if err := s.conversations.DemoteAdmin(ctx, conversationID, targetID); err != nil {
		return nil, fmt.Errorf("demote admin: %w", err)
	}
	remaining, err := s.participantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &MembershipChange{
		ConversationID: conversationID,
		Action:         "admin-demoted",
		ActorID:        adminID,
		AffectedID:     targetID,
		RemainingIDs:   remaining,
	}, nil
}

// UpdateSettings applies group settings changes on behalf of an admin.
func (s *GroupService) UpdateSettings(ctx context.Context, conversationID, adminID int64, settings domain.GroupSettings) (*domain.Conversation, error) {
	if _, err := s.groupByID(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, conversationID, adminID); err != nil {
		return nil, err
	}
	if err := s.conversations.UpdateSettings(ctx, conversationID, settings); err != nil {
		return nil, err
	}
	return s.conversations.GetByID(ctx, conversationID)
}

// ListPendingInvitations returns the user's pending invitations, lazily
// expiring ones whose deadline passed.
func (s *GroupService) ListPendingInvitations(ctx context.Context, userID int64) ([]*domain.Invitation, error) {
	invs, err := s.invitations.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := invs[:0]
	for _, inv := range invs {
		if inv.Expired(s.now()) {
			_ = s.invitations.UpdateStatus(ctx, inv.ID, domain.ProposalPending, domain.ProposalExpired)
			continue
		}
		res = append(res, inv)
	}
	return res, nil
}

// MemberIDs returns the current participant IDs of the group.
func (s *GroupService) MemberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	return s.participantIDs(ctx, conversationID)
}

func (s *GroupService) ListPublicGroups(ctx context.Context, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.conversations.ListPublicGroups(ctx, limit)
}

func (s *GroupService) groupByID(ctx context.Context, conversationID int64) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.IsGroup {
		return nil, errors.New("not a group conversation")
	}
	return conv, nil
}

func (s *GroupService) requireAdmin(ctx context.Context, conversationID, userID int64) error {
	isAdmin, err := s.conversations.IsAdmin(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !isAdmin {
		return ErrNotAdmin
	}
	return nil
}

func (s *GroupService) participantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	users, err := s.participants.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}
