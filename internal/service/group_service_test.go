package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
)

func groupFixture(id int64, maxMembers int, onlyAdminsInvite, isPublic bool) *domain.Conversation {
	name := "team"
	return &domain.Conversation{
		ID:               id,
		Name:             &name,
		IsGroup:          true,
		CreatedBy:        1,
		MaxMembers:       maxMembers,
		IsPublic:         isPublic,
		OnlyAdminsInvite: onlyAdminsInvite,
	}
}

func newGroupService() (*service.GroupService, *MockConversationRepo, *MockParticipantRepo, *MockInvitationRepo) {
	convs := new(MockConversationRepo)
	parts := new(MockParticipantRepo)
	invs := new(MockInvitationRepo)
	users := new(MockUserRepo)
	return service.NewGroupService(convs, parts, invs, users, 100), convs, parts, invs
}

func TestCreateGroup(t *testing.T) {
	t.Run("CreatorIsCounted", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Conversation) bool {
			return c.IsGroup && c.CreatedBy == 1 && *c.Name == "team"
		}), []int64{1, 2, 3}).Return(nil)

		conv, err := svc.CreateGroup(context.Background(), service.GroupCreateInput{
			Name:      "team",
			MemberIDs: []int64{2, 3, 2}, // duplicates collapse
		}, 1)
		assert.NoError(t, err)
		assert.NotNil(t, conv)
		convs.AssertExpectations(t)
	})

	t.Run("OverCapacity", func(t *testing.T) {
		svc, _, _, _ := newGroupService()
		conv, err := svc.CreateGroup(context.Background(), service.GroupCreateInput{
			Name:       "tiny",
			MemberIDs:  []int64{2, 3},
			MaxMembers: 2,
		}, 1)
		assert.ErrorIs(t, err, service.ErrGroupFull)
		assert.Nil(t, conv)
	})

	t.Run("MissingName", func(t *testing.T) {
		svc, _, _, _ := newGroupService()
		_, err := svc.CreateGroup(context.Background(), service.GroupCreateInput{}, 1)
		assert.Error(t, err)
	})
}

func TestInvite(t *testing.T) {
	ctx := context.Background()

	t.Run("MemberMayInviteWhenPolicyAllows", func(t *testing.T) {
		svc, convs, parts, invs := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(2)).Return(false, nil)
		parts.On("IsParticipant", mock.Anything, int64(7), int64(2)).Return(true, nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)
		parts.On("IsParticipant", mock.Anything, int64(7), int64(5)).Return(false, nil)
		invs.On("FindPending", mock.Anything, int64(7), int64(5)).Return(nil, nil)
		invs.On("Create", mock.Anything, mock.MatchedBy(func(inv *domain.Invitation) bool {
			return inv.ConversationID == 7 && inv.InviterID == 2 && inv.InviteeID == 5 &&
				inv.Status == domain.ProposalPending && inv.ID != ""
		})).Return(nil)

		created, err := svc.Invite(ctx, 7, 2, []int64{5})
		assert.NoError(t, err)
		assert.Len(t, created, 1)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), created[0].ExpiresAt, time.Minute)
	})

	t.Run("OnlyAdminsInvitePolicy", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, true, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(2)).Return(false, nil)

		_, err := svc.Invite(ctx, 7, 2, []int64{5})
		assert.ErrorIs(t, err, service.ErrNotAdmin)
	})

	t.Run("SelfInvite", func(t *testing.T) {
		svc, convs, parts, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)

		_, err := svc.Invite(ctx, 7, 1, []int64{1})
		assert.ErrorIs(t, err, service.ErrSelfInvite)
	})

	t.Run("AlreadyMember", func(t *testing.T) {
		svc, convs, parts, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)
		parts.On("IsParticipant", mock.Anything, int64(7), int64(5)).Return(true, nil)

		_, err := svc.Invite(ctx, 7, 1, []int64{5})
		assert.ErrorIs(t, err, service.ErrAlreadyMember)
	})

	t.Run("DuplicatePendingInvite", func(t *testing.T) {
		svc, convs, parts, invs := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)
		parts.On("IsParticipant", mock.Anything, int64(7), int64(5)).Return(false, nil)
		invs.On("FindPending", mock.Anything, int64(7), int64(5)).Return(&domain.Invitation{
			ID:        "inv-1",
			Status:    domain.ProposalPending,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		_, err := svc.Invite(ctx, 7, 1, []int64{5})
		assert.ErrorIs(t, err, service.ErrDuplicateInvite)
	})

	t.Run("CapacityCountsPendingBatch", func(t *testing.T) {
		svc, convs, parts, invs := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 4, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)
		parts.On("IsParticipant", mock.Anything, int64(7), mock.Anything).Return(false, nil)
		invs.On("FindPending", mock.Anything, int64(7), mock.Anything).Return(nil, nil)
		invs.On("Create", mock.Anything, mock.Anything).Return(nil)

		// room for exactly one more member
		_, err := svc.Invite(ctx, 7, 1, []int64{5, 6})
		assert.ErrorIs(t, err, service.ErrGroupFull)
	})
}

func TestAcceptInvitation(t *testing.T) {
	ctx := context.Background()

	pending := func() *domain.Invitation {
		return &domain.Invitation{
			ID:             "inv-1",
			ConversationID: 7,
			InviterID:      1,
			InviteeID:      5,
			Status:         domain.ProposalPending,
			ExpiresAt:      time.Now().Add(time.Hour),
		}
	}

	t.Run("Success", func(t *testing.T) {
		svc, convs, parts, invs := newGroupService()
		invs.On("GetByID", mock.Anything, "inv-1").Return(pending(), nil)
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)
		invs.On("UpdateStatus", mock.Anything, "inv-1", domain.ProposalPending, domain.ProposalAccepted).Return(nil)
		convs.On("AddParticipant", mock.Anything, int64(7), int64(5)).Return(nil)
		parts.On("ListParticipants", mock.Anything, int64(7)).Return([]*domain.User{
			{ID: 1}, {ID: 2}, {ID: 3}, {ID: 5},
		}, nil)

		change, err := svc.AcceptInvitation(ctx, "inv-1", 5)
		assert.NoError(t, err)
		assert.Equal(t, "member-joined", change.Action)
		assert.Equal(t, int64(5), change.AffectedID)
		assert.ElementsMatch(t, []int64{1, 2, 3, 5}, change.RemainingIDs)
	})

	t.Run("WrongInvitee", func(t *testing.T) {
		svc, _, _, invs := newGroupService()
		invs.On("GetByID", mock.Anything, "inv-1").Return(pending(), nil)

		change, err := svc.AcceptInvitation(ctx, "inv-1", 99)
		assert.ErrorIs(t, err, service.ErrForbidden)
		assert.Nil(t, change)
	})

	t.Run("Expired", func(t *testing.T) {
		svc, _, _, invs := newGroupService()
		inv := pending()
		inv.ExpiresAt = time.Now().Add(-time.Hour)
		invs.On("GetByID", mock.Anything, "inv-1").Return(inv, nil)
		invs.On("UpdateStatus", mock.Anything, "inv-1", domain.ProposalPending, domain.ProposalExpired).Return(nil)

		change, err := svc.AcceptInvitation(ctx, "inv-1", 5)
		assert.ErrorIs(t, err, service.ErrInvitationClosed)
		assert.Nil(t, change)
		invs.AssertCalled(t, "UpdateStatus", mock.Anything, "inv-1", domain.ProposalPending, domain.ProposalExpired)
	})

	t.Run("LostTransitionRace", func(t *testing.T) {
		svc, convs, parts, invs := newGroupService()
		invs.On("GetByID", mock.Anything, "inv-1").Return(pending(), nil)
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)
		invs.On("UpdateStatus", mock.Anything, "inv-1", domain.ProposalPending, domain.ProposalAccepted).
			Return(domain.ErrConflict)

		change, err := svc.AcceptInvitation(ctx, "inv-1", 5)
		assert.ErrorIs(t, err, service.ErrInvitationClosed)
		assert.Nil(t, change)
		convs.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("GroupFull", func(t *testing.T) {
		svc, convs, parts, invs := newGroupService()
		invs.On("GetByID", mock.Anything, "inv-1").Return(pending(), nil)
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 3, false, false), nil)
		parts.On("CountParticipants", mock.Anything, int64(7)).Return(3, nil)

		change, err := svc.AcceptInvitation(ctx, "inv-1", 5)
		assert.ErrorIs(t, err, service.ErrGroupFull)
		assert.Nil(t, change)
	})
}

func TestJoinPublicGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("PrivateGroupRejected", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)

		_, err := svc.JoinPublicGroup(ctx, 7, 5)
		assert.ErrorIs(t, err, service.ErrNotPublicGroup)
	})
}

func TestLeavePromotesReplacementAdmin(t *testing.T) {
	svc, convs, parts, _ := newGroupService()
	convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
	parts.On("IsParticipant", mock.Anything, int64(7), int64(1)).Return(true, nil)
	convs.On("RemoveParticipant", mock.Anything, int64(7), int64(1)).Return(nil)
	parts.On("ListParticipants", mock.Anything, int64(7)).Return([]*domain.User{{ID: 2}, {ID: 3}}, nil)
	convs.On("ListAdminIDs", mock.Anything, int64(7)).Return([]int64{}, nil)
	convs.On("PromoteAdmin", mock.Anything, int64(7), int64(2)).Return(nil)

	change, err := svc.Leave(context.Background(), 7, 1)
	assert.NoError(t, err)
	assert.Equal(t, "member-left", change.Action)
	assert.Equal(t, []int64{1}, change.RemovedIDs)
	assert.ElementsMatch(t, []int64{2, 3}, change.RemainingIDs)
	convs.AssertCalled(t, "PromoteAdmin", mock.Anything, int64(7), int64(2))
}

func TestDemoteAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, convs, parts, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(2)).Return(true, nil)
		convs.On("ListAdminIDs", mock.Anything, int64(7)).Return([]int64{1, 2}, nil)
		convs.On("DemoteAdmin", mock.Anything, int64(7), int64(2)).Return(nil)
		parts.On("ListParticipants", mock.Anything, int64(7)).Return([]*domain.User{{ID: 1}, {ID: 2}, {ID: 3}}, nil)

		change, err := svc.DemoteAdmin(ctx, 7, 1, 2)
		assert.NoError(t, err)
		assert.Equal(t, "admin-demoted", change.Action)
		assert.Equal(t, int64(2), change.AffectedID)
		assert.ElementsMatch(t, []int64{1, 2, 3}, change.RemainingIDs)
	})

	t.Run("NonAdminForbidden", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(3)).Return(false, nil)

		_, err := svc.DemoteAdmin(ctx, 7, 3, 2)
		assert.ErrorIs(t, err, service.ErrNotAdmin)
	})

	t.Run("TargetNotAdmin", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(3)).Return(false, nil)

		_, err := svc.DemoteAdmin(ctx, 7, 1, 3)
		assert.ErrorIs(t, err, service.ErrNotAdmin)
	})

	t.Run("LastAdminStays", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		convs.On("ListAdminIDs", mock.Anything, int64(7)).Return([]int64{1}, nil)

		_, err := svc.DemoteAdmin(ctx, 7, 1, 1)
		assert.ErrorIs(t, err, service.ErrLastAdmin)
		convs.AssertNotCalled(t, "DemoteAdmin", mock.Anything, int64(7), int64(1))
	})
}

func TestRemoveParticipant(t *testing.T) {
	ctx := context.Background()

	t.Run("NonAdminForbidden", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(2)).Return(false, nil)

		_, err := svc.RemoveParticipant(ctx, 7, 2, 3)
		assert.ErrorIs(t, err, service.ErrNotAdmin)
	})

	t.Run("CannotRemoveAdmin", func(t *testing.T) {
		svc, convs, _, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(2)).Return(true, nil)

		_, err := svc.RemoveParticipant(ctx, 7, 1, 2)
		assert.Error(t, err)
	})

	t.Run("Success", func(t *testing.T) {
		svc, convs, parts, _ := newGroupService()
		convs.On("GetByID", mock.Anything, int64(7)).Return(groupFixture(7, 10, false, false), nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(1)).Return(true, nil)
		convs.On("IsAdmin", mock.Anything, int64(7), int64(3)).Return(false, nil)
		parts.On("IsParticipant", mock.Anything, int64(7), int64(3)).Return(true, nil)
		convs.On("RemoveParticipant", mock.Anything, int64(7), int64(3)).Return(nil)
		parts.On("ListParticipants", mock.Anything, int64(7)).Return([]*domain.User{{ID: 1}, {ID: 2}}, nil)

		change, err := svc.RemoveParticipant(ctx, 7, 1, 3)
		assert.NoError(t, err)
		assert.Equal(t, "member-removed", change.Action)
		assert.Equal(t, []int64{3}, change.RemovedIDs)
		assert.ElementsMatch(t, []int64{1, 2}, change.RemainingIDs)
	})
}

func TestListPendingInvitationsLazyExpiry(t *testing.T) {
	svc, _, _, invs := newGroupService()
	fresh := &domain.Invitation{ID: "fresh", Status: domain.ProposalPending, ExpiresAt: time.Now().Add(time.Hour)}
	stale := &domain.Invitation{ID: "stale", Status: domain.ProposalPending, ExpiresAt: time.Now().Add(-time.Hour)}

	invs.On("ListPendingForUser", mock.Anything, int64(5)).Return([]*domain.Invitation{fresh, stale}, nil)
	invs.On("UpdateStatus", mock.Anything, "stale", domain.ProposalPending, domain.ProposalExpired).Return(nil)

	res, err := svc.ListPendingInvitations(context.Background(), 5)
	assert.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, "fresh", res[0].ID)
	invs.AssertCalled(t, "UpdateStatus", mock.Anything, "stale", domain.ProposalPending, domain.ProposalExpired)
}
