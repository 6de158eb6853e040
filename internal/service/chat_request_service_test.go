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

func newChatRequestService() (*service.ChatRequestService, *MockChatRequestRepo, *MockConversationRepo, *MockUserRepo) {
	reqs := new(MockChatRequestRepo)
	convs := new(MockConversationRepo)
	users := new(MockUserRepo)
	convSvc := service.NewConversationService(convs, new(MockParticipantRepo), new(MockMessageRepo))
	return service.NewChatRequestService(reqs, convs, users, convSvc), reqs, convs, users
}

func pendingRequest() *domain.ChatRequest {
	return &domain.ChatRequest{
		ID:         "req-1",
		FromUserID: 1,
		ToUserID:   2,
		Status:     domain.ProposalPending,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func TestSendChatRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, reqs, convs, users := newChatRequestService()
		users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, IsActive: true}, nil)
		convs.On("FindExistingDirect", mock.Anything, []int64{1, 2}).Return(nil, nil)
		reqs.On("FindPendingBetween", mock.Anything, int64(1), int64(2)).Return(nil, nil)
		reqs.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.ChatRequest) bool {
			return r.FromUserID == 1 && r.ToUserID == 2 && r.Status == domain.ProposalPending && r.ID != ""
		})).Return(nil)

		req, err := svc.Send(ctx, 1, 2, nil)
		assert.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), req.ExpiresAt, time.Minute)
	})

	t.Run("SelfRequest", func(t *testing.T) {
		svc, _, _, _ := newChatRequestService()
		_, err := svc.Send(ctx, 1, 1, nil)
		assert.ErrorIs(t, err, service.ErrSelfRequest)
	})

	t.Run("InactiveTarget", func(t *testing.T) {
		svc, _, _, users := newChatRequestService()
		users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, IsActive: false}, nil)

		_, err := svc.Send(ctx, 1, 2, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("AlreadyInContact", func(t *testing.T) {
		svc, _, convs, users := newChatRequestService()
		users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, IsActive: true}, nil)
		convs.On("FindExistingDirect", mock.Anything, []int64{1, 2}).Return(&domain.Conversation{ID: 4}, nil)

		_, err := svc.Send(ctx, 1, 2, nil)
		assert.ErrorIs(t, err, service.ErrAlreadyInContact)
	})

	t.Run("DuplicatePending", func(t *testing.T) {
		svc, reqs, convs, users := newChatRequestService()
		users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, IsActive: true}, nil)
		convs.On("FindExistingDirect", mock.Anything, []int64{1, 2}).Return(nil, nil)
		reqs.On("FindPendingBetween", mock.Anything, int64(1), int64(2)).Return(pendingRequest(), nil)

		_, err := svc.Send(ctx, 1, 2, nil)
		assert.ErrorIs(t, err, service.ErrDuplicateRequest)
	})

	t.Run("ExpiredPendingDoesNotBlock", func(t *testing.T) {
		svc, reqs, convs, users := newChatRequestService()
		stale := pendingRequest()
		stale.ExpiresAt = time.Now().Add(-time.Hour)
		users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, IsActive: true}, nil)
		convs.On("FindExistingDirect", mock.Anything, []int64{1, 2}).Return(nil, nil)
		reqs.On("FindPendingBetween", mock.Anything, int64(1), int64(2)).Return(stale, nil)
		reqs.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Send(ctx, 1, 2, nil)
		assert.NoError(t, err)
	})
}

func TestAcceptChatRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesDirectConversation", func(t *testing.T) {
		svc, reqs, convs, _ := newChatRequestService()
		reqs.On("GetByID", mock.Anything, "req-1").Return(pendingRequest(), nil)
		reqs.On("UpdateStatus", mock.Anything, "req-1", domain.ProposalPending, domain.ProposalAccepted).Return(nil)
		convs.On("FindExistingDirect", mock.Anything, []int64{1, 2}).Return(nil, nil)
		convs.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Conversation) bool {
			return !c.IsGroup
		}), []int64{1, 2}).Return(nil)

		req, conv, err := svc.Accept(ctx, "req-1", 2)
		assert.NoError(t, err)
		assert.Equal(t, domain.ProposalAccepted, req.Status)
		assert.NotNil(t, conv)
	})

	t.Run("OnlyRecipientMayAccept", func(t *testing.T) {
		svc, reqs, _, _ := newChatRequestService()
		reqs.On("GetByID", mock.Anything, "req-1").Return(pendingRequest(), nil)

		_, _, err := svc.Accept(ctx, "req-1", 1)
		assert.Error(t, err)
	})

	t.Run("LostTransitionRace", func(t *testing.T) {
		svc, reqs, convs, _ := newChatRequestService()
		reqs.On("GetByID", mock.Anything, "req-1").Return(pendingRequest(), nil)
		reqs.On("UpdateStatus", mock.Anything, "req-1", domain.ProposalPending, domain.ProposalAccepted).
			Return(domain.ErrConflict)

		_, _, err := svc.Accept(ctx, "req-1", 2)
		assert.ErrorIs(t, err, service.ErrRequestClosed)
		convs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelChatRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("SenderOnly", func(t *testing.T) {
		svc, reqs, _, _ := newChatRequestService()
		reqs.On("GetByID", mock.Anything, "req-1").Return(pendingRequest(), nil)

		_, err := svc.Cancel(ctx, "req-1", 2)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("Success", func(t *testing.T) {
		svc, reqs, _, _ := newChatRequestService()
		reqs.On("GetByID", mock.Anything, "req-1").Return(pendingRequest(), nil)
		reqs.On("UpdateStatus", mock.Anything, "req-1", domain.ProposalPending, domain.ProposalCancelled).Return(nil)

		req, err := svc.Cancel(ctx, "req-1", 1)
		assert.NoError(t, err)
		assert.Equal(t, domain.ProposalCancelled, req.Status)
	})
}

func TestListPendingChatRequestsLazyExpiry(t *testing.T) {
	svc, reqs, _, _ := newChatRequestService()
	fresh := pendingRequest()
	stale := pendingRequest()
	stale.ID = "req-stale"
	stale.ExpiresAt = time.Now().Add(-time.Minute)

	reqs.On("ListPendingForUser", mock.Anything, int64(2)).Return([]*domain.ChatRequest{fresh, stale}, nil)
	reqs.On("UpdateStatus", mock.Anything, "req-stale", domain.ProposalPending, domain.ProposalExpired).Return(nil)

	res, err := svc.ListPending(context.Background(), 2)
	assert.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, "req-1", res[0].ID)
}
