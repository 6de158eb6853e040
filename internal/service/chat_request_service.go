package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

var (
	ErrSelfRequest      = errors.New("cannot send a chat request to yourself")
	ErrDuplicateRequest = errors.New("a chat request between these users is already pending")
	ErrAlreadyInContact = errors.New("a conversation with this user already exists")
	ErrRequestClosed    = errors.New("chat request is no longer pending")
)

const chatRequestTTL = 7 * 24 * time.Hour

// ChatRequestService owns the chat-request lifecycle: a directed proposal to
// open a direct conversation, accepted into an actual conversation.
type ChatRequestService struct {
	requests      domain.ChatRequestRepository
	conversations domain.ConversationRepository
	users         domain.UserRepository
	convSvc       *ConversationService

	now func() time.Time
}

func NewChatRequestService(
	requests domain.ChatRequestRepository,
	conversations domain.ConversationRepository,
	users domain.UserRepository,
	convSvc *ConversationService,
) *ChatRequestService {
	return &ChatRequestService{
		requests:      requests,
		conversations: conversations,
		users:         users,
		convSvc:       convSvc,
		now:           time.Now,
	}
}

// Send creates a pending chat request from one user to another.
func (s *ChatRequestService) Send(ctx context.Context, fromUserID, toUserID int64, message *string) (*domain.ChatRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRequest
	}
	target, err := s.users.GetByID(ctx, toUserID)
	if err != nil {
		return nil, fmt.Errorf("get target user: %w", err)
	}
	if target == nil || !target.IsActive {
		return nil, domain.ErrNotFound
	}

	if existing, err := s.conversations.FindExistingDirect(ctx, []int64{fromUserID, toUserID}); err != nil {
		return nil, fmt.Errorf("find existing conversation: %w", err)
	} else if existing != nil {
		return nil, ErrAlreadyInContact
	}

	if pending, err := s.requests.FindPendingBetween(ctx, fromUserID, toUserID); err != nil {
		return nil, fmt.Errorf("check pending request: %w", err)
	} else if pending != nil && !pending.Expired(s.now()) {
		return nil, ErrDuplicateRequest
	}

	req := &domain.ChatRequest{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Message:    message,
		Status:     domain.ProposalPending,
		ExpiresAt:  s.now().Add(chatRequestTTL),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Accept transitions the request and creates (or finds) the direct
// conversation between the two users.
func (s *ChatRequestService) Accept(ctx context.Context, requestID string, userID int64) (*domain.ChatRequest, *domain.Conversation, error) {
	req, err := s.pendingForRecipient(ctx, requestID, userID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requests.UpdateStatus(ctx, req.ID, domain.ProposalPending, domain.ProposalAccepted); err != nil {
		return nil, nil, ErrRequestClosed
	}
	req.Status = domain.ProposalAccepted

	conv, err := s.convSvc.FindOrCreateDirect(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("create conversation: %w", err)
	}
	return req, conv, nil
}

// Reject transitions the request to declined.
func (s *ChatRequestService) Reject(ctx context.Context, requestID string, userID int64) (*domain.ChatRequest, error) {
	req, err := s.pendingForRecipient(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.requests.UpdateStatus(ctx, req.ID, domain.ProposalPending, domain.ProposalDeclined); err != nil {
		return nil, ErrRequestClosed
	}
	req.Status = domain.ProposalDeclined
	return req, nil
}

// Cancel lets the sender withdraw a pending request.
func (s *ChatRequestService) Cancel(ctx context.Context, requestID string, userID int64) (*domain.ChatRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get chat request: %w", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	if req.FromUserID != userID {
		return nil, ErrForbidden
	}
	if err := s.requests.UpdateStatus(ctx, req.ID, domain.ProposalPending, domain.ProposalCancelled); err != nil {
		return nil, ErrRequestClosed
	}
	req.Status = domain.ProposalCancelled
	return req, nil
}

// ListPending returns pending requests addressed to the user, lazily
// expiring stale ones.
func (s *ChatRequestService) ListPending(ctx context.Context, userID int64) ([]*domain.ChatRequest, error) {
	reqs, err := s.requests.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := reqs[:0]
	for _, req := range reqs {
		if req.Expired(s.now()) {
			_ = s.requests.UpdateStatus(ctx, req.ID, domain.ProposalPending, domain.ProposalExpired)
			continue
		}
		res = append(res, req)
	}
	return res, nil
}

func (s *ChatRequestService) pendingForRecipient(ctx context.Context, requestID string, userID int64) (*domain.ChatRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get chat request: %w", err)
	}
	if req == nil {
		return nil, domain.ErrNotFound
	}
	if req.ToUserID != userID {
		return nil, ErrForbidden
	}
	if req.Expired(s.now()) {
		_ = s.requests.UpdateStatus(ctx, req.ID, domain.ProposalPending, domain.ProposalExpired)
		return nil, ErrRequestClosed
	}
	if req.Status != domain.ProposalPending {
		return nil, ErrRequestClosed
	}
	return req, nil
}
