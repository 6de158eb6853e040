package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

// ConversationService handles direct conversations and shared read/listing
// operations; group-specific rules live in GroupService.
type ConversationService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
}

func NewConversationService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
	}
}

// FindOrCreateDirect returns the existing direct conversation between the two
// users, creating one when none exists.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	if userA == userB {
		return nil, errors.New("cannot start a conversation with yourself")
	}
	ids := []int64{userA, userB}

	existing, err := s.conversations.FindExistingDirect(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find existing conversation: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	conv := &domain.Conversation{
		IsGroup:   false,
		CreatedBy: userA,
	}
	if err := s.conversations.Create(ctx, conv, ids); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// GetConversation fetches a conversation, rejecting callers who are not
// participants.
func (s *ConversationService) GetConversation(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, domain.ErrForbidden
	}
	return conv, nil
}

func (s *ConversationService) ListParticipants(ctx context.Context, conversationID int64) ([]*domain.User, error) {
	return s.participants.ListParticipants(ctx, conversationID)
}

func (s *ConversationService) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	return s.conversations.GetUnreadCount(ctx, conversationID, userID)
}
