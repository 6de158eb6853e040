package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/security"
)

// Sentinel errors used by handlers to map to statuses / error events.
var (
	ErrForbidden      = errors.New("forbidden")
	ErrNotParticipant = errors.New("you are not a participant in this conversation")
)

const maxMessageRunes = 5000

type MessageService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	encryptor     *security.Encryptor

	MaxMessagesPerConversation int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
	maxMessages int,
) *MessageService {
	return &MessageService{
		conversations:              conversations,
		participants:               participants,
		messages:                   messages,
		users:                      users,
		encryptor:                  encryptor,
		MaxMessagesPerConversation: maxMessages,
	}
}

type MessageCreateInput struct {
	ConversationID int64
	Content        string
	MessageType    string
	FilePath       *string
}

func (s *MessageService) CreateMessage(
	ctx context.Context,
	in MessageCreateInput,
	senderID int64,
) (*domain.Message, error) {
	if len([]rune(in.Content)) > maxMessageRunes {
		return nil, errors.New("message content exceeds 5000 characters")
	}
	switch in.MessageType {
	case "":
		in.MessageType = domain.MessageTypeText
	case domain.MessageTypeText, domain.MessageTypeImage, domain.MessageTypeFile:
	default:
		return nil, fmt.Errorf("unsupported message type %q", in.MessageType)
	}

	conv, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, errors.New("conversation not found")
	}
	if conv.IsArchived {
		return nil, errors.New("conversation is archived")
	}
	isParticipant, err := s.participants.IsParticipant(ctx, in.ConversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, ErrNotParticipant
	}

	if in.Content == "" && (in.FilePath == nil || *in.FilePath == "") {
		return nil, errors.New("message content cannot be empty")
	}

	encrypted, err := s.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	msg := &domain.Message{
		Content:        encrypted,
		MessageType:    in.MessageType,
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		FilePath:       in.FilePath,
		IsDeleted:      false,
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.MaxMessagesPerConversation > 0 {
		if err := s.messages.PruneOld(ctx, in.ConversationID, s.MaxMessagesPerConversation); err != nil {
			return nil, fmt.Errorf("prune old messages: %w", err)
		}
	}

	return msg, nil
}

func (s *MessageService) ListMessages(
	ctx context.Context,
	conversationID int64,
	userID int64,
	limit int,
) ([]*domain.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, errors.New("conversation not found")
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, ErrNotParticipant
	}

	if limit <= 0 || limit > s.MaxMessagesPerConversation {
		limit = s.MaxMessagesPerConversation
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (DB returns DESC)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkAllReadInConversation stamps read state through the store's atomic
// update; concurrent calls interleave safely.
func (s *MessageService) MarkAllReadInConversation(ctx context.Context, conversationID, callerID int64) error {
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, callerID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return ErrForbidden
	}

	if err := s.messages.MarkAllReadInConversation(ctx, conversationID, callerID); err != nil {
		return err
	}
	return s.conversations.MarkAsRead(ctx, conversationID, callerID)
}

// GetParticipantIDs returns user IDs of all conversation participants (for
// websocket fan-out).
func (s *MessageService) GetParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	participants, err := s.participants.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return ids, nil
}

// MessageResponse mirrors the API response expected by clients.
type MessageResponse struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	CreatedAt      time.Time `json:"created_at"`
	FilePath       *string   `json:"file_path,omitempty"`
	IsDeleted      bool      `json:"is_deleted"`
}

// ToResponse converts a domain message into a decrypted response DTO.
func (s *MessageService) ToResponse(ctx context.Context, m *domain.Message) (*MessageResponse, error) {
	content := m.Content
	if !m.IsDeleted {
		if dec, err := s.encryptor.Decrypt(m.Content); err == nil {
			content = dec
		}
		// on decrypt error fall back to raw content
	}
	var username string
	if u, err := s.users.GetByID(ctx, m.SenderID); err == nil && u != nil {
		username = u.Username
	}
	return &MessageResponse{
		ID:             m.ID,
		Content:        content,
		MessageType:    m.MessageType,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderUsername: username,
		CreatedAt:      m.CreatedAt,
		FilePath:       m.FilePath,
		IsDeleted:      m.IsDeleted,
	}, nil
}

// ToResponses converts a slice of domain messages into response DTOs.
func (s *MessageService) ToResponses(ctx context.Context, msgs []*domain.Message) ([]*MessageResponse, error) {
	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		dto, err := s.ToResponse(ctx, m)
		if err != nil {
			return nil, err
		}
		res = append(res, dto)
	}
	return res, nil
}
