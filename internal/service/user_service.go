package service

import (
	"context"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
)

// UserService provides user-related operations.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) ListActive(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return s.users.ListActive(ctx, offset, limit)
}

func (s *UserService) ListOnline(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListOnline(ctx)
}

func (s *UserService) SoftDelete(ctx context.Context, id int64) error {
	return s.users.SoftDelete(ctx, id)
}

func (s *UserService) SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error {
	return s.users.SetOnlineStatus(ctx, id, isOnline)
}
