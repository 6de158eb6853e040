package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/security"
)

// AuthService handles registration, login, and logout.
type AuthService struct {
	users       domain.UserRepository
	tokens      *security.TokenService
	hash        *security.PasswordHasher
	tokenTTL    time.Duration
	rememberTTL time.Duration
}

func NewAuthService(
	users domain.UserRepository,
	tokens *security.TokenService,
	hash *security.PasswordHasher,
	tokenTTL, rememberTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		hash:        hash,
		tokenTTL:    tokenTTL,
		rememberTTL: rememberTTL,
	}
}

type RegisterInput struct {
	Username string
	Email    *string
	Password string
}

type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
}

type TokenResponse struct {
	AccessToken string
	TokenType   string
	User        *domain.User
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, errors.New("username and password are required")
	}

	if existing, err := s.users.GetByUsername(ctx, in.Username); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, domain.ErrConflict
	}

	if in.Email != nil && *in.Email != "" {
		if existing, err := s.users.GetByEmail(ctx, *in.Email); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		} else if existing != nil {
			return nil, domain.ErrConflict
		}
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		IsActive:       true,
		IsOnline:       false,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*TokenResponse, error) {
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, errors.New("incorrect username or password")
	}
	if !user.IsActive {
		return nil, errors.New("user account is inactive")
	}

	if err := s.hash.Verify(in.Password, user.HashedPassword); err != nil {
		return nil, errors.New("incorrect username or password")
	}

	ttl := s.tokenTTL
	if in.RememberMe {
		ttl = s.rememberTTL
	}
	token, err := s.tokens.CreateWithTTL(user.Username, user.ID, ttl)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

// Logout clears the persisted online flag. Live socket presence is owned by
// the websocket layer and falls away with the connections themselves.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	return s.users.SetOnlineStatus(ctx, userID, false)
}
