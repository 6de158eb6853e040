package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/yscoder310/bext-chat-app-sub001/internal/domain"
	"github.com/yscoder310/bext-chat-app-sub001/internal/security"
	"github.com/yscoder310/bext-chat-app-sub001/internal/service"
)

func TestRegister(t *testing.T) {
	mockRepo := new(MockUserRepo)
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(10) // low cost for tests

	svc := service.NewAuthService(mockRepo, tokenSvc, hasher, time.Hour, 24*time.Hour)

	t.Run("Success", func(t *testing.T) {
		input := service.RegisterInput{
			Username: "newuser",
			Password: "Password1!",
		}

		mockRepo.On("GetByUsername", mock.Anything, "newuser").Return(nil, domain.ErrNotFound)
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "newuser"
		})).Return(nil)

		user, err := svc.Register(context.Background(), input)
		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "newuser", user.Username)
		assert.True(t, user.IsActive)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		input := service.RegisterInput{
			Username: "existing",
			Password: "Password1!",
		}

		existing := &domain.User{Username: "existing"}
		mockRepo.On("GetByUsername", mock.Anything, "existing").Return(existing, nil)

		user, err := svc.Register(context.Background(), input)
		assert.Error(t, err)
		assert.Nil(t, user)
		assert.Equal(t, domain.ErrConflict, err)
	})
}

func TestLogin(t *testing.T) {
	hasher := security.NewPasswordHasher(10)
	hashed, err := hasher.Hash("Password1!")
	assert.NoError(t, err)

	newSvc := func() (*service.AuthService, *MockUserRepo, *security.TokenService) {
		mockRepo := new(MockUserRepo)
		tokenSvc := security.NewTokenService("secret", time.Hour)
		return service.NewAuthService(mockRepo, tokenSvc, hasher, time.Hour, 24*time.Hour), mockRepo, tokenSvc
	}

	t.Run("Success", func(t *testing.T) {
		svc, mockRepo, tokenSvc := newSvc()
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
			ID:             1,
			Username:       "alice",
			HashedPassword: hashed,
			IsActive:       true,
		}, nil)

		resp, err := svc.Login(context.Background(), service.LoginInput{
			Username: "alice",
			Password: "Password1!",
		})
		assert.NoError(t, err)
		assert.Equal(t, "bearer", resp.TokenType)
		assert.Equal(t, int64(1), resp.User.ID)

		sub, err := tokenSvc.Subject(resp.AccessToken)
		assert.NoError(t, err)
		assert.Equal(t, "alice", sub)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		svc, mockRepo, _ := newSvc()
		mockRepo.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{
			ID:             1,
			Username:       "alice",
			HashedPassword: hashed,
			IsActive:       true,
		}, nil)

		resp, err := svc.Login(context.Background(), service.LoginInput{
			Username: "alice",
			Password: "wrong",
		})
		assert.Error(t, err)
		assert.Nil(t, resp)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc, mockRepo, _ := newSvc()
		mockRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

		resp, err := svc.Login(context.Background(), service.LoginInput{
			Username: "ghost",
			Password: "Password1!",
		})
		assert.Error(t, err)
		assert.Nil(t, resp)
	})

	t.Run("InactiveUser", func(t *testing.T) {
		svc, mockRepo, _ := newSvc()
		mockRepo.On("GetByUsername", mock.Anything, "gone").Return(&domain.User{
			ID:             2,
			Username:       "gone",
			HashedPassword: hashed,
			IsActive:       false,
		}, nil)

		resp, err := svc.Login(context.Background(), service.LoginInput{
			Username: "gone",
			Password: "Password1!",
		})
		assert.Error(t, err)
		assert.Nil(t, resp)
	})
}

func TestLogoutClearsOnlineFlag(t *testing.T) {
	mockRepo := new(MockUserRepo)
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(10)
	svc := service.NewAuthService(mockRepo, tokenSvc, hasher, time.Hour, 24*time.Hour)

	mockRepo.On("SetOnlineStatus", mock.Anything, int64(1), false).Return(nil)

	assert.NoError(t, svc.Logout(context.Background(), 1))
	mockRepo.AssertExpectations(t)
}
