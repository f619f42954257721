package services

import (
	"context"
	"testing"
	"time"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("unit-test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)
	ctx := context.Background()

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		username := "alice"
		email := "test@example.com"
		password := "ComplexPassword123!" // Must satisfy the complexity rules

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(ctx, username, email, gomock.Not(password)).
			Return(domain.User{ID: "user-uuid", Username: username, Roles: []string{"member"}}, nil).
			Times(1)

		token, err := svc.Register(ctx, username, email, password)

		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register(ctx, "alice", "test@example.com", "simple")

		req.Error(err)
		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser(ctx, "alice", "duplicate@example.com", gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(ctx, "alice", "duplicate@example.com", "ComplexPassword123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("unit-test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)
	ctx := context.Background()

	password := "ComplexPassword123!"
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	stored := domain.User{ID: "user-uuid", Username: "alice", PasswordHash: hash}

	t.Run("should return a token for valid credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUserByEmail(ctx, "test@example.com").
			Return(stored, nil).
			Times(1)

		token, err := svc.Login(ctx, "test@example.com", password)

		req.NoError(err)
		req.NotEmpty(token)
	})

	t.Run("should hide whether the account exists", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUserByEmail(ctx, "unknown@example.com").
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login(ctx, "unknown@example.com", password)

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should reject a wrong password with the same error", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			GetUserByEmail(ctx, "test@example.com").
			Return(stored, nil).
			Times(1)

		_, err := svc.Login(ctx, "test@example.com", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Verify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("unit-test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)
	ctx := context.Background()

	t.Run("should resolve a valid token to the stored identity", func(t *testing.T) {
		req := require.New(t)
		issued, err := tokens.Generate("user-uuid", []string{"member"})
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByID(ctx, "user-uuid").
			Return(domain.User{ID: "user-uuid", Username: "alice"}, nil).
			Times(1)

		identity, err := svc.Verify(ctx, issued)

		req.NoError(err)
		req.Equal("user-uuid", identity.UserID)
		req.Equal("alice", identity.DisplayName)
	})

	t.Run("should fail on an empty credential", func(t *testing.T) {
		req := require.New(t)

		_, err := svc.Verify(ctx, "")

		req.ErrorIs(err, errors.ErrMissingToken)
	})

	t.Run("should fail on a forged token", func(t *testing.T) {
		req := require.New(t)
		forged, err := auth.NewTokenManager("other-secret", time.Hour).Generate("user-uuid", nil)
		req.NoError(err)

		_, err = svc.Verify(ctx, forged)

		req.ErrorIs(err, errors.ErrInvalidToken)
	})

	t.Run("should fail when the token's user vanished", func(t *testing.T) {
		req := require.New(t)
		issued, err := tokens.Generate("ghost", nil)
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByID(ctx, "ghost").
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err = svc.Verify(ctx, issued)

		req.ErrorIs(err, errors.ErrInvalidToken)
	})
}
