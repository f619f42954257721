package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"pairchat/auth"
	"pairchat/contract"
	"pairchat/domain"
	"pairchat/errors"
	"pairchat/repositories"
)

type Token string

type IAuthService interface {
	contract.AuthVerifier
	Register(ctx context.Context, username, email, password string) (Token, error)
	Login(ctx context.Context, email, password string) (Token, error)
}

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// Business rules first, before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing happens here so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, email, hashedPassword)
	if err != nil {
		return "", err // propagates ErrUserAlreadyExists when the email is taken
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Verify resolves a bearer credential presented at handshake time to the
// stable identity bound to the connection.
func (s *AuthService) Verify(ctx context.Context, credential string) (domain.Identity, error) {
	if credential == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}

	claims, err := s.tokens.Validate(credential)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return domain.Identity{}, errors.ErrInvalidToken
		}
		return domain.Identity{}, err
	}
	return user.Identity(), nil
}
