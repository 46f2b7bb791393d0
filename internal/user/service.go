package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeMC777/ecom-saas/internal/auth"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service struct {
	repo   Repository
	tokens *auth.Tokens
}

func NewService(repo Repository, tokens *auth.Tokens) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates a user and returns a session token for it.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must have at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash error: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, in LoginRequest) (*TokenResponse, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Me returns the account behind an authenticated session.
func (s *Service) Me(ctx context.Context, sess auth.Session) (*User, error) {
	if sess.UserID == "" {
		return nil, auth.ErrUnauthorized
	}
	return s.repo.GetByID(ctx, sess.UserID)
}

func (s *Service) session(u *User) (*TokenResponse, error) {
	tok, err := s.tokens.Issue(auth.Session{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &TokenResponse{Token: tok, User: *u}, nil
}
