package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shoplite/apiserver/internal/auth"
	"github.com/shoplite/apiserver/internal/events"
	"github.com/shoplite/apiserver/internal/store"
	"github.com/shoplite/apiserver/types"
)

var (
	// ErrInvalidCredentials is returned for both an unknown email and a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an email that exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound is returned when the referenced user no longer exists.
	ErrNotFound = errors.New("user not found")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateName(ctx context.Context, id int, name string) (types.User, error)
}

// AuthService orchestrates login, registration, and profile access.
type AuthService struct {
	repo   UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
	events *events.Publisher
}

// NewAuthService constructs an AuthService. publisher may be nil.
func NewAuthService(repo UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager, publisher *events.Publisher) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		events: publisher,
	}
}

// Login verifies credentials and issues a token. An unknown email and a
// failed password check both come back as ErrInvalidCredentials so the
// response never reveals which part was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", fmt.Errorf("get user by email: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Sign(user)
	if err != nil {
		return types.User{}, "", fmt.Errorf("sign token: %w", err)
	}
	return sanitize(user), token, nil
}

// Register creates an account with the default role and issues a token.
// A concurrent registration of the same email resolves at the store's
// unique index; the loser gets ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (types.User, string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        NormalizeEmail(email),
		Role:         types.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, "", ErrEmailTaken
		}
		return types.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Sign(user)
	if err != nil {
		return types.User{}, "", fmt.Errorf("sign token: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:   events.TypeUserRegistered,
		UserID: user.ID,
		Email:  user.Email,
	})
	return sanitize(user), token, nil
}

// GetProfile re-fetches the fresh record by id. The token's embedded
// snapshot is not trusted here: name or role may have changed since it
// was issued.
func (s *AuthService) GetProfile(ctx context.Context, userID int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return sanitize(user), nil
}

// UpdateProfile changes the display name only.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int, name string) (types.User, error) {
	user, err := s.repo.UpdateName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("update user name: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:   events.TypeUserProfileUpdated,
		UserID: user.ID,
		Email:  user.Email,
	})
	return sanitize(user), nil
}

// NormalizeEmail trims and lowercases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sanitize strips the password hash before the record leaves the service.
func sanitize(user types.User) types.User {
	user.PasswordHash = ""
	return user
}
