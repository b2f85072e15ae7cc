package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/librarycatalog/catalog-server/internal/auth"
	"github.com/librarycatalog/catalog-server/internal/domain"
	domainerrors "github.com/librarycatalog/catalog-server/internal/errors"
	"github.com/librarycatalog/catalog-server/internal/id"
	"github.com/librarycatalog/catalog-server/internal/store"
	"github.com/librarycatalog/catalog-server/internal/validation"
)

const wrongCredentials = "wrong username or password"

// AuthService manages users, logins and bearer token verification.
type AuthService struct {
	store     store.Store
	tokens    *auth.TokenService
	logger    *slog.Logger
	validator *validation.Validator
}

// NewAuthService creates a new authentication service.
func NewAuthService(st store.Store, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:     st,
		tokens:    tokens,
		logger:    logger,
		validator: validation.New(),
	}
}

// CreateUserInput holds the createUser arguments. Password is optional; users
// created without one cannot log in.
type CreateUserInput struct {
	Username      string
	FavoriteGenre string
	Password      *string
}

// CreateUser registers a new user. Validation and uniqueness failures are
// BAD_USER_INPUT errors whose invalidArgs never include the password.
func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	args := map[string]any{
		"username":      in.Username,
		"favoriteGenre": in.FavoriteGenre,
	}

	userID, err := id.Generate(id.User)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:            userID,
		Username:      in.Username,
		FavoriteGenre: in.FavoriteGenre,
	}
	if err := s.validator.Validate(user); err != nil {
		return nil, invalidInput(err, "", args)
	}

	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
			return nil, domainerrors.UserInput(err.Error()).WithInvalidArgs(args)
		case err != nil:
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, invalidInput(err, fmt.Sprintf("username %q is already taken", in.Username), args)
	}

	s.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.Bool("can_login", user.CanLogin()))

	return user, nil
}

// Login checks the credentials and issues a token. Every failure, whether an
// unknown user, a user without a password or a wrong password, is reported identically.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	fail := domainerrors.UserInput(wrongCredentials).WithInvalidArgs(map[string]any{"username": username})

	user, err := s.store.Users().FindOne(ctx, store.IndexUserUsername, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		auth.VerifyMissing(password)
		return "", fail
	case err != nil:
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if !user.CanLogin() {
		auth.VerifyMissing(password)
		s.logger.Debug("login rejected", slog.String("user_id", user.ID))
		return "", fail
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		s.logger.Debug("login rejected", slog.String("user_id", user.ID))
		return "", fail
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return token, nil
}

// Authenticate resolves a bearer token to its user. A token that fails
// verification is an UNAUTHENTICATED error; a valid token whose user no
// longer exists yields a nil user and no error.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domainerrors.Unauthenticated("invalid or expired token").WithCause(err)
	}

	user, err := s.store.Users().Get(ctx, claims.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Me returns the current user, or nil for anonymous requests.
func (s *AuthService) Me(ctx context.Context) *domain.User {
	return auth.UserFromContext(ctx)
}
