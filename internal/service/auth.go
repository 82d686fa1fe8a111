// Authentication flow:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ PasswordService (bcrypt)
//	                   ↘ TokenService (JWT)
//
// Hashing happens here, explicitly, before the user reaches the repository.
// The repository only ever sees a bcrypt hash.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/auth"
	"github.com/sakif/articles-api/internal/model"
	"github.com/sakif/articles-api/internal/repository"
)

// MaxUsernameLength matches the users.username column.
const MaxUsernameLength = 255

// errInvalidCredentials is shared by every login failure so the response
// never says which half of the credentials was wrong.
func errInvalidCredentials() error {
	return apperror.Unauthorized("invalid credentials")
}

// PasswordHasher is the part of auth.PasswordService the service uses.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
	VerifyDummy(plaintext string) error
}

// AuthService registers users and logs them in.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → sign JWTs
//   - passwords  PasswordHasher             → bcrypt hash/verify
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords PasswordHasher
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords PasswordHasher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued access token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an account and returns a token for it.
//
// The existence check gives a clean Conflict for the common case; the
// repository's unique constraint still turns a concurrent duplicate into
// the same Conflict.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	exists, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking username: %w", err)
	}
	if exists {
		return nil, apperror.Conflict("user", username)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// Login checks username and password and returns a fresh token.
//
// An unknown username and a wrong password produce the same error. For an
// unknown username a dummy bcrypt compare still runs, so the two cases also
// take about the same time.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.VerifyDummy(password)
			return nil, errInvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.Int64("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, errInvalidCredentials()
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return s.issue(user)
}

// IssueToken signs an access token carrying the user's id and username.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return token, nil
}

// CurrentUser loads the account behind a verified token.
func (s *AuthService) CurrentUser(ctx context.Context, id *auth.Identity) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %d: %w", id.ID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

func validateCredentials(username, password string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}
