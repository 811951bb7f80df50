package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/catalog-comb/app/database"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrEmailTaken         = database.ErrEmailTaken
)

// Result is returned by a successful sign-up or sign-in.
type Result struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

type Service struct {
	users  database.UserRepository
	tokens *TokenService
	mailer Mailer
	signal *Signal

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

func NewService(users database.UserRepository, tokens *TokenService, mailer Mailer, signal *Signal) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if signal == nil {
		signal = NewSignal()
	}

	return &Service{
		users:   users,
		tokens:  tokens,
		mailer:  mailer,
		signal:  signal,
		revoked: make(map[string]time.Time),
	}
}

func (s *Service) Signal() *Signal {
	return s.signal
}

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*Result, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	userID, err := generateID(userIDPrefix)
	if err != nil {
		return nil, err
	}

	user := database.User{
		ID:           userID,
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("User signed up", "user_id", user.ID)

	return s.issue(identityOf(&user))
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	slog.Debug("User signed in", "user_id", user.ID)

	return s.issue(identityOf(user))
}

// SignOut revokes the access token until it would have expired anyway.
func (s *Service) SignOut(token string) error {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return ErrNotSignedIn
	}

	s.mu.Lock()
	now := time.Now()
	for id, expiresAt := range s.revoked {
		if expiresAt.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.TokenID] = claims.ExpiresAt
	s.mu.Unlock()

	slog.Debug("User signed out", "user_id", claims.UserID)
	s.signal.Emit(Event{UserID: claims.UserID})

	return nil
}

// Authenticate resolves an access token to the current identity of its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, ErrNotSignedIn
	}
	if s.isRevoked(claims.TokenID) {
		return nil, ErrNotSignedIn
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrNotSignedIn
	}

	identity := identityOf(user)
	return &identity, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID, displayName string) (*Identity, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	if err := s.users.UpdateDisplayName(ctx, userID, strings.TrimSpace(displayName)); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrNotSignedIn
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrNotSignedIn
	}

	identity := identityOf(user)
	s.signal.Emit(Event{UserID: identity.UserID, Identity: &identity})

	return &identity, nil
}

// RequestPasswordReset mails a reset token. Unknown addresses succeed silently
// so the endpoint cannot be used to probe for accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		slog.Debug("Password reset for unknown email ignored")
		return nil
	}

	token, _, err := s.tokens.GenerateResetToken(identityOf(user))
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("failed to send reset token: %w", err)
	}

	return nil
}

func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.tokens.VerifyResetToken(resetToken)
	if err != nil {
		return err
	}

	// Reserve the token before the slow hash so concurrent confirms cannot
	// both pass; the reservation is dropped again if the reset fails.
	s.mu.Lock()
	if _, used := s.revoked[claims.TokenID]; used {
		s.mu.Unlock()
		return ErrInvalidToken
	}
	s.revoked[claims.TokenID] = claims.ExpiresAt
	s.mu.Unlock()

	if err := s.resetPassword(ctx, claims, newPassword); err != nil {
		s.mu.Lock()
		delete(s.revoked, claims.TokenID)
		s.mu.Unlock()
		return err
	}

	slog.Info("Password reset completed", "user_id", claims.UserID)

	return nil
}

func (s *Service) resetPassword(ctx context.Context, claims *Claims, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, claims.UserID, hash); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func (s *Service) issue(identity Identity) (*Result, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.signal.Emit(Event{UserID: identity.UserID, Identity: &identity})

	return &Result{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

func (s *Service) isRevoked(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok
}

func identityOf(user *database.User) Identity {
	return Identity{UserID: user.ID, DisplayName: user.DisplayName, Email: user.Email}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
