package auth

import (
	"context"
	"log/slog"
)

// Mailer delivers password reset tokens to a user.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes reset tokens to the log instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	slog.Info("Password reset requested", "email", email, "token", token)
	return nil
}
