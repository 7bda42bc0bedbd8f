package notifications

import (
	"context"
	"encoding/json"
	"time"

	"parentslist/internal/observability"
)

// Mail event types queued for the mail worker.
const (
	EventEmailConfirmation = "email_confirmation"
	EventPasswordReset     = "password_reset"
)

// MailOutbox is the Redis list the mail worker pops messages from.
const MailOutbox = "mail:outbox"

// MailMessage is one queued email carrying a single-use token.
type MailMessage struct {
	Type      string    `json:"type"`
	UserID    uint      `json:"user_id"`
	To        string    `json:"to"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SendEmailConfirmation queues the confirmation link for a newly added email.
func (n *Notifier) SendEmailConfirmation(ctx context.Context, userID uint, email, token string, expiresAt time.Time) error {
	return n.enqueueMail(ctx, MailMessage{
		Type:      EventEmailConfirmation,
		UserID:    userID,
		To:        email,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// SendPasswordReset queues a password reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, userID uint, email, token string, expiresAt time.Time) error {
	return n.enqueueMail(ctx, MailMessage{
		Type:      EventPasswordReset,
		UserID:    userID,
		To:        email,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (n *Notifier) enqueueMail(ctx context.Context, msg MailMessage) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, span := observability.TraceRedisOperation(ctx, "rpush")
	defer span.End()

	if err := n.rdb.RPush(ctx, MailOutbox, payload).Err(); err != nil {
		observability.NotificationsPublished.WithLabelValues(msg.Type, "error").Inc()
		span.RecordError(err)
		return err
	}
	observability.NotificationsPublished.WithLabelValues(msg.Type, "ok").Inc()
	return nil
}
