// Package notifications publishes user-facing events into Redis channels and
// queues outgoing mail.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"parentslist/internal/observability"

	"github.com/redis/go-redis/v9"
)

// EventJoinRequest is published to a list creator when someone asks to join.
const EventJoinRequest = "join_request"

// JoinRequest is the payload of an EventJoinRequest notification.
type JoinRequest struct {
	Type     string `json:"type"`
	ListID   uint   `json:"list_id"`
	ListName string `json:"list_name"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier. A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel is the channel a given user's clients subscribe to.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// NotifyJoinRequest tells recipientID that a user asked to join their list.
func (n *Notifier) NotifyJoinRequest(ctx context.Context, recipientID uint, event JoinRequest) error {
	event.Type = EventJoinRequest
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, span := observability.TraceRedisOperation(ctx, "publish")
	defer span.End()

	if err := n.PublishUser(ctx, recipientID, string(payload)); err != nil {
		observability.NotificationsPublished.WithLabelValues(EventJoinRequest, "error").Inc()
		span.RecordError(err)
		return err
	}
	observability.NotificationsPublished.WithLabelValues(EventJoinRequest, "ok").Inc()
	return nil
}
