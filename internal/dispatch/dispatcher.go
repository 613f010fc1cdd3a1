// Package dispatch validates and persists outbound messages, then publishes
// the fan-out event. Persist-then-publish: a message a live subscriber sees is
// always already durably recorded, and a message that failed to persist is
// never fanned out.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nearbyconnect/nearby/internal/domain"
	"github.com/nearbyconnect/nearby/internal/presence"
	"github.com/nearbyconnect/nearby/internal/pubsub"
	"github.com/nearbyconnect/nearby/internal/store"
)

// Dispatcher sends messages.
type Dispatcher struct {
	users     store.UserStore
	messages  store.MessageStore
	presence  *presence.Registry
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewDispatcher creates a message dispatcher.
func NewDispatcher(users store.UserStore, messages store.MessageStore, reg *presence.Registry, publisher pubsub.Publisher) *Dispatcher {
	return &Dispatcher{
		users:     users,
		messages:  messages,
		presence:  reg,
		publisher: publisher,
		logger:    slog.Default().With("service", "dispatch"),
	}
}

// Send validates the message, persists it via the external store, and then
// publishes the fan-out event. Returns the new message id.
func (d *Dispatcher) Send(ctx context.Context, senderID string, recipientIDs []string, content, imageData string) (string, error) {
	if len(recipientIDs) == 0 {
		return "", domain.NewValidationError("recipient_ids", "must not be empty")
	}
	if content == "" && imageData == "" {
		return "", domain.NewValidationError("content", "message needs text or an image")
	}

	for _, recipientID := range recipientIDs {
		exists, err := d.users.Exists(ctx, recipientID)
		if err != nil {
			return "", fmt.Errorf("failed to verify recipient: %w", err)
		}
		if !exists {
			return "", domain.NewNotFoundError("recipient", recipientID)
		}
	}

	msg := &domain.OutboundMessage{
		ID:           uuid.NewString(),
		SenderID:     senderID,
		RecipientIDs: recipientIDs,
		Content:      content,
		ImageData:    imageData,
		CreatedAt:    presence.Now(),
	}

	if err := d.messages.Insert(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to persist message: %w", err)
	}

	// Sending a message counts as activity.
	d.presence.Touch(senderID, msg.CreatedAt)

	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("Failed to marshal message event", "message_id", msg.ID, "error", err)
		return msg.ID, nil
	}
	event := pubsub.Message{
		Topic:   pubsub.TopicMessageSent,
		UserID:  senderID,
		Payload: payload,
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		// The message is durable; realtime delivery is best-effort.
		d.logger.Error("Failed to publish message event", "message_id", msg.ID, "error", err)
	}

	return msg.ID, nil
}
