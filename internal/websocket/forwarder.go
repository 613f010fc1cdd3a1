package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nearbyconnect/nearby/internal/domain"
	"github.com/nearbyconnect/nearby/internal/pubsub"
	"github.com/nearbyconnect/nearby/internal/rooms"
)

// Event type names as delivered to clients.
const (
	EventNewMessage     = "new_message"
	EventLocationUpdate = "location_update"
)

// Forwarder listens on the in-process bus and turns bus messages into room
// events: message events fan out to the global messages room and each
// recipient's per-user room, location events to the owner's location room.
type Forwarder struct {
	subscriber pubsub.Subscriber
	router     *rooms.Router
	logger     *slog.Logger
}

// NewForwarder creates a forwarder between the bus and the room router.
func NewForwarder(sub pubsub.Subscriber, router *rooms.Router) *Forwarder {
	return &Forwarder{
		subscriber: sub,
		router:     router,
		logger:     slog.Default().With("service", "forwarder"),
	}
}

// Start subscribes to the relevant topics. Subscriptions run until the
// context is canceled.
func (f *Forwarder) Start(ctx context.Context) error {
	if err := f.subscriber.Subscribe(ctx, pubsub.TopicMessageSent, f.handleMessageSent); err != nil {
		return err
	}
	return f.subscriber.Subscribe(ctx, pubsub.TopicLocationUpdated, f.handleLocationUpdated)
}

func (f *Forwarder) handleMessageSent(_ context.Context, msg pubsub.Message) error {
	var event domain.OutboundMessage
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		f.logger.Error("Failed to unmarshal message event", "error", err)
		return err
	}

	f.router.Publish(rooms.RoomMessages, EventNewMessage, msg.Payload)
	for _, recipientID := range event.RecipientIDs {
		f.router.Publish(rooms.UserRoom(recipientID), EventNewMessage, msg.Payload)
	}
	return nil
}

func (f *Forwarder) handleLocationUpdated(_ context.Context, msg pubsub.Message) error {
	var pt domain.LocationPoint
	if err := json.Unmarshal(msg.Payload, &pt); err != nil {
		f.logger.Error("Failed to unmarshal location event", "error", err)
		return err
	}

	f.router.Publish(rooms.LocationRoom(pt.UserID), EventLocationUpdate, msg.Payload)
	return nil
}
