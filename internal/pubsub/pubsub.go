package pubsub

import "context"

// Topics carried on the in-process bus. Publishers (location service, message
// dispatcher) emit here; the websocket forwarder turns them into room events.
const (
	TopicLocationUpdated = "location.updated"
	TopicMessageSent     = "chat.message.sent"
)

// Message is the structure passed between components on the bus.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "chat.message.sent").
	Topic string
	// UserID identifies the user who initiated the message.
	UserID string
	// Payload contains the raw event data as JSON.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with
	// the handler in a background goroutine. It returns once the subscription
	// is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
