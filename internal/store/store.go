// Package store defines the external collaborators the core depends on:
// user existence lookups and durable persistence of messages and locations.
// The core only consumes these interfaces; durability itself is not its job.
package store

import (
	"context"

	"github.com/nearbyconnect/nearby/internal/domain"
)

// UserStore answers whether a user id is known to the system.
type UserStore interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// MessageStore persists dispatched messages and serves the history
// read-through.
type MessageStore interface {
	Insert(ctx context.Context, msg *domain.OutboundMessage) error
	// ListForUser returns up to limit messages the user sent or received,
	// newest first.
	ListForUser(ctx context.Context, userID string, limit int64) ([]domain.OutboundMessage, error)
}

// LocationStore persists the latest location per user.
type LocationStore interface {
	Upsert(ctx context.Context, pt domain.LocationPoint) error
}
