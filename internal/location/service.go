// Package location handles inbound location updates: durable persistence,
// spatial index upsert, presence touch and the realtime event publish.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nearbyconnect/nearby/internal/domain"
	"github.com/nearbyconnect/nearby/internal/geo"
	"github.com/nearbyconnect/nearby/internal/presence"
	"github.com/nearbyconnect/nearby/internal/pubsub"
	"github.com/nearbyconnect/nearby/internal/store"
)

// Service processes location updates.
type Service struct {
	index     *geo.Index
	presence  *presence.Registry
	locations store.LocationStore
	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewService creates a location service.
func NewService(index *geo.Index, reg *presence.Registry, locations store.LocationStore, publisher pubsub.Publisher) *Service {
	return &Service{
		index:     index,
		presence:  reg,
		locations: locations,
		publisher: publisher,
		logger:    slog.Default().With("service", "location"),
	}
}

// Update records a new position for the user. The durable store is written
// first; only then are the in-memory index and presence registry updated and
// the location event published. A failed publish is logged, not surfaced: the
// update itself has already succeeded.
func (s *Service) Update(ctx context.Context, userID string, lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return domain.NewValidationError("latitude", "must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return domain.NewValidationError("longitude", "must be between -180 and 180")
	}

	pt := domain.LocationPoint{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lon,
		UpdatedAt: presence.Now(),
	}

	if err := s.locations.Upsert(ctx, pt); err != nil {
		return fmt.Errorf("failed to persist location: %w", err)
	}

	s.index.Upsert(userID, lat, lon, pt.UpdatedAt)
	s.presence.Touch(userID, pt.UpdatedAt)

	payload, err := json.Marshal(pt)
	if err != nil {
		s.logger.Error("Failed to marshal location event", "user_id", userID, "error", err)
		return nil
	}
	msg := pubsub.Message{
		Topic:   pubsub.TopicLocationUpdated,
		UserID:  userID,
		Payload: payload,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("Failed to publish location event", "user_id", userID, "error", err)
	}

	return nil
}
