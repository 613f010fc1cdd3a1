// Package proximity answers "who, among currently active users, is within
// radius R of point P" by composing the spatial index with the presence
// registry.
package proximity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/nearbyconnect/nearby/internal/domain"
	"github.com/nearbyconnect/nearby/internal/geo"
	"github.com/nearbyconnect/nearby/internal/presence"
	"github.com/nearbyconnect/nearby/internal/store"
)

// Radius bounds accepted by Nearby, in miles, both inclusive.
const (
	MinRadiusMiles = 0.5
	MaxRadiusMiles = 5.0
)

// Engine executes proximity queries.
type Engine struct {
	index    *geo.Index
	presence *presence.Registry
	users    store.UserStore
	logger   *slog.Logger
}

// NewEngine creates a proximity engine over the given index and registry.
func NewEngine(index *geo.Index, reg *presence.Registry, users store.UserStore) *Engine {
	return &Engine{
		index:    index,
		presence: reg,
		users:    users,
		logger:   slog.Default().With("service", "proximity"),
	}
}

// Nearby returns the active users within radiusMiles of (lat, lon), sorted
// ascending by distance with ties broken by user id. The requester is never
// part of its own results. Distances are computed in full precision and
// rounded to two decimals in the output.
func (e *Engine) Nearby(ctx context.Context, requesterID string, lat, lon, radiusMiles float64) ([]domain.NearbyUser, error) {
	if err := validate(lat, lon, radiusMiles); err != nil {
		return nil, err
	}

	exists, err := e.users.Exists(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify requester: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("user", requesterID)
	}

	now := presence.Now()
	candidates := e.index.Query(lat, lon, radiusMiles)

	results := make([]domain.NearbyUser, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID == requesterID {
			continue
		}
		if !e.presence.Active(c.UserID, now) {
			continue
		}
		lastActive, _ := e.presence.LastActive(c.UserID)
		results = append(results, domain.NearbyUser{
			UserID:        c.UserID,
			Latitude:      c.Latitude,
			Longitude:     c.Longitude,
			DistanceMiles: roundMiles(c.Miles),
			LastActive:    lastActive,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceMiles != results[j].DistanceMiles {
			return results[i].DistanceMiles < results[j].DistanceMiles
		}
		return results[i].UserID < results[j].UserID
	})

	e.logger.Debug("Proximity query served",
		"requester", requesterID,
		"radius_miles", radiusMiles,
		"candidates", len(candidates),
		"results", len(results))

	return results, nil
}

func validate(lat, lon, radiusMiles float64) error {
	if lat < -90 || lat > 90 {
		return domain.NewValidationError("latitude", "must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return domain.NewValidationError("longitude", "must be between -180 and 180")
	}
	if radiusMiles < MinRadiusMiles || radiusMiles > MaxRadiusMiles {
		return domain.NewValidationError("radius_miles", fmt.Sprintf("must be between %.1f and %.1f", MinRadiusMiles, MaxRadiusMiles))
	}
	return nil
}

func roundMiles(miles float64) float64 {
	return math.Round(miles*100) / 100
}
