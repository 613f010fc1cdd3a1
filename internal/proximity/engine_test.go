package proximity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearbyconnect/nearby/internal/domain"
	"github.com/nearbyconnect/nearby/internal/geo"
	"github.com/nearbyconnect/nearby/internal/presence"
)

// fakeUserStore implements store.UserStore for testing.
type fakeUserStore struct {
	known map[string]bool
}

func (f *fakeUserStore) Exists(_ context.Context, userID string) (bool, error) {
	return f.known[userID], nil
}

func newTestEngine(known ...string) (*Engine, *geo.Index, *presence.Registry) {
	users := &fakeUserStore{known: make(map[string]bool)}
	for _, u := range known {
		users.known[u] = true
	}
	index := geo.NewIndex()
	reg := presence.NewRegistry()
	return NewEngine(index, reg, users), index, reg
}

func TestEngine_NearbyEndToEnd(t *testing.T) {
	engine, index, reg := newTestEngine("alice", "bob")
	now := presence.Now()

	index.Upsert("alice", 37.7749, -122.4194, now)
	reg.Touch("alice", now)
	index.Upsert("bob", 37.7849, -122.4094, now)
	reg.Touch("bob", now)

	results, err := engine.Nearby(context.Background(), "alice", 37.7749, -122.4194, 2.0)
	require.NoError(t, err)
	require.Len(t, results, 1, "requester must be excluded from its own results")

	assert.Equal(t, "bob", results[0].UserID)
	assert.InDelta(t, 0.82, results[0].DistanceMiles, 0.05)
	assert.Equal(t, 37.7849, results[0].Latitude)
	assert.Equal(t, now, results[0].LastActive)
}

func TestEngine_RadiusValidation(t *testing.T) {
	engine, _, _ := newTestEngine("alice")

	for _, radius := range []float64{0.3, 6.0, 0.0, -1.0} {
		_, err := engine.Nearby(context.Background(), "alice", 37.0, -122.0, radius)
		assert.ErrorIs(t, err, domain.ErrValidation, "radius %v should be rejected", radius)
	}

	// Both boundaries are inclusive.
	for _, radius := range []float64{0.5, 5.0} {
		_, err := engine.Nearby(context.Background(), "alice", 37.0, -122.0, radius)
		assert.NoError(t, err, "radius %v should be accepted", radius)
	}
}

func TestEngine_CoordinateValidation(t *testing.T) {
	engine, _, _ := newTestEngine("alice")

	_, err := engine.Nearby(context.Background(), "alice", 91.0, 0.0, 1.0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = engine.Nearby(context.Background(), "alice", 0.0, -181.0, 1.0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_UnknownRequester(t *testing.T) {
	engine, _, _ := newTestEngine("alice")

	_, err := engine.Nearby(context.Background(), "ghost", 37.0, -122.0, 1.0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var nfe *domain.NotFoundError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "ghost", nfe.ID)
}

func TestEngine_InactiveUsersExcluded(t *testing.T) {
	engine, index, reg := newTestEngine("alice", "bob", "carol")
	now := presence.Now()

	index.Upsert("bob", 37.7755, -122.4190, now)
	reg.Touch("bob", now.Add(-29*time.Minute))

	// Exactly at the 30 minute boundary: excluded.
	index.Upsert("carol", 37.7756, -122.4191, now)
	reg.Touch("carol", now.Add(-30*time.Minute))

	results, err := engine.Nearby(context.Background(), "alice", 37.7749, -122.4194, 1.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].UserID)
}

func TestEngine_ResultsSortedByDistanceThenID(t *testing.T) {
	engine, index, reg := newTestEngine("alice")
	now := presence.Now()

	// Two users at the same spot (distance tie) plus one further out.
	index.Upsert("zara", 37.7760, -122.4194, now)
	index.Upsert("ben", 37.7760, -122.4194, now)
	index.Upsert("far", 37.7900, -122.4194, now)
	for _, u := range []string{"zara", "ben", "far"} {
		reg.Touch(u, now)
	}

	results, err := engine.Nearby(context.Background(), "alice", 37.7749, -122.4194, 2.0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "ben", results[0].UserID, "ties break by user id")
	assert.Equal(t, "zara", results[1].UserID)
	assert.Equal(t, "far", results[2].UserID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].DistanceMiles, results[i-1].DistanceMiles)
	}
}

func TestEngine_AllResultsWithinRadius(t *testing.T) {
	engine, index, reg := newTestEngine("alice")
	now := presence.Now()

	for i, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		index.Upsert(id, 37.7749+float64(i)*0.02, -122.4194, now)
		reg.Touch(id, now)
	}

	results, err := engine.Nearby(context.Background(), "alice", 37.7749, -122.4194, 3.0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.LessOrEqual(t, r.DistanceMiles, 3.0)
	}
	assert.Less(t, len(results), 5, "users beyond the radius are filtered out")
}
