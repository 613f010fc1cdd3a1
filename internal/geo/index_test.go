package geo

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_QueryWithinRadius(t *testing.T) {
	idx := NewIndex()
	now := time.Now()

	// Downtown San Francisco and a point ~0.82 miles northeast.
	idx.Upsert("alice", 37.7749, -122.4194, now)
	idx.Upsert("bob", 37.7849, -122.4094, now)
	// Oakland, ~8 miles away, outside a 2 mile radius.
	idx.Upsert("carol", 37.8044, -122.2712, now)

	results := idx.Query(37.7749, -122.4194, 2.0)
	byUser := make(map[string]Candidate)
	for _, c := range results {
		byUser[c.UserID] = c
	}

	require.Contains(t, byUser, "alice")
	require.Contains(t, byUser, "bob")
	assert.NotContains(t, byUser, "carol")
	assert.InDelta(t, 0.82, byUser["bob"].Miles, 0.05)
	assert.InDelta(t, 0.0, byUser["alice"].Miles, 0.001)
}

func TestIndex_EveryResultWithinRadius(t *testing.T) {
	idx := NewIndex()
	now := time.Now()

	// A loose ring of points around the center, some in range and some not.
	for i := 0; i < 40; i++ {
		lat := 40.0 + float64(i)*0.01
		idx.Upsert(fmt.Sprintf("user%d", i), lat, -74.0, now)
	}

	radius := 5.0
	for _, c := range idx.Query(40.0, -74.0, radius) {
		assert.LessOrEqual(t, c.Miles, radius, "user %s outside radius", c.UserID)
	}
}

func TestIndex_UpsertReplacesPriorPoint(t *testing.T) {
	idx := NewIndex()
	base := time.Now()

	idx.Upsert("alice", 37.7749, -122.4194, base)
	// Move far enough to land in a different cell.
	idx.Upsert("alice", 40.7128, -74.0060, base.Add(time.Minute))

	assert.Empty(t, idx.Query(37.7749, -122.4194, 5.0), "old point should be gone")

	results := idx.Query(40.7128, -74.0060, 1.0)
	require.Len(t, results, 1, "index must never report duplicates for one user")
	assert.Equal(t, "alice", results[0].UserID)
}

func TestIndex_StaleUpsertDropped(t *testing.T) {
	idx := NewIndex()
	base := time.Now()

	idx.Upsert("alice", 40.7128, -74.0060, base)
	// A delayed update with an older timestamp must not win.
	idx.Upsert("alice", 37.7749, -122.4194, base.Add(-time.Minute))

	results := idx.Query(40.7128, -74.0060, 1.0)
	require.Len(t, results, 1)
	assert.Empty(t, idx.Query(37.7749, -122.4194, 5.0))
}

func TestIndex_Remove(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("alice", 40.7128, -74.0060, time.Now())
	idx.Remove("alice")
	assert.Empty(t, idx.Query(40.7128, -74.0060, 5.0))

	// Removing an unknown user is a no-op.
	idx.Remove("nobody")
}

func TestIndex_AntimeridianShortDistance(t *testing.T) {
	idx := NewIndex()
	now := time.Now()

	// Two points straddling the antimeridian, ~7 miles apart along the
	// equator-adjacent latitude, not most of the globe apart.
	idx.Upsert("west", 0.0, 179.95, now)
	idx.Upsert("east", 0.0, -179.95, now)

	// 0.1 degrees of longitude at the equator is ~6.9 miles: both points are
	// in range of each other at 7 miles, and in range of a point sitting on
	// the antimeridian at 5.
	results := idx.Query(0.0, 179.95, 7.0)
	byUser := make(map[string]float64)
	for _, c := range results {
		byUser[c.UserID] = c.Miles
	}
	require.Contains(t, byUser, "west")
	require.Contains(t, byUser, "east")
	assert.InDelta(t, 6.9, byUser["east"], 0.2)

	mid := idx.Query(0.0, -179.9999, 5.0)
	found := make(map[string]float64)
	for _, c := range mid {
		found[c.UserID] = c.Miles
	}
	require.Contains(t, found, "west")
	require.Contains(t, found, "east")
	assert.InDelta(t, 3.45, found["east"], 0.2)
}

func TestIndex_NearPoleQueryDoesNotPanic(t *testing.T) {
	idx := NewIndex()
	now := time.Now()

	idx.Upsert("amundsen", -89.99, 10.0, now)
	idx.Upsert("scott", -89.99, -170.0, now)

	// At this latitude every longitude is within a few miles of every other;
	// the planar approximation would say otherwise.
	results := idx.Query(-89.99, 100.0, 5.0)
	assert.Len(t, results, 2)
	for _, c := range results {
		assert.LessOrEqual(t, c.Miles, 5.0)
	}
}

func TestIndex_ConcurrentUpserts(t *testing.T) {
	idx := NewIndex()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				userID := fmt.Sprintf("user%d", n)
				idx.Upsert(userID, 37.0+float64(j)*0.001, -122.0, time.Now())
			}
		}(i)
	}
	wg.Wait()

	results := idx.Query(37.025, -122.0, 5.0)
	assert.Len(t, results, 8, "one live point per user")
}
