// Package geo provides an in-memory spatial index over user locations.
//
// Points are bucketed into fixed geohash cells sized well above the maximum
// supported query radius, so a radius query only visits the handful of cells
// intersecting the query circle's bounding box instead of every stored point.
// Candidates from those cells are then refined with an exact great-circle
// distance check.
package geo

import (
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const (
	// cellPrecision is the geohash length used for bucket keys. At 4 characters
	// a cell is 0.17578125 degrees of latitude by 0.3515625 degrees of
	// longitude (roughly 19.5km x 39km at the equator), comfortably larger
	// than the 5 mile maximum query radius.
	cellPrecision = 4

	cellLatDegrees = 180.0 / 1024.0
	cellLonDegrees = 360.0 / 1024.0

	metersPerMile = 1609.344

	// milesPerDegree slightly undershoots the true miles-per-degree-latitude
	// (69.055) so bounding boxes err on the side of covering extra cells.
	milesPerDegree = 69.0

	numShards = 32
)

// Candidate is a point returned by Query, before any presence filtering or
// ordering is applied.
type Candidate struct {
	UserID    string
	Latitude  float64
	Longitude float64
	Miles     float64
	UpdatedAt time.Time
}

type point struct {
	lat float64
	lon float64
	at  time.Time
}

type userEntry struct {
	cell string
	pt   point
}

type userShard struct {
	mu    sync.Mutex
	users map[string]userEntry
}

type cellShard struct {
	mu    sync.RWMutex
	cells map[string]map[string]point
}

// Index is a sharded, cell-partitioned point index. It holds at most one live
// point per user; writers replace, never append. User shards and cell shards
// are locked independently so updates for unrelated users do not serialize.
// Lock order is always user shard before cell shard.
type Index struct {
	users [numShards]userShard
	cells [numShards]cellShard
}

// NewIndex creates an empty spatial index.
func NewIndex() *Index {
	idx := &Index{}
	for i := 0; i < numShards; i++ {
		idx.users[i].users = make(map[string]userEntry)
		idx.cells[i].cells = make(map[string]map[string]point)
	}
	return idx
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % numShards
}

// Upsert records a new point for the user, replacing any prior one. An update
// whose timestamp is older than the stored point is dropped: last writer wins
// by timestamp, not by arrival order.
func (idx *Index) Upsert(userID string, lat, lon float64, at time.Time) {
	us := &idx.users[shardFor(userID)]
	us.mu.Lock()
	defer us.mu.Unlock()

	prev, exists := us.users[userID]
	if exists && prev.pt.at.After(at) {
		return
	}

	cell := geohash.EncodeWithPrecision(lat, lon, cellPrecision)
	if exists && prev.cell != cell {
		idx.removeFromCell(prev.cell, userID)
	}

	us.users[userID] = userEntry{cell: cell, pt: point{lat: lat, lon: lon, at: at}}

	cs := &idx.cells[shardFor(cell)]
	cs.mu.Lock()
	bucket, ok := cs.cells[cell]
	if !ok {
		bucket = make(map[string]point)
		cs.cells[cell] = bucket
	}
	bucket[userID] = point{lat: lat, lon: lon, at: at}
	cs.mu.Unlock()
}

// Remove deletes the user's point, if any.
func (idx *Index) Remove(userID string) {
	us := &idx.users[shardFor(userID)]
	us.mu.Lock()
	defer us.mu.Unlock()

	prev, exists := us.users[userID]
	if !exists {
		return
	}
	delete(us.users, userID)
	idx.removeFromCell(prev.cell, userID)
}

func (idx *Index) removeFromCell(cell, userID string) {
	cs := &idx.cells[shardFor(cell)]
	cs.mu.Lock()
	if bucket, ok := cs.cells[cell]; ok {
		delete(bucket, userID)
		if len(bucket) == 0 {
			delete(cs.cells, cell)
		}
	}
	cs.mu.Unlock()
}

// Query returns every stored point within radiusMiles of (lat, lon), in no
// particular order. Only cells intersecting the bounding box of the query
// circle are visited; an exact haversine check discards the box's corners.
func (idx *Index) Query(lat, lon, radiusMiles float64) []Candidate {
	center := orb.Point{lon, lat}
	radiusMeters := radiusMiles * metersPerMile

	var out []Candidate
	for _, cell := range coveringCells(lat, lon, radiusMiles) {
		cs := &idx.cells[shardFor(cell)]
		cs.mu.RLock()
		for userID, pt := range cs.cells[cell] {
			meters := orbgeo.DistanceHaversine(center, orb.Point{pt.lon, pt.lat})
			if meters <= radiusMeters {
				out = append(out, Candidate{
					UserID:    userID,
					Latitude:  pt.lat,
					Longitude: pt.lon,
					Miles:     meters / metersPerMile,
					UpdatedAt: pt.at,
				})
			}
		}
		cs.mu.RUnlock()
	}
	return out
}

// coveringCells enumerates the geohash cells intersecting the bounding box of
// the circle at (lat, lon) with the given radius. Longitude wraps at the
// antimeridian; near the poles the longitude span degenerates and the whole
// ring at that latitude band is covered instead.
func coveringCells(lat, lon, radiusMiles float64) []string {
	dLat := radiusMiles / milesPerDegree
	latMin := math.Max(lat-dLat, -90)
	latMax := math.Min(lat+dLat, 90)

	// Longitude degrees shrink with cos(latitude); size the box for the row
	// closest to the pole so it covers the widest span needed.
	maxAbsLat := math.Max(math.Abs(latMin), math.Abs(latMax))
	cosLat := math.Cos(maxAbsLat * math.Pi / 180)

	fullRing := false
	var dLon float64
	if cosLat <= 1e-3 {
		fullRing = true
	} else {
		dLon = radiusMiles / (milesPerDegree * cosLat)
		if dLon >= 180 {
			fullRing = true
		}
	}

	lonMin, lonMax := -180.0, 180.0
	if !fullRing {
		lonMin = lon - dLon
		lonMax = lon + dLon
	}

	seen := make(map[string]struct{})
	var cells []string
	latSteps := int((latMax-latMin)/cellLatDegrees) + 2
	lonSteps := int((lonMax-lonMin)/cellLonDegrees) + 2

	for i := 0; i < latSteps; i++ {
		cellLat := math.Min(latMin+float64(i)*cellLatDegrees, latMax)
		for j := 0; j < lonSteps; j++ {
			cellLon := normalizeLon(math.Min(lonMin+float64(j)*cellLonDegrees, lonMax))
			key := geohash.EncodeWithPrecision(cellLat, cellLon, cellPrecision)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			cells = append(cells, key)
		}
	}
	return cells
}

// normalizeLon maps a longitude into [-180, 180).
func normalizeLon(lon float64) float64 {
	for lon < -180 {
		lon += 360
	}
	for lon >= 180 {
		lon -= 360
	}
	return lon
}
