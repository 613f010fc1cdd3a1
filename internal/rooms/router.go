// Package rooms implements the room router: named broadcast channels that
// connections join and leave, with best-effort, at-most-once fan-out to every
// current member. Rooms are ephemeral realtime signaling, not a durable queue.
package rooms

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// Well-known room names.
const (
	// RoomMessages is the global room every connection is auto-joined to.
	RoomMessages = "messages"

	locationRoomPrefix = "location_updates_"
	userRoomPrefix     = "user_"
)

// LocationRoom names the location-update room for a user.
func LocationRoom(userID string) string {
	return locationRoomPrefix + userID
}

// UserRoom names the private per-user room a connection is auto-joined to for
// its own user.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// sendBuffer bounds the per-connection event queue. A full queue means the
// subscriber is lagging; events to it are dropped, never the publisher blocked.
const sendBuffer = 256

// Event is a single room event as delivered to subscribers.
type Event struct {
	Room    string          `json:"room"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Conn is one subscriber connection. The router owns its lifecycle; the
// transport layer reads delivered events from Events.
type Conn struct {
	ID     string
	UserID string

	send chan Event

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

// Events returns the channel of events delivered to this connection.
func (c *Conn) Events() <-chan Event {
	return c.send
}

type room struct {
	mu      sync.RWMutex
	members map[*Conn]struct{}
}

// Router tracks subscriptions and fans published events out to room members.
// Each room carries its own lock so publishes to unrelated rooms never
// serialize. Lock order is always connection before room.
type Router struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	conns  map[string]*Conn
	logger *slog.Logger
}

// NewRouter creates an empty room router.
func NewRouter() *Router {
	return &Router{
		rooms:  make(map[string]*room),
		conns:  make(map[string]*Conn),
		logger: slog.Default().With("service", "rooms"),
	}
}

// Connect registers a new connection and auto-joins it to the global messages
// room and its own per-user room.
func (r *Router) Connect(connID, userID string) *Conn {
	conn := &Conn{
		ID:     connID,
		UserID: userID,
		send:   make(chan Event, sendBuffer),
		rooms:  make(map[string]struct{}),
	}

	r.mu.Lock()
	r.conns[connID] = conn
	r.mu.Unlock()

	r.Join(conn, RoomMessages)
	r.Join(conn, UserRoom(userID))

	r.logger.Info("Connection registered", "conn_id", connID, "user_id", userID)
	return conn
}

// Conn looks up a live connection by id.
func (r *Router) Conn(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

// ConnCount returns the number of live connections.
func (r *Router) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Router) getOrCreateRoom(roomID string) *room {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[roomID]; ok {
		return rm
	}
	rm = &room{members: make(map[*Conn]struct{})}
	r.rooms[roomID] = rm
	return rm
}

// Join subscribes the connection to the room. Joining a room the connection is
// already in is a no-op.
func (r *Router) Join(conn *Conn, roomID string) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return
	}
	if _, ok := conn.rooms[roomID]; ok {
		return
	}
	conn.rooms[roomID] = struct{}{}

	rm := r.getOrCreateRoom(roomID)
	rm.mu.Lock()
	rm.members[conn] = struct{}{}
	rm.mu.Unlock()

	r.logger.Debug("Connection joined room", "conn_id", conn.ID, "room", roomID)
}

// Leave unsubscribes the connection from the room. Leaving a room the
// connection is not in is a no-op, not an error.
func (r *Router) Leave(conn *Conn, roomID string) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if _, ok := conn.rooms[roomID]; !ok {
		return
	}
	delete(conn.rooms, roomID)
	r.removeMember(conn, roomID)

	r.logger.Debug("Connection left room", "conn_id", conn.ID, "room", roomID)
}

func (r *Router) removeMember(conn *Conn, roomID string) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, conn)
	rm.mu.Unlock()
}

// Disconnect removes the connection from every room it was in and closes its
// event channel. Removal takes each room's write lock, so a publish already
// fanning out finishes delivery first and later publishes no longer see the
// connection.
func (r *Router) Disconnect(conn *Conn) {
	conn.mu.Lock()
	if conn.closed {
		conn.mu.Unlock()
		return
	}
	conn.closed = true
	joined := make([]string, 0, len(conn.rooms))
	for roomID := range conn.rooms {
		joined = append(joined, roomID)
	}
	conn.rooms = make(map[string]struct{})
	conn.mu.Unlock()

	for _, roomID := range joined {
		r.removeMember(conn, roomID)
	}

	r.mu.Lock()
	delete(r.conns, conn.ID)
	r.mu.Unlock()

	// Safe to close now: the connection is out of every member set, so no
	// publish can reach the channel anymore.
	close(conn.send)

	r.logger.Info("Connection disconnected", "conn_id", conn.ID, "rooms", len(joined))
}

// Publish delivers the event to every connection currently subscribed to the
// room, in no particular cross-connection order. A lagging subscriber has the
// event dropped and logged; delivery to the others proceeds. Publishing to a
// room with no members is a no-op.
func (r *Router) Publish(roomID string, eventType string, payload []byte) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	event := Event{Room: roomID, Type: eventType, Payload: payload}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for conn := range rm.members {
		select {
		case conn.send <- event:
		default:
			r.logger.Warn("Subscriber queue full, dropping event",
				"conn_id", conn.ID, "room", roomID, "type", eventType)
		}
	}
}

// Evict removes every connection belonging to userID from the room. Used when
// a location-sharing grant is revoked.
func (r *Router) Evict(roomID, userID string) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.RLock()
	var evict []*Conn
	for conn := range rm.members {
		if conn.UserID == userID {
			evict = append(evict, conn)
		}
	}
	rm.mu.RUnlock()

	for _, conn := range evict {
		r.Leave(conn, roomID)
	}
}

// CanJoin decides whether the authenticated user may join the room. The
// global messages room is open to all; a per-user room only to its owner; a
// location room to its owner or a user the owner granted visibility to.
// Unknown room names are refused.
func CanJoin(userID, roomID string, grants *Grants) bool {
	switch {
	case roomID == RoomMessages:
		return true
	case strings.HasPrefix(roomID, userRoomPrefix):
		return strings.TrimPrefix(roomID, userRoomPrefix) == userID
	case strings.HasPrefix(roomID, locationRoomPrefix):
		owner := strings.TrimPrefix(roomID, locationRoomPrefix)
		return owner == userID || grants.Allowed(owner, userID)
	default:
		return false
	}
}
