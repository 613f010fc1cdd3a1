// Package presence tracks each user's last-known activity timestamp and
// answers whether a user counts as active right now.
package presence

import (
	"hash/fnv"
	"sync"
	"time"
)

// DefaultWindow is the trailing interval within which a user is considered
// active for discovery purposes.
const DefaultWindow = 30 * time.Minute

const numShards = 32

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

type shard struct {
	mu         sync.RWMutex
	lastActive map[string]time.Time
}

// Registry records last-activity timestamps. Entries are never deleted; they
// simply age out of the active window. Touches are compare-and-set by
// timestamp so network reordering cannot move a user's activity backwards.
type Registry struct {
	window time.Duration
	shards [numShards]shard
}

// Option configures a Registry.
type Option func(*Registry)

// WithWindow overrides the default 30 minute activity window.
func WithWindow(d time.Duration) Option {
	return func(r *Registry) {
		r.window = d
	}
}

// NewRegistry creates an empty presence registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{window: DefaultWindow}
	for i := 0; i < numShards; i++ {
		r.shards[i].lastActive = make(map[string]time.Time)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &r.shards[h.Sum32()%numShards]
}

// Touch records activity for the user at the given time. A touch older than
// the stored timestamp is dropped silently.
func (r *Registry) Touch(userID string, at time.Time) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.lastActive[userID]; ok && prev.After(at) {
		return
	}
	s.lastActive[userID] = at
}

// LastActive returns the user's last activity timestamp, if any.
func (r *Registry) LastActive(userID string) (time.Time, bool) {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.lastActive[userID]
	return at, ok
}

// Active reports whether the user's last activity falls inside the window as
// of now. The boundary is exclusive: a user last active exactly one window ago
// is no longer active.
func (r *Registry) Active(userID string, now time.Time) bool {
	at, ok := r.LastActive(userID)
	if !ok {
		return false
	}
	return now.Sub(at) < r.window
}

// Window returns the configured activity window.
func (r *Registry) Window() time.Duration {
	return r.window
}
