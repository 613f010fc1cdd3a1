package rooms

import "sync"

// Grants records which users an owner has allowed into their location room.
// The original system let anyone who knew a user id subscribe to that user's
// location channel; joins here require ownership or an explicit grant.
type Grants struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]struct{}
}

// NewGrants creates an empty grant table.
func NewGrants() *Grants {
	return &Grants{byOwner: make(map[string]map[string]struct{})}
}

// Allow grants viewer access to owner's location room. Granting twice is a
// no-op.
func (g *Grants) Allow(owner, viewer string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	viewers, ok := g.byOwner[owner]
	if !ok {
		viewers = make(map[string]struct{})
		g.byOwner[owner] = viewers
	}
	viewers[viewer] = struct{}{}
}

// Revoke withdraws a grant. Revoking a grant that does not exist is a no-op.
func (g *Grants) Revoke(owner, viewer string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if viewers, ok := g.byOwner[owner]; ok {
		delete(viewers, viewer)
		if len(viewers) == 0 {
			delete(g.byOwner, owner)
		}
	}
}

// Allowed reports whether viewer holds a grant for owner's location room.
func (g *Grants) Allowed(owner, viewer string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.byOwner[owner][viewer]
	return ok
}
