package rooms

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Conn) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-time.After(50 * time.Millisecond):
			return events
		}
	}
}

func TestRouter_ConnectAutoJoins(t *testing.T) {
	r := NewRouter()
	conn := r.Connect("c1", "alice")

	r.Publish(RoomMessages, "new_message", []byte(`{"hi":1}`))
	r.Publish(UserRoom("alice"), "ping", []byte(`{}`))

	events := drain(conn)
	require.Len(t, events, 2)
	assert.Equal(t, RoomMessages, events[0].Room)
	assert.Equal(t, UserRoom("alice"), events[1].Room)
}

func TestRouter_JoinIsIdempotent(t *testing.T) {
	r := NewRouter()
	conn := r.Connect("c1", "alice")

	r.Join(conn, "location_updates_bob")
	r.Join(conn, "location_updates_bob")

	r.Publish("location_updates_bob", "location_update", []byte(`{}`))

	events := drain(conn)
	assert.Len(t, events, 1, "double join must not double-deliver")
}

func TestRouter_LeaveUnjoinedRoomIsNoop(t *testing.T) {
	r := NewRouter()
	conn := r.Connect("c1", "alice")

	r.Leave(conn, "location_updates_bob")

	// Still receives on rooms it actually is in.
	r.Publish(RoomMessages, "new_message", []byte(`{}`))
	assert.Len(t, drain(conn), 1)
}

func TestRouter_DisconnectRemovesAllSubscriptions(t *testing.T) {
	r := NewRouter()
	gone := r.Connect("c1", "alice")
	stays := r.Connect("c2", "bob")
	r.Join(gone, "location_updates_carol")
	r.Join(stays, "location_updates_carol")

	r.Disconnect(gone)

	// Publishing to rooms the dead connection was in must not error and must
	// reach the remaining subscriber.
	r.Publish(RoomMessages, "new_message", []byte(`{}`))
	r.Publish("location_updates_carol", "location_update", []byte(`{}`))

	events := drain(stays)
	assert.Len(t, events, 2)

	_, ok := r.Conn("c1")
	assert.False(t, ok)

	// Double disconnect is safe.
	r.Disconnect(gone)
}

func TestRouter_PublishToEmptyRoom(t *testing.T) {
	r := NewRouter()
	r.Publish("location_updates_nobody", "location_update", []byte(`{}`))
}

func TestRouter_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	r := NewRouter()
	slow := r.Connect("c1", "alice")
	fast := r.Connect("c2", "bob")

	// The fast subscriber keeps reading; the slow one never does.
	total := sendBuffer + 50
	received := make(chan struct{}, total)
	go func() {
		for range fast.Events() {
			received <- struct{}{}
		}
	}()

	for i := 0; i < total; i++ {
		r.Publish(RoomMessages, "new_message", []byte(`{}`))
	}

	deadline := time.After(2 * time.Second)
	for i := 0; i < total; i++ {
		select {
		case <-received:
		case <-deadline:
			t.Fatalf("fast subscriber stalled after %d of %d events", i, total)
		}
	}

	// Overflow events to the slow connection were dropped, not queued.
	assert.Len(t, drain(slow), sendBuffer)
	r.Disconnect(fast)
}

func TestRouter_ConcurrentPublishAndDisconnect(t *testing.T) {
	r := NewRouter()

	var wg sync.WaitGroup
	conns := make([]*Conn, 20)
	for i := range conns {
		conns[i] = r.Connect(fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i))
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			r.Publish(RoomMessages, "new_message", []byte(`{}`))
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range conns {
			r.Disconnect(c)
		}
	}()
	wg.Wait()
}

func TestRouter_Evict(t *testing.T) {
	r := NewRouter()
	viewer := r.Connect("c1", "bob")
	r.Join(viewer, LocationRoom("alice"))

	r.Evict(LocationRoom("alice"), "bob")

	r.Publish(LocationRoom("alice"), "location_update", []byte(`{}`))
	assert.Empty(t, drain(viewer))
}

func TestCanJoin(t *testing.T) {
	grants := NewGrants()

	assert.True(t, CanJoin("alice", RoomMessages, grants))
	assert.True(t, CanJoin("alice", UserRoom("alice"), grants))
	assert.False(t, CanJoin("alice", UserRoom("bob"), grants))

	// Knowing a user id is not enough to watch their location.
	assert.True(t, CanJoin("alice", LocationRoom("alice"), grants))
	assert.False(t, CanJoin("bob", LocationRoom("alice"), grants))

	grants.Allow("alice", "bob")
	assert.True(t, CanJoin("bob", LocationRoom("alice"), grants))

	grants.Revoke("alice", "bob")
	assert.False(t, CanJoin("bob", LocationRoom("alice"), grants))

	assert.False(t, CanJoin("alice", "random_room", grants))
}
