package chat

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (f *fakeConn) Send(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errors.New("broken pipe")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func (f *fakeConn) last() Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func TestRegistryPresenceScenario(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	ha, hb := NewHandle(a), NewHandle(b)

	r.Register("m1", "A", ha)
	assert.Empty(t, a.types())

	r.Register("m1", "B", hb)
	require.Equal(t, []string{EventUserOnline}, a.types())
	assert.Equal(t, "B", a.last().UserID)
	assert.Empty(t, b.types())

	require.True(t, r.Unregister("m1", "B", hb))
	require.Equal(t, []string{EventUserOnline, EventUserOffline}, a.types())
	assert.Equal(t, "B", a.last().UserID)

	assert.False(t, r.SendTo("m1", "B", Event{Type: EventPong}))
	assert.False(t, r.IsOnline("m1", "B"))
	assert.True(t, r.IsOnline("m1", "A"))
}

func TestRegistryPrunesEmptyBuckets(t *testing.T) {
	r := NewRegistry()
	h := NewHandle(&fakeConn{})

	r.Register("m1", "A", h)
	r.SetTyping("m1", "A", true)
	require.Equal(t, 1, r.ActiveMatches())

	r.Unregister("m1", "A", h)
	assert.Equal(t, 0, r.ActiveMatches())
	assert.Equal(t, 0, r.OnlineCount())
	assert.Empty(t, r.conns)
	assert.Empty(t, r.typing)
}

func TestRegistryReplaceKeepsNewHandle(t *testing.T) {
	r := NewRegistry()
	oldConn, newConn := &fakeConn{}, &fakeConn{}
	oldH, newH := NewHandle(oldConn), NewHandle(newConn)

	r.Register("m1", "A", oldH)
	r.Register("m1", "A", newH)
	assert.True(t, oldConn.closed)

	// the old connection's read loop ends and unregisters late
	assert.False(t, r.Unregister("m1", "A", oldH))
	assert.True(t, r.IsOnline("m1", "A"))

	require.True(t, r.SendTo("m1", "A", Event{Type: EventPong}))
	assert.Equal(t, []string{EventPong}, newConn.types())
}

func TestRegistrySendFailurePrunesHandle(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{fail: true}

	r.Register("m1", "A", NewHandle(a))
	r.Register("m1", "B", NewHandle(b))

	assert.False(t, r.SendTo("m1", "B", Event{Type: EventPong}))
	assert.False(t, r.IsOnline("m1", "B"))
	assert.True(t, b.closed)
	// A saw B come online then drop
	assert.Equal(t, []string{EventUserOnline, EventUserOffline}, a.types())
}

func TestRegistryBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register("m1", "A", NewHandle(a))
	r.Register("m1", "B", NewHandle(b))
	r.Register("m2", "C", NewHandle(&fakeConn{}))

	n := r.Broadcast("m1", Event{Type: EventNewMessage}, "A")

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{EventUserOnline}, a.types())
	assert.Equal(t, []string{EventNewMessage}, b.types())
	assert.Equal(t, 3, r.OnlineCount())
}

func TestRegistryBroadcastContinuesPastFailure(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	r.Register("m1", "A", NewHandle(a))
	r.Register("m1", "B", NewHandle(&fakeConn{fail: true}))

	n := r.Broadcast("m1", Event{Type: EventMatchEnded}, "")

	assert.Equal(t, 1, n)
	assert.False(t, r.IsOnline("m1", "B"))
	assert.Contains(t, a.types(), EventMatchEnded)
}

func TestRegistryTyping(t *testing.T) {
	r := NewRegistry()
	r.SetTyping("m1", "A", true)
	assert.False(t, r.IsTyping("m1", "A"), "not connected")

	r.Register("m1", "A", NewHandle(&fakeConn{}))
	r.SetTyping("m1", "A", true)
	assert.True(t, r.IsTyping("m1", "A"))

	r.SetTyping("m1", "A", false)
	assert.False(t, r.IsTyping("m1", "A"))
}

func TestRegistryCloseMatch(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register("m1", "A", NewHandle(a))
	r.Register("m1", "B", NewHandle(b))

	r.CloseMatch("m1")

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.False(t, r.IsOnline("m1", "A"))
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register("m1", "A", NewHandle(a))
	r.Register("m2", "B", NewHandle(b))
	r.SetTyping("m1", "A", true)

	r.CloseAll()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Zero(t, r.OnlineCount())
	assert.Zero(t, r.ActiveMatches())
	assert.False(t, r.IsTyping("m1", "A"))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "A"
			if i%2 == 1 {
				user = "B"
			}
			h := NewHandle(&fakeConn{})
			r.Register("m1", user, h)
			r.Broadcast("m1", Event{Type: EventTyping}, user)
			r.Unregister("m1", user, h)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.OnlineCount())
}
