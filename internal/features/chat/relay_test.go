package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
)

func connectPair(t *testing.T) (*Relay, *fakeConn, *Handle, *fakeConn, *Handle) {
	t.Helper()
	relay := NewRelay(NewRegistry())
	a, b := &fakeConn{}, &fakeConn{}
	ha, hb := NewHandle(a), NewHandle(b)
	relay.OnConnect("m1", "A", ha)
	relay.OnConnect("m1", "B", hb)
	return relay, a, ha, b, hb
}

func TestRelayConnectAck(t *testing.T) {
	relay := NewRelay(NewRegistry())
	a := &fakeConn{}
	relay.OnConnect("m1", "A", NewHandle(a))

	require.Equal(t, []string{EventConnected}, a.types())
	ack := a.last()
	assert.Equal(t, "m1", ack.MatchID)
	assert.Equal(t, "A", ack.UserID)
	assert.Equal(t, map[string]bool{"peer_online": false}, ack.Data)
}

func TestRelayJoinRefusedAfterRegister(t *testing.T) {
	registry := NewRegistry()
	relay := NewRelay(registry)
	a := &fakeConn{}
	ha := NewHandle(a)

	err := relay.Join("m1", "A", ha, func() error {
		// the match ends while A is being registered
		registry.CloseMatch("m1")
		return apperr.ErrMatchNotFound
	})

	assert.ErrorIs(t, err, apperr.ErrMatchNotFound)
	assert.False(t, registry.IsOnline("m1", "A"))
	assert.NotContains(t, a.types(), EventConnected)
	assert.Zero(t, registry.ActiveMatches())
}

func TestRelayPing(t *testing.T) {
	relay, a, ha, b, _ := connectPair(t)

	relay.OnMessage("m1", "A", ha, []byte(`{"type":"ping"}`))

	assert.Equal(t, EventPong, a.last().Type)
	assert.NotContains(t, b.types(), EventPong)
}

func TestRelayTypingRoundTrip(t *testing.T) {
	relay, a, ha, b, _ := connectPair(t)
	before := len(a.types())

	relay.OnMessage("m1", "A", ha, []byte(`{"type":"typing","is_typing":true}`))

	ev := b.last()
	assert.Equal(t, EventTyping, ev.Type)
	assert.Equal(t, "A", ev.UserID)
	require.NotNil(t, ev.IsTyping)
	assert.True(t, *ev.IsTyping)
	assert.Len(t, a.types(), before, "typing must not echo to sender")
	assert.True(t, relay.registry.IsTyping("m1", "A"))

	relay.OnMessage("m1", "A", ha, []byte(`{"type":"typing","is_typing":false}`))
	assert.False(t, *b.last().IsTyping)
	assert.False(t, relay.registry.IsTyping("m1", "A"))
}

func TestRelayForwardsToOtherParticipant(t *testing.T) {
	relay, a, _, b, hb := connectPair(t)

	relay.OnMessage("m1", "B", hb, []byte(`{"type":"message","content":"hi","timestamp":"2026-01-01T00:00:00Z"}`))
	ev := a.last()
	assert.Equal(t, EventNewMessage, ev.Type)
	assert.Equal(t, "hi", ev.Content)
	assert.Equal(t, json.RawMessage(`"2026-01-01T00:00:00Z"`), ev.Timestamp)

	relay.OnMessage("m1", "B", hb, []byte(`{"type":"read_receipt","message_id":"msg-9"}`))
	assert.Equal(t, EventMessageRead, a.last().Type)
	assert.Equal(t, "msg-9", a.last().MessageID)

	relay.OnMessage("m1", "B", hb, []byte(`{"type":"unlock_notification","unlock_level":2,"data":{"photo":true}}`))
	ev = a.last()
	assert.Equal(t, EventUnlockAchieved, ev.Type)
	require.NotNil(t, ev.UnlockLevel)
	assert.Equal(t, 2, *ev.UnlockLevel)

	for _, typ := range b.types() {
		assert.NotEqual(t, EventNewMessage, typ)
	}
}

func TestRelayIgnoresUnknownAndMalformed(t *testing.T) {
	relay, a, ha, b, _ := connectPair(t)
	beforeA, beforeB := len(a.types()), len(b.types())

	relay.OnMessage("m1", "A", ha, []byte(`{"type":"dance"}`))
	relay.OnMessage("m1", "A", ha, []byte(`not json`))

	assert.Len(t, a.types(), beforeA)
	assert.Len(t, b.types(), beforeB)
	assert.True(t, relay.registry.IsOnline("m1", "A"))
}

func TestRelayDisconnectAnnouncesOffline(t *testing.T) {
	relay, a, _, _, hb := connectPair(t)

	relay.OnDisconnect("m1", "B", hb)

	assert.Equal(t, EventUserOffline, a.last().Type)
	assert.Equal(t, "B", a.last().UserID)
}
