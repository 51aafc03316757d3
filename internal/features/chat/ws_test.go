package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type allowGuard struct {
	members map[primitive.ObjectID]bool
}

func (g allowGuard) CanJoin(_ context.Context, matchID string, userID primitive.ObjectID) error {
	if matchID != "m1" {
		return apperr.ErrMatchNotFound
	}
	if !g.members[userID] {
		return apperr.ErrMatchNotFound
	}
	return nil
}

// endingGuard admits the first check and refuses every later one, as if the
// match ended while the connection was upgrading
type endingGuard struct {
	calls atomic.Int32
}

func (g *endingGuard) CanJoin(context.Context, string, primitive.ObjectID) error {
	if g.calls.Add(1) == 1 {
		return nil
	}
	return apperr.ErrMatchNotFound
}

// fakeAuth resolves ?as=<hex> into the request user
func fakeAuth(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Query("as"))
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Set("user", &users.User{ID: id})
	c.Next()
}

func startServer(t *testing.T, guard MatchGuard) (*httptest.Server, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := NewRegistry()
	handler := NewHandler(NewRelay(registry), guard, WSConfig{
		WriteTimeout:    time.Second,
		PongTimeout:     5 * time.Second,
		MaxMessageBytes: 1024,
	})
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), handler, fakeAuth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server, matchID string, user primitive.ObjectID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/matches/" + matchID + "/ws?as=" + user.Hex()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWSRoundTrip(t *testing.T) {
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	srv, registry := startServer(t, allowGuard{members: map[primitive.ObjectID]bool{alice: true, bob: true}})

	a := dial(t, srv, "m1", alice)
	ack := readEvent(t, a)
	assert.Equal(t, EventConnected, ack.Type)
	assert.Equal(t, "m1", ack.MatchID)
	assert.Equal(t, alice.Hex(), ack.UserID)

	b := dial(t, srv, "m1", bob)
	assert.Equal(t, EventConnected, readEvent(t, b).Type)

	online := readEvent(t, a)
	assert.Equal(t, EventUserOnline, online.Type)
	assert.Equal(t, bob.Hex(), online.UserID)

	require.NoError(t, a.WriteJSON(map[string]interface{}{"type": "typing", "is_typing": true}))
	typing := readEvent(t, b)
	assert.Equal(t, EventTyping, typing.Type)
	assert.Equal(t, alice.Hex(), typing.UserID)
	require.NotNil(t, typing.IsTyping)
	assert.True(t, *typing.IsTyping)

	require.NoError(t, a.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, EventPong, readEvent(t, a).Type, "pong comes before anything else for alice")

	require.NoError(t, b.Close())
	offline := readEvent(t, a)
	assert.Equal(t, EventUserOffline, offline.Type)
	assert.Equal(t, bob.Hex(), offline.UserID)

	assert.Eventually(t, func() bool {
		return !registry.IsOnline("m1", bob.Hex())
	}, time.Second, 10*time.Millisecond)
}

func TestWSRejectsNonParticipant(t *testing.T) {
	srv, _ := startServer(t, allowGuard{members: map[primitive.ObjectID]bool{}})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/matches/m1/ws?as=" + primitive.NewObjectID().Hex()
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSClosedWhenMatchEndsDuringUpgrade(t *testing.T) {
	guard := &endingGuard{}
	srv, registry := startServer(t, guard)
	alice := primitive.NewObjectID()

	conn := dial(t, srv, "m1", alice)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, int32(2), guard.calls.Load())
	assert.False(t, registry.IsOnline("m1", alice.Hex()))
	assert.Zero(t, registry.ActiveMatches())
}
