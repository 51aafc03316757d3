package chat

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
	"github.com/xyz-asif/blindmatch/internal/pkg/response"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchGuard decides whether a user may open a live connection on a match
type MatchGuard interface {
	CanJoin(ctx context.Context, matchID string, userID primitive.ObjectID) error
}

type WSConfig struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
	// AllowedOrigin is matched against the Origin header. Empty allows any.
	AllowedOrigin string
}

func (c WSConfig) pingInterval() time.Duration {
	return c.PongTimeout * 9 / 10
}

// wsConn serializes writes to a gorilla connection
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	closeOnce    sync.Once
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

func (c *wsConn) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(ev)
}

func (c *wsConn) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

type Handler struct {
	relay    *Relay
	guard    MatchGuard
	cfg      WSConfig
	upgrader websocket.Upgrader
}

func NewHandler(relay *Relay, guard MatchGuard, cfg WSConfig) *Handler {
	h := &Handler{relay: relay, guard: guard, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return h.cfg.AllowedOrigin == "" || origin == "" || origin == h.cfg.AllowedOrigin
}

// Connect godoc
// @Summary Open the live chat connection for a match
// @Description Upgrades to a WebSocket. The token may be passed as a query parameter.
// @Tags chat
// @Security BearerAuth
// @Param id path string true "Match ID"
// @Param token query string false "JWT when headers cannot be set"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /matches/{id}/ws [get]
func (h *Handler) Connect(c *gin.Context) {
	user, ok := users.RequireUser(c)
	if !ok {
		return
	}
	matchID := c.Param("id")

	if err := h.guard.CanJoin(c.Request.Context(), matchID, user.ID); err != nil {
		response.FromError(c, err)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed for %s on %s: %v", user.ID.Hex(), matchID, err)
		return
	}

	ctx := c.Request.Context()
	admit := func() error { return h.guard.CanJoin(ctx, matchID, user.ID) }
	h.serve(matchID, user.ID.Hex(), newWSConn(ws, h.cfg.WriteTimeout), admit)
}

// serve runs the read loop on the calling goroutine so frames from one
// connection are handled in receipt order. admit is checked again once the
// handle is registered.
func (h *Handler) serve(matchID, userID string, conn *wsConn, admit func() error) {
	handle := NewHandle(conn)
	if err := h.relay.Join(matchID, userID, handle, admit); err != nil {
		logger.Info("ws join refused for %s on %s: %v", userID, matchID, err)
		_ = conn.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "match unavailable"),
			time.Now().Add(h.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	defer func() {
		close(done)
		h.relay.OnDisconnect(matchID, userID, handle)
		_ = conn.Close()
	}()

	if h.cfg.MaxMessageBytes > 0 {
		conn.ws.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	_ = conn.ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	go h.keepAlive(conn, done)

	for {
		mt, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Debug("ws closed by %s on %s", userID, matchID)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Info("ws read timeout for %s on %s", userID, matchID)
			} else {
				logger.Debug("ws read error for %s on %s: %v", userID, matchID, err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		h.relay.OnMessage(matchID, userID, handle, data)
	}
}

func (h *Handler) keepAlive(conn *wsConn, done <-chan struct{}) {
	interval := h.cfg.pingInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
