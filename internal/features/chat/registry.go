package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
)

// Conn is one live duplex channel. Send must be safe for concurrent use.
type Conn interface {
	Send(ev Event) error
	Close() error
}

// Handle identifies one registration of a Conn. A reconnect gets a new
// Handle, so a late Unregister from the old connection is a no-op.
type Handle struct {
	ID   uuid.UUID
	conn Conn
}

func NewHandle(conn Conn) *Handle {
	return &Handle{ID: uuid.New(), conn: conn}
}

type target struct {
	userID string
	handle *Handle
}

// Registry maps match -> user -> live handle. It is purely in-process
// presence state and never stores anything durable.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]map[string]*Handle
	typing map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]map[string]*Handle),
		typing: make(map[string]map[string]struct{}),
	}
}

// Register stores h for (matchID, userID), replacing and closing any older
// handle, then tells the other participant this user came online.
func (r *Registry) Register(matchID, userID string, h *Handle) {
	r.mu.Lock()
	bucket, ok := r.conns[matchID]
	if !ok {
		bucket = make(map[string]*Handle)
		r.conns[matchID] = bucket
	}
	old := bucket[userID]
	bucket[userID] = h
	peers := r.peersLocked(matchID, userID)
	r.mu.Unlock()

	if old != nil && old != h {
		logger.Debug("registry: replacing connection %s for %s in %s", old.ID, userID, matchID)
		_ = old.conn.Close()
	}

	r.deliver(matchID, peers, Event{Type: EventUserOnline, MatchID: matchID, UserID: userID})
}

// Unregister removes h if it is still the current handle for the key. A nil h
// removes whatever is registered. Reports whether anything was removed.
func (r *Registry) Unregister(matchID, userID string, h *Handle) bool {
	r.mu.Lock()
	removed := r.removeLocked(matchID, userID, h)
	var peers []target
	if removed {
		peers = r.peersLocked(matchID, userID)
	}
	r.mu.Unlock()

	if removed {
		r.deliver(matchID, peers, Event{Type: EventUserOffline, MatchID: matchID, UserID: userID})
	}
	return removed
}

// SendTo delivers ev to one participant. Failures unregister that handle and
// are never returned. Reports whether the event was written.
func (r *Registry) SendTo(matchID, userID string, ev Event) bool {
	r.mu.RLock()
	h := r.conns[matchID][userID]
	r.mu.RUnlock()

	if h == nil {
		return false
	}
	return r.deliver(matchID, []target{{userID: userID, handle: h}}, ev) == 1
}

// Reply writes ev to a specific handle, dropping it on failure
func (r *Registry) Reply(matchID, userID string, h *Handle, ev Event) bool {
	return r.deliver(matchID, []target{{userID: userID, handle: h}}, ev) == 1
}

// Broadcast sends ev to every participant of matchID except exclude and
// returns how many received it.
func (r *Registry) Broadcast(matchID string, ev Event, exclude string) int {
	r.mu.RLock()
	peers := r.peersLocked(matchID, exclude)
	r.mu.RUnlock()

	return r.deliver(matchID, peers, ev)
}

// IsOnline reports presence without side effects
func (r *Registry) IsOnline(matchID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[matchID][userID]
	return ok
}

// PeerOnline reports whether anyone other than userID is connected to matchID
func (r *Registry) PeerOnline(matchID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for uid := range r.conns[matchID] {
		if uid != userID {
			return true
		}
	}
	return false
}

// SetTyping records the ephemeral typing flag for a connected participant
func (r *Registry) SetTyping(matchID, userID string, typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !typing {
		r.clearTypingLocked(matchID, userID)
		return
	}
	if _, ok := r.conns[matchID][userID]; !ok {
		return
	}
	set, ok := r.typing[matchID]
	if !ok {
		set = make(map[string]struct{})
		r.typing[matchID] = set
	}
	set[userID] = struct{}{}
}

func (r *Registry) IsTyping(matchID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.typing[matchID][userID]
	return ok
}

// OnlineCount is the number of live handles across all matches
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bucket := range r.conns {
		n += len(bucket)
	}
	return n
}

// ActiveMatches is the number of matches with at least one live handle
func (r *Registry) ActiveMatches() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseMatch drops and closes every handle in a match, used when a match ends
func (r *Registry) CloseMatch(matchID string) {
	r.mu.Lock()
	bucket := r.conns[matchID]
	delete(r.conns, matchID)
	delete(r.typing, matchID)
	r.mu.Unlock()

	for _, h := range bucket {
		_ = h.conn.Close()
	}
}

// CloseAll closes every live handle, used on shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]map[string]*Handle)
	r.typing = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, bucket := range conns {
		for _, h := range bucket {
			_ = h.conn.Close()
		}
	}
}

func (r *Registry) peersLocked(matchID, exclude string) []target {
	bucket := r.conns[matchID]
	peers := make([]target, 0, len(bucket))
	for uid, h := range bucket {
		if uid == exclude {
			continue
		}
		peers = append(peers, target{userID: uid, handle: h})
	}
	return peers
}

func (r *Registry) removeLocked(matchID, userID string, h *Handle) bool {
	bucket, ok := r.conns[matchID]
	if !ok {
		return false
	}
	cur, ok := bucket[userID]
	if !ok || (h != nil && cur != h) {
		return false
	}
	delete(bucket, userID)
	if len(bucket) == 0 {
		delete(r.conns, matchID)
	}
	r.clearTypingLocked(matchID, userID)
	return true
}

func (r *Registry) clearTypingLocked(matchID, userID string) {
	set, ok := r.typing[matchID]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.typing, matchID)
	}
}

// deliver sends outside the lock. Each failed handle is closed and
// unregistered, which may notify the remaining peers in turn.
func (r *Registry) deliver(matchID string, targets []target, ev Event) int {
	sent := 0
	for _, t := range targets {
		if err := t.handle.conn.Send(ev); err != nil {
			logger.Debug("registry: send %s to %s in %s failed: %v", ev.Type, t.userID, matchID, err)
			_ = t.handle.conn.Close()
			r.Unregister(matchID, t.userID, t.handle)
			continue
		}
		sent++
	}
	return sent
}
