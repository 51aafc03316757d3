package chat

import (
	"encoding/json"

	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
)

// Relay reacts to envelopes arriving on one live connection. Persistence of
// chat messages happens through the match API; the relay only forwards.
type Relay struct {
	registry *Registry
}

func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// OnConnect registers the handle and acknowledges it
func (r *Relay) OnConnect(matchID, userID string, h *Handle) {
	_ = r.Join(matchID, userID, h, nil)
}

// Join registers the handle, then runs admit before acknowledging. A match
// that ended after the caller's first check has already dropped its handles,
// so a failed admit unregisters h and returns the error.
func (r *Relay) Join(matchID, userID string, h *Handle, admit func() error) error {
	r.registry.Register(matchID, userID, h)
	if admit != nil {
		if err := admit(); err != nil {
			r.registry.Unregister(matchID, userID, h)
			return err
		}
	}

	r.registry.Reply(matchID, userID, h, Event{
		Type:    EventConnected,
		MatchID: matchID,
		UserID:  userID,
		Data:    map[string]bool{"peer_online": r.registry.PeerOnline(matchID, userID)},
	})
	return nil
}

// OnMessage dispatches one raw frame. Unknown or malformed frames are dropped.
func (r *Relay) OnMessage(matchID, userID string, h *Handle, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Debug("relay: malformed frame from %s in %s: %v", userID, matchID, err)
		return
	}

	switch env.Type {
	case TypePing:
		r.registry.Reply(matchID, userID, h, Event{Type: EventPong})

	case TypeTyping:
		r.registry.SetTyping(matchID, userID, env.IsTyping)
		r.registry.Broadcast(matchID, Event{
			Type:     EventTyping,
			MatchID:  matchID,
			UserID:   userID,
			IsTyping: Bool(env.IsTyping),
		}, userID)

	case TypeMessage:
		r.registry.SetTyping(matchID, userID, false)
		r.registry.Broadcast(matchID, Event{
			Type:      EventNewMessage,
			MatchID:   matchID,
			UserID:    userID,
			Content:   env.Content,
			Timestamp: env.Timestamp,
			MessageID: env.MessageID,
		}, userID)

	case TypeReadReceipt:
		r.registry.Broadcast(matchID, Event{
			Type:      EventMessageRead,
			MatchID:   matchID,
			UserID:    userID,
			MessageID: env.MessageID,
		}, userID)

	case TypeUnlockNotification:
		ev := Event{
			Type:        EventUnlockAchieved,
			MatchID:     matchID,
			UserID:      userID,
			UnlockLevel: env.UnlockLevel,
		}
		if len(env.Data) > 0 {
			ev.Data = env.Data
		}
		r.registry.Broadcast(matchID, ev, userID)

	default:
		logger.Debug("relay: ignoring frame type %q from %s", env.Type, userID)
	}
}

// OnDisconnect unregisters the handle; the registry tells the peer
func (r *Relay) OnDisconnect(matchID, userID string, h *Handle) {
	r.registry.Unregister(matchID, userID, h)
}
