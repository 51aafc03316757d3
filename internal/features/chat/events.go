// Package chat holds the live side of a match: who is connected, and how
// envelopes from one participant reach the other.
package chat

import (
	"encoding/json"
)

// Outbound event types
const (
	EventConnected           = "connected"
	EventPong                = "pong"
	EventTyping              = "typing"
	EventNewMessage          = "new_message"
	EventMessageRead         = "message_read"
	EventUnlockAchieved      = "unlock_achieved"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventSecretChatRequested = "secret_chat_requested"
	EventSecretChatStarted   = "secret_chat_started"
	EventSecretChatEnded     = "secret_chat_ended"
	EventMatchEnded          = "match_ended"
	EventMatchExtended       = "match_extended"
)

// Inbound envelope types
const (
	TypePing               = "ping"
	TypeTyping             = "typing"
	TypeMessage            = "message"
	TypeReadReceipt        = "read_receipt"
	TypeUnlockNotification = "unlock_notification"
)

// Event is a server-to-client frame. Fields are flat and omitted when unused.
type Event struct {
	Type        string          `json:"type"`
	MatchID     string          `json:"match_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	IsTyping    *bool           `json:"is_typing,omitempty"`
	Content     string          `json:"content,omitempty"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	MessageID   string          `json:"message_id,omitempty"`
	UnlockLevel *int            `json:"unlock_level,omitempty"`
	Data        interface{}     `json:"data,omitempty"`
}

// Envelope is a client-to-server frame
type Envelope struct {
	Type        string          `json:"type"`
	IsTyping    bool            `json:"is_typing"`
	Content     string          `json:"content"`
	Timestamp   json.RawMessage `json:"timestamp"`
	MessageID   string          `json:"message_id"`
	UnlockLevel *int            `json:"unlock_level"`
	Data        json.RawMessage `json:"data"`
}

// Bool and Int return pointers for the optional Event fields
func Bool(b bool) *bool { return &b }
func Int(n int) *int    { return &n }
