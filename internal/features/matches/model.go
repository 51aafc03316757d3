package matches

import (
	"sort"
	"time"

	"github.com/xyz-asif/blindmatch/internal/features/unlock"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusUnmatched Status = "unmatched"
	StatusBlocked   Status = "blocked"
)

// Terminal reports whether s is one of the end states
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusUnmatched || s == StatusBlocked
}

type SecretState string

const (
	SecretOff       SecretState = "off"
	SecretRequested SecretState = "requested"
	SecretActive    SecretState = "active"
)

// SecretChat is the nested sub-state of an active match
type SecretChat struct {
	State       SecretState         `bson:"state" json:"state"`
	RequestedBy *primitive.ObjectID `bson:"requestedBy,omitempty" json:"requestedBy,omitempty"`
	Minutes     int                 `bson:"minutes,omitempty" json:"minutes,omitempty"`
	ExpiresAt   *time.Time          `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
}

func secretOff() SecretChat {
	return SecretChat{State: SecretOff}
}

type Match struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	PairKey      string               `bson:"pairKey" json:"-"`
	CreatedBy    primitive.ObjectID   `bson:"createdBy" json:"createdBy"`
	Status       Status               `bson:"status" json:"status"`
	MessageCount int64                `bson:"messageCount" json:"messageCount"`
	Secret       SecretChat           `bson:"secret" json:"secret"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	ExpiresAt    time.Time            `bson:"expiresAt" json:"expiresAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
	EndedAt      *time.Time           `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	EndReason    string               `bson:"endReason,omitempty" json:"endReason,omitempty"`
	EndedBy      *primitive.ObjectID  `bson:"endedBy,omitempty" json:"endedBy,omitempty"`
}

// PairKey is order independent so {a,b} and {b,a} collide on the unique index
func PairKey(a, b primitive.ObjectID) string {
	ids := []string{a.Hex(), b.Hex()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// NewMatch builds an active match between a and b
func NewMatch(a, b, creator primitive.ObjectID, now time.Time, ttl time.Duration) (*Match, error) {
	if a == b {
		return nil, apperr.ErrSelfMatch
	}
	if creator != a && creator != b {
		return nil, apperr.Invariant("match creator is not a participant")
	}
	return &Match{
		Participants: []primitive.ObjectID{a, b},
		PairKey:      PairKey(a, b),
		CreatedBy:    creator,
		Status:       StatusActive,
		Secret:       secretOff(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		UpdatedAt:    now,
	}, nil
}

// Check verifies the structural invariants of a loaded match
func (m *Match) Check() error {
	if len(m.Participants) != 2 {
		return apperr.Invariant("match " + m.ID.Hex() + " does not have exactly two participants")
	}
	if m.Participants[0] == m.Participants[1] {
		return apperr.Invariant("match " + m.ID.Hex() + " pairs a user with themselves")
	}
	if m.Status != StatusActive && m.Secret.State != SecretOff {
		return apperr.Invariant("inactive match " + m.ID.Hex() + " has secret chat " + string(m.Secret.State))
	}
	return nil
}

func (m *Match) IsActive() bool {
	return m.Status == StatusActive
}

func (m *Match) Participant(user primitive.ObjectID) bool {
	for _, p := range m.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// Other returns the counterpart of user
func (m *Match) Other(user primitive.ObjectID) (primitive.ObjectID, bool) {
	if len(m.Participants) != 2 {
		return primitive.NilObjectID, false
	}
	switch user {
	case m.Participants[0]:
		return m.Participants[1], true
	case m.Participants[1]:
		return m.Participants[0], true
	}
	return primitive.NilObjectID, false
}

// Tier is the reveal tier both participants share
func (m *Match) Tier() int {
	return unlock.Tier(m.MessageCount)
}

// IsSecretAt reports whether messages sent at now are secret. The expiry
// timestamp wins over a timer that has not fired yet.
func (m *Match) IsSecretAt(now time.Time) bool {
	return m.IsActive() &&
		m.Secret.State == SecretActive &&
		m.Secret.ExpiresAt != nil &&
		now.Before(*m.Secret.ExpiresAt)
}

// Deactivate moves an active match into a terminal status. The secret
// sub-state is always reset.
func (m *Match) Deactivate(status Status, reason string, by *primitive.ObjectID, now time.Time) error {
	if !m.IsActive() {
		return apperr.ErrMatchInactive
	}
	if !status.Terminal() {
		return apperr.Invariant("deactivate to non-terminal status " + string(status))
	}
	m.Status = status
	m.EndReason = reason
	m.EndedBy = by
	m.EndedAt = &now
	m.UpdatedAt = now
	m.Secret = secretOff()
	return nil
}

// RequestSecret marks that by wants a secret chat
func (m *Match) RequestSecret(by primitive.ObjectID, now time.Time) error {
	if !m.IsActive() {
		return apperr.ErrMatchInactive
	}
	if !m.Participant(by) {
		return apperr.ErrNotParticipant
	}
	if m.IsSecretAt(now) {
		return apperr.PreconditionFailed("SECRET_CHAT_ACTIVE", "secret chat is already active")
	}
	m.Secret = SecretChat{State: SecretRequested, RequestedBy: &by}
	m.UpdatedAt = now
	return nil
}

// AcceptSecret starts a secret chat for minutes. Only the participant who did
// not ask may accept.
func (m *Match) AcceptSecret(by primitive.ObjectID, minutes, maxMinutes int, now time.Time) error {
	if minutes < 1 || minutes > maxMinutes {
		return apperr.ErrInvalidDuration
	}
	if !m.IsActive() {
		return apperr.ErrMatchInactive
	}
	if !m.Participant(by) {
		return apperr.ErrNotParticipant
	}
	if m.Secret.State != SecretRequested || m.Secret.RequestedBy == nil || *m.Secret.RequestedBy == by {
		return apperr.ErrNoSecretRequest
	}
	expires := now.Add(time.Duration(minutes) * time.Minute)
	m.Secret = SecretChat{
		State:       SecretActive,
		RequestedBy: m.Secret.RequestedBy,
		Minutes:     minutes,
		ExpiresAt:   &expires,
	}
	m.UpdatedAt = now
	return nil
}

// EndSecret turns the secret chat off
func (m *Match) EndSecret(now time.Time) {
	m.Secret = secretOff()
	m.UpdatedAt = now
}

// ChatMessage is immutable once stored
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MatchID   primitive.ObjectID `bson:"matchId" json:"matchId"`
	SenderID  primitive.ObjectID `bson:"senderId" json:"senderId"`
	Text      string             `bson:"text" json:"text"`
	Secret    bool               `bson:"secret" json:"secret"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Filters narrow candidate selection. Gender and City need premium.
type Filters struct {
	Gender string `json:"gender"`
	City   string `json:"city"`
	MinAge int    `json:"minAge"`
	MaxAge int    `json:"maxAge"`
}

type Outcome string

const (
	OutcomeMatched      Outcome = "matched"
	OutcomeNoCandidates Outcome = "no_candidates"
	OutcomeDailyLimit   Outcome = "daily_limit"
)

// FindResult separates "nobody right now" from "quota exhausted"
type FindResult struct {
	Outcome  Outcome    `json:"outcome"`
	Match    *View      `json:"match,omitempty"`
	ResetsAt *time.Time `json:"resetsAt,omitempty"`
}

// View is a match as one participant sees it
type View struct {
	ID            primitive.ObjectID `json:"id"`
	Status        Status             `json:"status"`
	MessageCount  int64              `json:"messageCount"`
	Tier          int                `json:"tier"`
	NextUnlockIn  int64              `json:"nextUnlockIn"`
	SecretChat    SecretChat         `json:"secretChat"`
	SecretActive  bool               `json:"secretActive"`
	CreatedAt     time.Time          `json:"createdAt"`
	ExpiresAt     time.Time          `json:"expiresAt"`
	EndReason     string             `json:"endReason,omitempty"`
	Partner       unlock.View        `json:"partner"`
	PartnerOnline bool               `json:"partnerOnline"`
}

// SendResult is what the sender gets back from SendMessage
type SendResult struct {
	Message      ChatMessage `json:"message"`
	MessageCount int64       `json:"messageCount"`
	Tier         int         `json:"tier"`
	TierUp       bool        `json:"tierUp"`
}

// ExtendResult reports the new clock and what it cost
type ExtendResult struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Cost      int       `json:"cost"`
	Charged   bool      `json:"charged"`
}
