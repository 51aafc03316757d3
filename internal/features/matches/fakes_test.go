package matches

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xyz-asif/blindmatch/internal/features/chat"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore mirrors the conditional writes of Repository under one lock
type memStore struct {
	mu       sync.Mutex
	matches  map[primitive.ObjectID]*Match
	messages []ChatMessage
	quotas   map[quotaKey]int
	// insertDelay widens the gap between reserving quota and inserting
	insertDelay time.Duration
}

type quotaKey struct {
	user primitive.ObjectID
	day  time.Time
}

func newMemStore() *memStore {
	return &memStore{matches: map[primitive.ObjectID]*Match{}, quotas: map[quotaKey]int{}}
}

func clone(m *Match) *Match {
	c := *m
	c.Participants = append([]primitive.ObjectID(nil), m.Participants...)
	return &c
}

func (s *memStore) Insert(_ context.Context, m *Match) error {
	if s.insertDelay > 0 {
		time.Sleep(s.insertDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.matches {
		if existing.Status == StatusActive && existing.PairKey == m.PairKey {
			return apperr.ErrAlreadyMatched
		}
	}
	m.ID = primitive.NewObjectID()
	s.matches[m.ID] = clone(m)
	return nil
}

func (s *memStore) get(id, user primitive.ObjectID, activeOnly bool) (*Match, error) {
	m, ok := s.matches[id]
	if !ok || !m.Participant(user) || (activeOnly && m.Status != StatusActive) {
		return nil, apperr.ErrMatchNotFound
	}
	return m, nil
}

func (s *memStore) FindActive(_ context.Context, id, user primitive.ObjectID) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.get(id, user, true)
	if err != nil {
		return nil, err
	}
	return clone(m), nil
}

func (s *memStore) FindForParticipant(_ context.Context, id, user primitive.ObjectID) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.get(id, user, false)
	if err != nil {
		return nil, err
	}
	return clone(m), nil
}

func (s *memStore) ListActive(_ context.Context, user primitive.ObjectID) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Match{}
	for _, m := range s.matches {
		if m.Status == StatusActive && m.Participant(user) {
			out = append(out, *clone(m))
		}
	}
	return out, nil
}

func (s *memStore) ActivePartners(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	list, _ := s.ListActive(ctx, user)
	out := []primitive.ObjectID{}
	for i := range list {
		other, _ := list[i].Other(user)
		out = append(out, other)
	}
	return out, nil
}

func (s *memStore) ReserveDaily(_ context.Context, creator primitive.ObjectID, day time.Time, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := quotaKey{creator, day}
	if s.quotas[k] >= limit {
		return false, nil
	}
	s.quotas[k]++
	return true, nil
}

func (s *memStore) ReleaseDaily(_ context.Context, creator primitive.ObjectID, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := quotaKey{creator, day}
	if s.quotas[k] > 0 {
		s.quotas[k]--
	}
	return nil
}

func (s *memStore) IncrementMessageCount(_ context.Context, id, user primitive.ObjectID, now time.Time) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.get(id, user, true)
	if err != nil {
		return nil, err
	}
	m.MessageCount++
	m.UpdatedAt = now
	return clone(m), nil
}

func (s *memStore) Deactivate(_ context.Context, id, user primitive.ObjectID, status Status, reason string, now time.Time) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.get(id, user, true)
	if err != nil {
		return nil, err
	}
	if err := m.Deactivate(status, reason, &user, now); err != nil {
		return nil, err
	}
	return clone(m), nil
}

func (s *memStore) DeactivatePair(_ context.Context, a, b primitive.ObjectID, status Status, reason string, by primitive.ObjectID, now time.Time) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := PairKey(a, b)
	for _, m := range s.matches {
		if m.Status == StatusActive && m.PairKey == key {
			if err := m.Deactivate(status, reason, &by, now); err != nil {
				return nil, err
			}
			return clone(m), nil
		}
	}
	return nil, nil
}

func (s *memStore) Extend(_ context.Context, id, user primitive.ObjectID, by time.Duration, now time.Time) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.get(id, user, true)
	if err != nil {
		return nil, err
	}
	m.ExpiresAt = m.ExpiresAt.Add(by)
	m.UpdatedAt = now
	return clone(m), nil
}

func (s *memStore) SetSecret(_ context.Context, id, user primitive.ObjectID, from SecretState, secret SecretChat, now time.Time) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.get(id, user, true)
	if err != nil || m.Secret.State != from {
		return nil, apperr.ErrMatchNotFound
	}
	m.Secret = secret
	m.UpdatedAt = now
	return clone(m), nil
}

func (s *memStore) ExpireDue(_ context.Context, now time.Time) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Match{}
	for _, m := range s.matches {
		if m.Status == StatusActive && !m.ExpiresAt.After(now) {
			_ = m.Deactivate(StatusExpired, reasonExpired, nil, now)
			out = append(out, *clone(m))
		}
	}
	return out, nil
}

func (s *memStore) lapsed(m *Match, now time.Time) bool {
	return m.Status == StatusActive && m.Secret.State == SecretActive &&
		m.Secret.ExpiresAt != nil && !m.Secret.ExpiresAt.After(now)
}

func (s *memStore) EndSecret(_ context.Context, id primitive.ObjectID, now time.Time) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok || !s.lapsed(m, now) {
		return nil, apperr.ErrMatchNotFound
	}
	m.EndSecret(now)
	return clone(m), nil
}

func (s *memStore) LapsedSecrets(_ context.Context, now time.Time) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []primitive.ObjectID{}
	for id, m := range s.matches {
		if s.lapsed(m, now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *memStore) InsertMessage(_ context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *memStore) DeleteMessage(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) ListMessages(_ context.Context, matchID primitive.ObjectID, offset, limit int) ([]ChatMessage, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].MatchID == matchID {
			all = append(all, s.messages[i])
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []ChatMessage{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *memStore) match(id primitive.ObjectID) *Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.matches[id])
}

// directory is an in-memory user table
type directory struct {
	users map[primitive.ObjectID]*users.User
}

func newDirectory(list ...*users.User) *directory {
	d := &directory{users: map[primitive.ObjectID]*users.User{}}
	for _, u := range list {
		d.users[u.ID] = u
	}
	return d
}

func (d *directory) GetUserByID(_ context.Context, id primitive.ObjectID) (*users.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	return u, nil
}

func (d *directory) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*users.User, error) {
	out := map[primitive.ObjectID]*users.User{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// SampleCandidate picks the lowest id that passes the filters
func (d *directory) SampleCandidate(_ context.Context, q users.CandidateQuery) (*users.User, error) {
	excluded := map[primitive.ObjectID]bool{}
	for _, id := range q.Exclude {
		excluded[id] = true
	}
	var ids []primitive.ObjectID
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	for _, id := range ids {
		u := d.users[id]
		switch {
		case excluded[id]:
		case u.IsBannedAt(q.Now):
		case q.Gender != "" && u.Gender != q.Gender:
		case q.CityContains != "" && !strings.Contains(strings.ToLower(u.City), strings.ToLower(q.CityContains)):
		case q.MinAge > 0 && u.Age < q.MinAge:
		case q.MaxAge > 0 && u.Age > q.MaxAge:
		default:
			return u, nil
		}
	}
	return nil, nil
}

type blockList struct {
	pairs map[[2]primitive.ObjectID]bool
}

func newBlockList() *blockList {
	return &blockList{pairs: map[[2]primitive.ObjectID]bool{}}
}

func (b *blockList) block(owner, target primitive.ObjectID) {
	b.pairs[[2]primitive.ObjectID{owner, target}] = true
}

func (b *blockList) IsBlockedEither(_ context.Context, x, y primitive.ObjectID) (bool, error) {
	return b.pairs[[2]primitive.ObjectID{x, y}] || b.pairs[[2]primitive.ObjectID{y, x}], nil
}

func (b *blockList) BlockedIDs(_ context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	var out []primitive.ObjectID
	for pair := range b.pairs {
		if pair[0] == user {
			out = append(out, pair[1])
		} else if pair[1] == user {
			out = append(out, pair[0])
		}
	}
	return out, nil
}

type charge struct {
	user   primitive.ObjectID
	points int
}

type economy struct {
	mu        sync.Mutex
	premium   map[primitive.ObjectID]bool
	charges   []charge
	chargeErr error
}

func newEconomy() *economy {
	return &economy{premium: map[primitive.ObjectID]bool{}}
}

func (e *economy) IsPremium(_ context.Context, user primitive.ObjectID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.premium[user], nil
}

func (e *economy) Charge(_ context.Context, user primitive.ObjectID, points int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.charges = append(e.charges, charge{user: user, points: points})
	return e.chargeErr
}

type sent struct {
	matchID string
	userID  string
	event   chat.Event
}

// liveRecorder stands in for the connection registry
type liveRecorder struct {
	mu     sync.Mutex
	online map[string]bool
	sent   []sent
	closed []string
}

func newLiveRecorder() *liveRecorder {
	return &liveRecorder{online: map[string]bool{}}
}

func (l *liveRecorder) SendTo(matchID, userID string, ev chat.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.online[userID] {
		return false
	}
	l.sent = append(l.sent, sent{matchID: matchID, userID: userID, event: ev})
	return true
}

func (l *liveRecorder) IsOnline(_, userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.online[userID]
}

func (l *liveRecorder) CloseMatch(matchID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, matchID)
}

func (l *liveRecorder) eventsFor(userID, typ string) []chat.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []chat.Event
	for _, s := range l.sent {
		if s.userID == userID && s.event.Type == typ {
			out = append(out, s.event)
		}
	}
	return out
}
