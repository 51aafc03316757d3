package matches

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xyz-asif/blindmatch/internal/config"
	"github.com/xyz-asif/blindmatch/internal/features/chat"
	"github.com/xyz-asif/blindmatch/internal/features/unlock"
	"github.com/xyz-asif/blindmatch/internal/features/users"
	"github.com/xyz-asif/blindmatch/internal/pkg/logger"
	"github.com/xyz-asif/blindmatch/internal/pkg/moderation"
	"github.com/xyz-asif/blindmatch/internal/pkg/pagination"
	"github.com/xyz-asif/blindmatch/internal/pkg/push"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxFindAttempts = 3
	reasonUnmatched = "Unmatched"
	reasonExpired   = "Match expired"
)

// Rules are the tunable numbers of the match lifecycle
type Rules struct {
	TTL              time.Duration
	Extension        time.Duration
	ExtensionCost    int
	FreeDailyLimit   int
	SecretMaxMinutes int
}

func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		TTL:              cfg.MatchTTL,
		Extension:        cfg.MatchExtension,
		ExtensionCost:    cfg.ExtensionCostPoints,
		FreeDailyLimit:   cfg.FreeDailyMatchLimit,
		SecretMaxMinutes: cfg.SecretChatMaxMinutes,
	}
}

// Economy answers premium status and takes points for paid actions
type Economy interface {
	IsPremium(ctx context.Context, user primitive.ObjectID) (bool, error)
	Charge(ctx context.Context, user primitive.ObjectID, points int) error
}

// Blocks is the read side of the block list, checked in both directions
type Blocks interface {
	IsBlockedEither(ctx context.Context, a, b primitive.ObjectID) (bool, error)
	BlockedIDs(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error)
}

// Directory loads profiles and draws random candidates
type Directory interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*users.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*users.User, error)
	SampleCandidate(ctx context.Context, q users.CandidateQuery) (*users.User, error)
}

// Live is the connection registry as seen from the lifecycle
type Live interface {
	SendTo(matchID, userID string, ev chat.Event) bool
	IsOnline(matchID, userID string) bool
	CloseMatch(matchID string)
}

// offline is the Live used when no registry is wired
type offline struct{}

func (offline) SendTo(string, string, chat.Event) bool { return false }
func (offline) IsOnline(string, string) bool           { return false }
func (offline) CloseMatch(string)                      {}

type Service struct {
	store     Store
	directory Directory
	blocks    Blocks
	economy   Economy
	checker   moderation.Checker
	live      Live
	notifier  push.Notifier
	photos    unlock.PhotoURLer
	rules     Rules
	now       func() time.Time

	mu     sync.Mutex
	timers map[primitive.ObjectID]*time.Timer
}

type Deps struct {
	Store     Store
	Directory Directory
	Blocks    Blocks
	Economy   Economy
	Checker   moderation.Checker
	Live      Live
	Notifier  push.Notifier
	Photos    unlock.PhotoURLer
}

func NewService(deps Deps, rules Rules) *Service {
	if deps.Notifier == nil {
		deps.Notifier = push.Noop{}
	}
	if deps.Live == nil {
		deps.Live = offline{}
	}
	if deps.Checker == nil {
		deps.Checker = moderation.NewBasicChecker()
	}
	return &Service{
		store:     deps.Store,
		directory: deps.Directory,
		blocks:    deps.Blocks,
		economy:   deps.Economy,
		checker:   deps.Checker,
		live:      deps.Live,
		notifier:  deps.Notifier,
		photos:    deps.Photos,
		rules:     rules,
		now:       func() time.Time { return time.Now().UTC() },
		timers:    make(map[primitive.ObjectID]*time.Timer),
	}
}

// utcDay returns the start of now's UTC calendar day and the next one
func utcDay(now time.Time) (time.Time, time.Time) {
	start := now.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}

// reserveDaily takes one of user's free matches for today. The returned
// release gives it back when no match ends up being created.
func (s *Service) reserveDaily(ctx context.Context, user primitive.ObjectID, now time.Time) (bool, func(), time.Time, error) {
	start, next := utcDay(now)
	if s.rules.FreeDailyLimit <= 0 {
		return true, func() {}, next, nil
	}
	ok, err := s.store.ReserveDaily(ctx, user, start, s.rules.FreeDailyLimit)
	if err != nil || !ok {
		return false, nil, next, err
	}
	release := func() {
		if err := s.store.ReleaseDaily(context.WithoutCancel(ctx), user, start); err != nil {
			logger.Warn("daily quota for %s not released: %v", user.Hex(), err)
		}
	}
	return true, release, next, nil
}

// FindMatch draws a random eligible counterpart and creates the match.
// Running out of candidates or quota is an outcome, not an error.
func (s *Service) FindMatch(ctx context.Context, requester primitive.ObjectID, f Filters) (*FindResult, error) {
	now := s.now()

	user, err := s.directory.GetUserByID(ctx, requester)
	if err != nil {
		return nil, err
	}
	if user.IsBannedAt(now) {
		return nil, apperr.ErrUserBanned
	}

	premium, err := s.economy.IsPremium(ctx, requester)
	if err != nil {
		return nil, err
	}
	release := func() {}
	if !premium {
		ok, undo, resetsAt, err := s.reserveDaily(ctx, requester, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &FindResult{Outcome: OutcomeDailyLimit, ResetsAt: &resetsAt}, nil
		}
		release = undo
	}
	created := false
	defer func() {
		if !created {
			release()
		}
	}()

	exclude := []primitive.ObjectID{requester}
	partners, err := s.store.ActivePartners(ctx, requester)
	if err != nil {
		return nil, err
	}
	blocked, err := s.blocks.BlockedIDs(ctx, requester)
	if err != nil {
		return nil, err
	}
	exclude = append(append(exclude, partners...), blocked...)

	q := users.CandidateQuery{
		Exclude: exclude,
		MinAge:  f.MinAge,
		MaxAge:  f.MaxAge,
		Now:     now,
	}
	if premium {
		q.Gender = strings.ToLower(strings.TrimSpace(f.Gender))
		q.CityContains = strings.TrimSpace(f.City)
	}

	for attempt := 0; attempt < maxFindAttempts; attempt++ {
		candidate, err := s.directory.SampleCandidate(ctx, q)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			break
		}

		m, err := s.create(ctx, requester, candidate.ID, requester, now)
		if errors.Is(err, apperr.ErrAlreadyMatched) || errors.Is(err, apperr.ErrBlocked) {
			// lost a race with another pairing; try someone else
			q.Exclude = append(q.Exclude, candidate.ID)
			continue
		}
		if err != nil {
			return nil, err
		}

		created = true
		s.announceMatch(ctx, m, candidate.ID)
		view := s.view(m, requester, premium, candidate)
		return &FindResult{Outcome: OutcomeMatched, Match: &view}, nil
	}

	return &FindResult{Outcome: OutcomeNoCandidates}, nil
}

// Create pairs a and b directly. creator must be one of them and is the one
// charged against the daily cap.
func (s *Service) Create(ctx context.Context, a, b, creator primitive.ObjectID) (*Match, error) {
	if a == b {
		return nil, apperr.ErrSelfMatch
	}
	now := s.now()

	premium, err := s.economy.IsPremium(ctx, creator)
	if err != nil {
		return nil, err
	}
	release := func() {}
	if !premium {
		ok, undo, _, err := s.reserveDaily(ctx, creator, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.ErrDailyLimit
		}
		release = undo
	}

	m, err := s.create(ctx, a, b, creator, now)
	if err != nil {
		release()
		return nil, err
	}
	other, _ := m.Other(creator)
	s.announceMatch(ctx, m, other)
	return m, nil
}

func (s *Service) create(ctx context.Context, a, b, creator primitive.ObjectID, now time.Time) (*Match, error) {
	m, err := NewMatch(a, b, creator, now, s.rules.TTL)
	if err != nil {
		return nil, err
	}

	blocked, err := s.blocks.IsBlockedEither(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.ErrBlocked
	}

	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}
	logger.Info("match %s created between %s and %s", m.ID.Hex(), a.Hex(), b.Hex())
	return m, nil
}

// activeFor loads the active match, telling "gone" apart from "ended"
func (s *Service) activeFor(ctx context.Context, id, user primitive.ObjectID) (*Match, error) {
	m, err := s.store.FindActive(ctx, id, user)
	if err == nil {
		if err := m.Check(); err != nil {
			logger.Invariant("%v", err)
			return nil, err
		}
		return m, nil
	}
	if !errors.Is(err, apperr.ErrMatchNotFound) {
		return nil, err
	}
	return nil, s.missing(ctx, id, user)
}

// missing explains why no active row matched
func (s *Service) missing(ctx context.Context, id, user primitive.ObjectID) error {
	if _, err := s.store.FindForParticipant(ctx, id, user); err != nil {
		return err
	}
	return apperr.ErrMatchInactive
}

// SendMessage stores a chat message and advances the unlock counter
func (s *Service) SendMessage(ctx context.Context, matchID, sender primitive.ObjectID, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ErrEmptyMessage
	}

	m, err := s.activeFor(ctx, matchID, sender)
	if err != nil {
		return nil, err
	}

	verdict, err := s.checker.Check(ctx, text)
	if err != nil {
		return nil, apperr.Transient("moderation check", err)
	}
	if !verdict.Safe {
		return nil, apperr.ErrContentRejectedBecause(verdict.Reason)
	}

	now := s.now()
	msg := ChatMessage{
		MatchID:   matchID,
		SenderID:  sender,
		Text:      text,
		Secret:    m.IsSecretAt(now),
		CreatedAt: now,
	}
	if err := s.store.InsertMessage(ctx, &msg); err != nil {
		return nil, err
	}

	updated, err := s.store.IncrementMessageCount(ctx, matchID, sender, now)
	if err != nil {
		if derr := s.store.DeleteMessage(ctx, msg.ID); derr != nil {
			logger.Error("orphan message %s left after failed count update: %v", msg.ID.Hex(), derr)
		}
		if errors.Is(err, apperr.ErrMatchNotFound) {
			return nil, apperr.ErrMatchInactive
		}
		return nil, err
	}

	tier, up := unlock.Crossed(updated.MessageCount-1, updated.MessageCount)

	// a connected recipient gets the relay's new_message; push covers the rest
	if recipient, ok := updated.Other(sender); ok && !s.live.IsOnline(matchID.Hex(), recipient.Hex()) {
		s.push(ctx, recipient, "New message", "Your match sent you a message", map[string]string{
			"type":       chat.EventNewMessage,
			"match_id":   matchID.Hex(),
			"message_id": msg.ID.Hex(),
		})
	}

	if up {
		s.announceUnlock(ctx, updated, tier)
	}

	return &SendResult{
		Message:      msg,
		MessageCount: updated.MessageCount,
		Tier:         tier,
		TierUp:       up,
	}, nil
}

// Messages returns history newest first. Ended matches keep their history.
func (s *Service) Messages(ctx context.Context, matchID, user primitive.ObjectID, page pagination.PaginationRequest) ([]ChatMessage, int64, error) {
	if _, err := s.store.FindForParticipant(ctx, matchID, user); err != nil {
		return nil, 0, err
	}
	return s.store.ListMessages(ctx, matchID, page.Offset(), page.Limit)
}

// Get returns one match with the partner projected at the current tier
func (s *Service) Get(ctx context.Context, matchID, user primitive.ObjectID) (*View, error) {
	m, err := s.store.FindForParticipant(ctx, matchID, user)
	if err != nil {
		return nil, err
	}
	if err := m.Check(); err != nil {
		logger.Invariant("%v", err)
		return nil, err
	}

	premium, err := s.economy.IsPremium(ctx, user)
	if err != nil {
		return nil, err
	}
	other, _ := m.Other(user)
	partner, err := s.directory.GetUserByID(ctx, other)
	if err != nil && !errors.Is(err, apperr.ErrUserNotFound) {
		return nil, err
	}

	view := s.view(m, user, premium, partner)
	return &view, nil
}

// ListActive returns the user's active matches
func (s *Service) ListActive(ctx context.Context, user primitive.ObjectID) ([]View, error) {
	list, err := s.store.ListActive(ctx, user)
	if err != nil {
		return nil, err
	}

	premium, err := s.economy.IsPremium(ctx, user)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(list))
	for i := range list {
		if other, ok := list[i].Other(user); ok {
			ids = append(ids, other)
		}
	}
	partners, err := s.directory.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(list))
	for i := range list {
		if err := list[i].Check(); err != nil {
			logger.Invariant("%v", err)
			continue
		}
		other, _ := list[i].Other(user)
		views = append(views, s.view(&list[i], user, premium, partners[other]))
	}
	return views, nil
}

func (s *Service) view(m *Match, viewer primitive.ObjectID, premium bool, partner *users.User) View {
	other, _ := m.Other(viewer)
	v := View{
		ID:           m.ID,
		Status:       m.Status,
		MessageCount: m.MessageCount,
		Tier:         m.Tier(),
		NextUnlockIn: unlock.NextThreshold(m.MessageCount),
		SecretChat:   m.Secret,
		SecretActive: m.IsSecretAt(s.now()),
		CreatedAt:    m.CreatedAt,
		ExpiresAt:    m.ExpiresAt,
		EndReason:    m.EndReason,
	}
	if partner != nil {
		v.Partner = unlock.ProjectAt(partner.Profile(), m.MessageCount, premium, s.photos)
	} else {
		v.Partner = unlock.View{UserID: other.Hex(), Tier: v.Tier, NextUnlockIn: v.NextUnlockIn}
	}
	if m.IsActive() {
		v.PartnerOnline = s.live.IsOnline(m.ID.Hex(), other.Hex())
	}
	return v
}

// Unmatch ends an active match. A second call finds no active row and
// returns ErrMatchNotFound.
func (s *Service) Unmatch(ctx context.Context, matchID, user primitive.ObjectID, reason string) (*Match, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = reasonUnmatched
	}

	m, err := s.store.Deactivate(ctx, matchID, user, StatusUnmatched, reason, s.now())
	if err != nil {
		return nil, err
	}
	logger.Info("match %s unmatched by %s", matchID.Hex(), user.Hex())
	s.ended(m)
	return m, nil
}

// DeactivatePair ends whatever active match a and b share. No match is not an error.
func (s *Service) DeactivatePair(ctx context.Context, a, b primitive.ObjectID, status Status, reason string, by primitive.ObjectID) error {
	if !status.Terminal() {
		return apperr.Invariant("deactivate pair to non-terminal status " + string(status))
	}
	m, err := s.store.DeactivatePair(ctx, a, b, status, reason, by, s.now())
	if err != nil {
		return err
	}
	if m != nil {
		logger.Info("match %s ended: %s", m.ID.Hex(), reason)
		s.ended(m)
	}
	return nil
}

// ended tells both sides and drops their live connections
func (s *Service) ended(m *Match) {
	s.cancelSecretTimer(m.ID)
	for _, p := range m.Participants {
		s.live.SendTo(m.ID.Hex(), p.Hex(), chat.Event{
			Type:    chat.EventMatchEnded,
			MatchID: m.ID.Hex(),
			Data:    map[string]string{"status": string(m.Status), "reason": m.EndReason},
		})
	}
	s.live.CloseMatch(m.ID.Hex())
}

// Extend pushes the expiry out. The points charge never blocks the extension.
func (s *Service) Extend(ctx context.Context, matchID, user primitive.ObjectID) (*ExtendResult, error) {
	premium, err := s.economy.IsPremium(ctx, user)
	if err != nil {
		return nil, err
	}

	m, err := s.store.Extend(ctx, matchID, user, s.rules.Extension, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrMatchNotFound) {
			return nil, s.missing(ctx, matchID, user)
		}
		return nil, err
	}

	result := &ExtendResult{ExpiresAt: m.ExpiresAt}
	if !premium {
		result.Cost = s.rules.ExtensionCost
	}
	if result.Cost > 0 {
		if err := s.economy.Charge(ctx, user, result.Cost); err != nil {
			logger.Warn("extension charge of %d points for %s on match %s failed: %v",
				result.Cost, user.Hex(), matchID.Hex(), err)
		} else {
			result.Charged = true
		}
	}

	if other, ok := m.Other(user); ok {
		s.live.SendTo(matchID.Hex(), other.Hex(), chat.Event{
			Type:    chat.EventMatchExtended,
			MatchID: matchID.Hex(),
			UserID:  user.Hex(),
			Data:    map[string]interface{}{"expires_at": m.ExpiresAt},
		})
	}
	return result, nil
}

// RequestSecretChat asks the partner to start a secret chat
func (s *Service) RequestSecretChat(ctx context.Context, matchID, user primitive.ObjectID) (*Match, error) {
	m, err := s.activeFor(ctx, matchID, user)
	if err != nil {
		return nil, err
	}

	from := m.Secret.State
	if err := m.RequestSecret(user, s.now()); err != nil {
		return nil, err
	}
	updated, err := s.store.SetSecret(ctx, matchID, user, from, m.Secret, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrMatchNotFound) {
			return nil, apperr.PreconditionFailed("SECRET_CHAT_CHANGED", "secret chat state changed, retry")
		}
		return nil, err
	}

	if other, ok := updated.Other(user); ok {
		delivered := s.live.SendTo(matchID.Hex(), other.Hex(), chat.Event{
			Type:    chat.EventSecretChatRequested,
			MatchID: matchID.Hex(),
			UserID:  user.Hex(),
		})
		if !delivered {
			s.push(ctx, other, "Secret chat", "Your match wants to start a secret chat", map[string]string{
				"type":     chat.EventSecretChatRequested,
				"match_id": matchID.Hex(),
			})
		}
	}
	return updated, nil
}

// AcceptSecretChat starts the requested secret chat for minutes
func (s *Service) AcceptSecretChat(ctx context.Context, matchID, user primitive.ObjectID, minutes int) (*Match, error) {
	if minutes < 1 || minutes > s.rules.SecretMaxMinutes {
		return nil, apperr.ErrInvalidDuration
	}

	m, err := s.activeFor(ctx, matchID, user)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := m.AcceptSecret(user, minutes, s.rules.SecretMaxMinutes, now); err != nil {
		return nil, err
	}

	updated, err := s.store.SetSecret(ctx, matchID, user, SecretRequested, m.Secret, now)
	if err != nil {
		if errors.Is(err, apperr.ErrMatchNotFound) {
			return nil, apperr.ErrNoSecretRequest
		}
		return nil, err
	}

	s.scheduleSecretEnd(matchID, *updated.Secret.ExpiresAt)

	for _, p := range updated.Participants {
		s.live.SendTo(matchID.Hex(), p.Hex(), chat.Event{
			Type:    chat.EventSecretChatStarted,
			MatchID: matchID.Hex(),
			UserID:  user.Hex(),
			Data: map[string]interface{}{
				"minutes":    minutes,
				"expires_at": updated.Secret.ExpiresAt,
			},
		})
	}
	return updated, nil
}

// scheduleSecretEnd arms the advisory timer. IsSecretAt already stops
// flagging messages once ExpiresAt passes.
func (s *Service) scheduleSecretEnd(matchID primitive.ObjectID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[matchID]; ok {
		t.Stop()
	}
	s.timers[matchID] = time.AfterFunc(at.Sub(s.now()), func() {
		s.endSecret(context.Background(), matchID)
	})
}

func (s *Service) cancelSecretTimer(matchID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[matchID]; ok {
		t.Stop()
		delete(s.timers, matchID)
	}
}

// endSecret flips a lapsed secret chat off and notifies both sides
func (s *Service) endSecret(ctx context.Context, matchID primitive.ObjectID) bool {
	m, err := s.store.EndSecret(ctx, matchID, s.now())
	if err != nil {
		if !errors.Is(err, apperr.ErrMatchNotFound) {
			logger.Error("ending secret chat on %s: %v", matchID.Hex(), err)
		}
		return false
	}
	s.cancelSecretTimer(matchID)

	for _, p := range m.Participants {
		s.live.SendTo(matchID.Hex(), p.Hex(), chat.Event{
			Type:    chat.EventSecretChatEnded,
			MatchID: matchID.Hex(),
		})
	}
	return true
}

// CanJoin admits only participants of an active match to the live channel
func (s *Service) CanJoin(ctx context.Context, matchID string, user primitive.ObjectID) error {
	id, err := primitive.ObjectIDFromHex(matchID)
	if err != nil {
		return apperr.ErrMatchNotFound
	}
	_, err = s.activeFor(ctx, id, user)
	return err
}

// Sweep expires overdue matches and ends lapsed secret chats
func (s *Service) Sweep(ctx context.Context) (expired, secretsEnded int, err error) {
	now := s.now()

	list, err := s.store.ExpireDue(ctx, now)
	for i := range list {
		m := &list[i]
		if m.EndReason == "" {
			m.EndReason = reasonExpired
		}
		s.ended(m)
		for _, p := range m.Participants {
			s.push(ctx, p, "Match expired", "One of your matches has expired", map[string]string{
				"type":     chat.EventMatchEnded,
				"match_id": m.ID.Hex(),
			})
		}
	}
	expired = len(list)
	if err != nil {
		return expired, 0, err
	}

	ids, err := s.store.LapsedSecrets(ctx, now)
	if err != nil {
		return expired, 0, err
	}
	for _, id := range ids {
		if s.endSecret(ctx, id) {
			secretsEnded++
		}
	}
	return expired, secretsEnded, nil
}

func (s *Service) announceMatch(ctx context.Context, m *Match, to primitive.ObjectID) {
	s.push(ctx, to, "New match", "Someone new wants to get to know you", map[string]string{
		"type":     "new_match",
		"match_id": m.ID.Hex(),
	})
}

// announceUnlock tells both participants about a new tier, live or by push
func (s *Service) announceUnlock(ctx context.Context, m *Match, tier int) {
	logger.Info("match %s reached tier %d at %d messages", m.ID.Hex(), tier, m.MessageCount)

	for _, p := range m.Participants {
		delivered := s.live.SendTo(m.ID.Hex(), p.Hex(), chat.Event{
			Type:        chat.EventUnlockAchieved,
			MatchID:     m.ID.Hex(),
			UnlockLevel: chat.Int(tier),
			Data: map[string]interface{}{
				"message_count":  m.MessageCount,
				"next_unlock_in": unlock.NextThreshold(m.MessageCount),
			},
		})
		if !delivered {
			s.push(ctx, p, "New reveal unlocked", "You can now see more of your match", map[string]string{
				"type":         chat.EventUnlockAchieved,
				"match_id":     m.ID.Hex(),
				"unlock_level": strconv.Itoa(tier),
			})
		}
	}
}

func (s *Service) push(ctx context.Context, to primitive.ObjectID, title, body string, data map[string]string) {
	if err := s.notifier.Notify(ctx, to.Hex(), title, body, data); err != nil {
		logger.Warn("push to %s failed: %v", to.Hex(), err)
	}
}
