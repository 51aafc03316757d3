package matches

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xyz-asif/blindmatch/internal/config"
	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	assert.Equal(t, PairKey(a, b), PairKey(b, a))
	assert.NotEqual(t, PairKey(a, b), PairKey(a, primitive.NewObjectID()))
}

func TestNewMatch(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	m, err := NewMatch(a, b, b, now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, b, m.CreatedBy)
	assert.Equal(t, now.Add(time.Hour), m.ExpiresAt)
	assert.Equal(t, SecretOff, m.Secret.State)
	assert.NoError(t, m.Check())

	_, err = NewMatch(a, a, a, now, time.Hour)
	assert.ErrorIs(t, err, apperr.ErrSelfMatch)

	_, err = NewMatch(a, b, primitive.NewObjectID(), now, time.Hour)
	assert.Equal(t, apperr.KindInternalInvariant, apperr.KindOf(err))
}

func TestMatchOtherAndParticipant(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	m, err := NewMatch(a, b, a, time.Now(), time.Hour)
	require.NoError(t, err)

	other, ok := m.Other(a)
	assert.True(t, ok)
	assert.Equal(t, b, other)

	_, ok = m.Other(primitive.NewObjectID())
	assert.False(t, ok)
	assert.False(t, m.Participant(primitive.NewObjectID()))
}

func TestTierFollowsMessageCount(t *testing.T) {
	m := &Match{}
	for count, want := range map[int64]int{0: 0, 19: 0, 20: 1, 59: 1, 60: 2, 100: 3, 150: 4, 900: 4} {
		m.MessageCount = count
		assert.Equal(t, want, m.Tier(), "count %d", count)
	}
}

func TestDeactivate(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()
	m, err := NewMatch(a, b, a, now, time.Hour)
	require.NoError(t, err)

	require.NoError(t, m.RequestSecret(a, now))
	require.NoError(t, m.AcceptSecret(b, 5, 60, now))
	require.True(t, m.IsSecretAt(now))

	assert.Error(t, m.Deactivate(StatusActive, "", nil, now))

	require.NoError(t, m.Deactivate(StatusBlocked, "User blocked", &b, now))
	assert.Equal(t, StatusBlocked, m.Status)
	assert.Equal(t, SecretOff, m.Secret.State)
	assert.False(t, m.IsSecretAt(now))
	require.NotNil(t, m.EndedAt)
	assert.NoError(t, m.Check())

	assert.ErrorIs(t, m.Deactivate(StatusUnmatched, "", &a, now), apperr.ErrMatchInactive)
}

func TestSecretTransitions(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	now := time.Now().UTC()
	m, err := NewMatch(a, b, a, now, time.Hour)
	require.NoError(t, err)

	assert.ErrorIs(t, m.AcceptSecret(b, 10, 60, now), apperr.ErrNoSecretRequest)
	assert.ErrorIs(t, m.RequestSecret(primitive.NewObjectID(), now), apperr.ErrNotParticipant)

	require.NoError(t, m.RequestSecret(b, now))
	assert.False(t, m.IsSecretAt(now))
	assert.ErrorIs(t, m.AcceptSecret(b, 10, 60, now), apperr.ErrNoSecretRequest)
	assert.ErrorIs(t, m.AcceptSecret(a, 0, 60, now), apperr.ErrInvalidDuration)
	assert.ErrorIs(t, m.AcceptSecret(a, 61, 60, now), apperr.ErrInvalidDuration)

	require.NoError(t, m.AcceptSecret(a, 10, 60, now))
	assert.True(t, m.IsSecretAt(now.Add(9*time.Minute)))
	assert.False(t, m.IsSecretAt(now.Add(10*time.Minute)))

	// asking again while active is refused
	err = m.RequestSecret(a, now.Add(time.Minute))
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	m.EndSecret(now)
	assert.Equal(t, SecretOff, m.Secret.State)
	assert.Nil(t, m.Secret.ExpiresAt)
}

func TestCheckCatchesBrokenRecords(t *testing.T) {
	a := primitive.NewObjectID()
	now := time.Now()

	m := &Match{Participants: []primitive.ObjectID{a}, Status: StatusActive}
	assert.Error(t, m.Check())

	m = &Match{Participants: []primitive.ObjectID{a, a}, Status: StatusActive}
	assert.Error(t, m.Check())

	m = &Match{
		Participants: []primitive.ObjectID{a, primitive.NewObjectID()},
		Status:       StatusExpired,
		Secret:       SecretChat{State: SecretActive, ExpiresAt: &now},
	}
	assert.Equal(t, apperr.KindInternalInvariant, apperr.KindOf(m.Check()))
}

func TestValidateFilters(t *testing.T) {
	f := Filters{Gender: " Female ", City: " Lisbon "}
	require.NoError(t, ValidateFilters(&f))
	assert.Equal(t, "female", f.Gender)
	assert.Equal(t, "Lisbon", f.City)

	assert.Error(t, ValidateFilters(&Filters{Gender: "robot"}))
	assert.Error(t, ValidateFilters(&Filters{MinAge: 12}))
	assert.Error(t, ValidateFilters(&Filters{MinAge: 40, MaxAge: 30}))
	assert.NoError(t, ValidateFilters(&Filters{MinAge: 25, MaxAge: 30}))
}

func TestRulesFromConfig(t *testing.T) {
	cfg := &config.Config{
		MatchTTL:             48 * time.Hour,
		MatchExtension:       24 * time.Hour,
		ExtensionCostPoints:  50,
		FreeDailyMatchLimit:  3,
		SecretChatMaxMinutes: 60,
	}
	assert.Equal(t, testRules, RulesFromConfig(cfg))
}
