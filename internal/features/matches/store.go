package matches

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the persistence the match lifecycle needs. Every mutation is a
// single conditional write scoped to an active match the user belongs to.
type Store interface {
	// Insert fails with ErrAlreadyMatched if the pair already has an active match
	Insert(ctx context.Context, m *Match) error
	// FindActive returns the active match id for participant user, else ErrMatchNotFound
	FindActive(ctx context.Context, id, user primitive.ObjectID) (*Match, error)
	// FindForParticipant ignores status
	FindForParticipant(ctx context.Context, id, user primitive.ObjectID) (*Match, error)
	ListActive(ctx context.Context, user primitive.ObjectID) ([]Match, error)
	ActivePartners(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error)
	// ReserveDaily takes one unit of creator's quota for the UTC day starting
	// at day. It reports false once limit units are taken.
	ReserveDaily(ctx context.Context, creator primitive.ObjectID, day time.Time, limit int) (bool, error)
	// ReleaseDaily gives back a unit taken by ReserveDaily
	ReleaseDaily(ctx context.Context, creator primitive.ObjectID, day time.Time) error

	// IncrementMessageCount atomically adds one and returns the updated match
	IncrementMessageCount(ctx context.Context, id, user primitive.ObjectID, now time.Time) (*Match, error)
	Deactivate(ctx context.Context, id, user primitive.ObjectID, status Status, reason string, now time.Time) (*Match, error)
	// DeactivatePair returns nil, nil when the pair has no active match
	DeactivatePair(ctx context.Context, a, b primitive.ObjectID, status Status, reason string, by primitive.ObjectID, now time.Time) (*Match, error)
	Extend(ctx context.Context, id, user primitive.ObjectID, by time.Duration, now time.Time) (*Match, error)
	// SetSecret replaces the secret sub-state only while it is still in state from
	SetSecret(ctx context.Context, id, user primitive.ObjectID, from SecretState, secret SecretChat, now time.Time) (*Match, error)

	// ExpireDue marks active matches past their expiry as expired
	ExpireDue(ctx context.Context, now time.Time) ([]Match, error)
	// EndSecret turns off an active secret chat whose time is up
	EndSecret(ctx context.Context, id primitive.ObjectID, now time.Time) (*Match, error)
	LapsedSecrets(ctx context.Context, now time.Time) ([]primitive.ObjectID, error)

	InsertMessage(ctx context.Context, msg *ChatMessage) error
	DeleteMessage(ctx context.Context, id primitive.ObjectID) error
	ListMessages(ctx context.Context, matchID primitive.ObjectID, offset, limit int) ([]ChatMessage, int64, error)
}
