package users

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Economy answers premium status and deducts points. Billing itself lives
// elsewhere; this only reads the flag and moves the balance.
type Economy struct {
	repo *Repository
}

func NewEconomy(repo *Repository) *Economy {
	return &Economy{repo: repo}
}

func (e *Economy) IsPremium(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	user, err := e.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsPremium, nil
}

// Charge deducts points, failing with ErrNotEnoughPoints when the balance is short
func (e *Economy) Charge(ctx context.Context, userID primitive.ObjectID, points int) error {
	return e.repo.ChargePoints(ctx, userID, points)
}

// Ban suspends a user until the given time
func (e *Economy) Ban(ctx context.Context, userID primitive.ObjectID, until time.Time) error {
	return e.repo.SetBannedUntil(ctx, userID, until)
}
