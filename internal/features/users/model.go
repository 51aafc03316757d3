package users

import (
	"time"

	"github.com/xyz-asif/blindmatch/internal/features/unlock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a dating profile. Alias is the placeholder identity shown at tier 0.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Alias         string             `bson:"alias" json:"alias"`
	Name          string             `bson:"name" json:"name"`
	Gender        string             `bson:"gender" json:"gender"`
	Age           int                `bson:"age" json:"age"`
	City          string             `bson:"city" json:"city"`
	Bio           string             `bson:"bio" json:"bio"`
	Interests     []string           `bson:"interests" json:"interests"`
	PhotoPublicID string             `bson:"photoPublicId,omitempty" json:"photoPublicId,omitempty"`
	IsPremium     bool               `bson:"isPremium" json:"isPremium"`
	Points        int                `bson:"points" json:"points"`
	BannedUntil   *time.Time         `bson:"bannedUntil,omitempty" json:"bannedUntil,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsBannedAt reports whether a temporary ban is in force at now
func (u *User) IsBannedAt(now time.Time) bool {
	return u.BannedUntil != nil && now.Before(*u.BannedUntil)
}

// Profile returns the fields the unlock policy may reveal
func (u *User) Profile() unlock.Profile {
	return unlock.Profile{
		UserID:        u.ID.Hex(),
		Alias:         u.Alias,
		Name:          u.Name,
		Gender:        u.Gender,
		Age:           u.Age,
		City:          u.City,
		Bio:           u.Bio,
		Interests:     u.Interests,
		PhotoPublicID: u.PhotoPublicID,
	}
}

// ProfileUpdate is the allow-list of fields a user may change on themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Alias     *string   `json:"alias"`
	Name      *string   `json:"name"`
	Gender    *string   `json:"gender"`
	Age       *int      `json:"age"`
	City      *string   `json:"city"`
	Bio       *string   `json:"bio"`
	Interests *[]string `json:"interests"`
}

// IsEmpty reports whether no field was supplied
func (p ProfileUpdate) IsEmpty() bool {
	return p.Alias == nil && p.Name == nil && p.Gender == nil && p.Age == nil &&
		p.City == nil && p.Bio == nil && p.Interests == nil
}

// DevLoginRequest creates or loads a user by alias outside production
type DevLoginRequest struct {
	Alias  string `json:"alias" binding:"required"`
	Gender string `json:"gender"`
	Age    int    `json:"age"`
	City   string `json:"city"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"accessToken"`
}
