package users

import (
	"context"
	"errors"
	"regexp"
	"time"

	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository handles database interactions for user profiles
type Repository struct {
	collection *mongo.Collection
}

// NewRepository initializes the repository and creates necessary indexes
func NewRepository(db *mongo.Database) *Repository {
	collection := db.Collection("users")

	_, _ = collection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "alias", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Candidate sampling filters
			Keys: bson.D{
				{Key: "gender", Value: 1},
				{Key: "age", Value: 1},
			},
		},
	})

	return &Repository{collection: collection}
}

// CreateUser inserts a new user into the database
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Interests == nil {
		user.Interests = []string{}
	}

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.PreconditionFailed("ALIAS_TAKEN", "alias is already taken")
		}
		return apperr.Transient("create user", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

// GetUserByID finds a user by id
func (r *Repository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Transient("get user", err)
	}
	return &user, nil
}

// GetUserByAlias finds a user by alias. Not found is not an error here.
func (r *Repository) GetUserByAlias(ctx context.Context, alias string) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"alias": alias}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.Transient("get user by alias", err)
	}
	return &user, nil
}

// GetUsersByIDs loads several users, keyed by id
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*User, error) {
	out := make(map[primitive.ObjectID]*User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperr.Transient("get users", err)
	}
	defer cursor.Close(ctx)

	var list []User
	if err := cursor.All(ctx, &list); err != nil {
		return nil, apperr.Transient("decode users", err)
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

// updateDoc turns an allow-listed update into a $set document
func updateDoc(p ProfileUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if p.Alias != nil {
		set["alias"] = *p.Alias
	}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Gender != nil {
		set["gender"] = *p.Gender
	}
	if p.Age != nil {
		set["age"] = *p.Age
	}
	if p.City != nil {
		set["city"] = *p.City
	}
	if p.Bio != nil {
		set["bio"] = *p.Bio
	}
	if p.Interests != nil {
		set["interests"] = *p.Interests
	}
	return set
}

// UpdateProfile applies an allow-listed update and returns the new document
func (r *Repository) UpdateProfile(ctx context.Context, id primitive.ObjectID, p ProfileUpdate) (*User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": updateDoc(p, time.Now().UTC())}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.PreconditionFailed("ALIAS_TAKEN", "alias is already taken")
		}
		return nil, apperr.Transient("update profile", err)
	}
	return &user, nil
}

// SetPhoto stores the Cloudinary public id of the user's photo
func (r *Repository) SetPhoto(ctx context.Context, id primitive.ObjectID, publicID string) error {
	update := bson.M{"$set": bson.M{"photoPublicId": publicID, "updatedAt": time.Now().UTC()}}
	if publicID == "" {
		update = bson.M{
			"$unset": bson.M{"photoPublicId": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		}
	}
	return r.updateOne(ctx, id, update, "set photo")
}

// ChargePoints atomically deducts points if the balance covers them
func (r *Repository) ChargePoints(ctx context.Context, id primitive.ObjectID, points int) error {
	if points <= 0 {
		return nil
	}
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "points": bson.M{"$gte": points}},
		bson.M{
			"$inc": bson.M{"points": -points},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return apperr.Transient("charge points", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetUserByID(ctx, id); err != nil {
			return err
		}
		return apperr.ErrNotEnoughPoints
	}
	return nil
}

// SetBannedUntil records a temporary ban
func (r *Repository) SetBannedUntil(ctx context.Context, id primitive.ObjectID, until time.Time) error {
	update := bson.M{"$set": bson.M{"bannedUntil": until, "updatedAt": time.Now().UTC()}}
	return r.updateOne(ctx, id, update, "set ban")
}

func (r *Repository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M, op string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return apperr.Transient(op, err)
	}
	if result.MatchedCount == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// CandidateQuery narrows the pool a random counterpart is drawn from
type CandidateQuery struct {
	Exclude      []primitive.ObjectID
	Gender       string
	CityContains string
	MinAge       int
	MaxAge       int
	Now          time.Time
}

// candidateFilter builds the $match stage for SampleCandidate
func candidateFilter(q CandidateQuery) bson.M {
	filter := bson.M{
		"_id": bson.M{"$nin": q.Exclude},
		"$or": bson.A{
			bson.M{"bannedUntil": bson.M{"$exists": false}},
			bson.M{"bannedUntil": nil},
			bson.M{"bannedUntil": bson.M{"$lte": q.Now}},
		},
	}
	if q.Gender != "" {
		filter["gender"] = q.Gender
	}
	if q.CityContains != "" {
		filter["city"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.CityContains), Options: "i"}
	}
	if q.MinAge > 0 || q.MaxAge > 0 {
		age := bson.M{}
		if q.MinAge > 0 {
			age["$gte"] = q.MinAge
		}
		if q.MaxAge > 0 {
			age["$lte"] = q.MaxAge
		}
		filter["age"] = age
	}
	return filter
}

// SampleCandidate picks one random user matching q, or nil if none match
func (r *Repository) SampleCandidate(ctx context.Context, q CandidateQuery) (*User, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: candidateFilter(q)}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperr.Transient("sample candidate", err)
	}
	defer cursor.Close(ctx)

	var picked []User
	if err := cursor.All(ctx, &picked); err != nil {
		return nil, apperr.Transient("decode candidate", err)
	}
	if len(picked) == 0 {
		return nil, nil
	}
	return &picked[0], nil
}
