package matches

import (
	"context"
	"errors"
	"time"

	apperr "github.com/xyz-asif/blindmatch/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is the MongoDB Store
type Repository struct {
	matches  *mongo.Collection
	messages *mongo.Collection
	quotas   *mongo.Collection
}

// NewRepository initializes the repository and creates necessary indexes
func NewRepository(db *mongo.Database) *Repository {
	r := &Repository{
		matches:  db.Collection("matches"),
		messages: db.Collection("messages"),
		quotas:   db.Collection("match_quotas"),
	}

	ctx := context.Background()
	_, _ = r.matches.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// At most one active match per unordered pair
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": StatusActive}),
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			// Sweeper
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "secret.state", Value: 1}, {Key: "secret.expiresAt", Value: 1}},
		},
	})

	_, _ = r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "matchId", Value: 1}, {Key: "createdAt", Value: -1}},
	})

	_, _ = r.quotas.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// One counter per creator per UTC day
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})

	return r
}

func activeFilter(id, user primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "participants": user, "status": StatusActive}
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*Match, error) {
	var m Match
	if err := r.matches.FindOne(ctx, filter).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrMatchNotFound
		}
		return nil, apperr.Transient("find match", err)
	}
	return &m, nil
}

// updateActive applies update to the active match and returns the new document
func (r *Repository) updateActive(ctx context.Context, filter, update bson.M) (*Match, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m Match
	if err := r.matches.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrMatchNotFound
		}
		return nil, apperr.Transient("update match", err)
	}
	return &m, nil
}

func (r *Repository) Insert(ctx context.Context, m *Match) error {
	result, err := r.matches.InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.ErrAlreadyMatched
		}
		return apperr.Transient("insert match", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

func (r *Repository) FindActive(ctx context.Context, id, user primitive.ObjectID) (*Match, error) {
	return r.findOne(ctx, activeFilter(id, user))
}

func (r *Repository) FindForParticipant(ctx context.Context, id, user primitive.ObjectID) (*Match, error) {
	return r.findOne(ctx, bson.M{"_id": id, "participants": user})
}

func (r *Repository) ListActive(ctx context.Context, user primitive.ObjectID) ([]Match, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := r.matches.Find(ctx, bson.M{"participants": user, "status": StatusActive}, opts)
	if err != nil {
		return nil, apperr.Transient("list matches", err)
	}
	defer cursor.Close(ctx)

	list := []Match{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, apperr.Transient("decode matches", err)
	}
	return list, nil
}

func (r *Repository) ActivePartners(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	list, err := r.ListActive(ctx, user)
	if err != nil {
		return nil, err
	}
	partners := make([]primitive.ObjectID, 0, len(list))
	for i := range list {
		if other, ok := list[i].Other(user); ok {
			partners = append(partners, other)
		}
	}
	return partners, nil
}

// ReserveDaily bumps the day's counter only while it is below limit. A
// missing counter is upserted; a full one makes the upsert collide with the
// unique index, which means the quota is spent.
func (r *Repository) ReserveDaily(ctx context.Context, creator primitive.ObjectID, day time.Time, limit int) (bool, error) {
	filter := bson.M{"userId": creator, "day": day, "count": bson.M{"$lt": limit}}
	update := bson.M{
		"$inc":         bson.M{"count": 1},
		"$setOnInsert": bson.M{"expiresAt": day.Add(48 * time.Hour)},
	}
	opts := options.Update().SetUpsert(true)

	// a concurrent first reservation of the day can also collide; the retry
	// then sees the counter it created
	for attempt := 0; attempt < 2; attempt++ {
		_, err := r.quotas.UpdateOne(ctx, filter, update, opts)
		if err == nil {
			return true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return false, apperr.Transient("reserve daily quota", err)
		}
	}
	return false, nil
}

func (r *Repository) ReleaseDaily(ctx context.Context, creator primitive.ObjectID, day time.Time) error {
	_, err := r.quotas.UpdateOne(ctx,
		bson.M{"userId": creator, "day": day, "count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"count": -1}},
	)
	if err != nil {
		return apperr.Transient("release daily quota", err)
	}
	return nil
}

func (r *Repository) IncrementMessageCount(ctx context.Context, id, user primitive.ObjectID, now time.Time) (*Match, error) {
	return r.updateActive(ctx, activeFilter(id, user), bson.M{
		"$inc": bson.M{"messageCount": 1},
		"$set": bson.M{"updatedAt": now},
	})
}

func deactivateSet(status Status, reason string, by primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"status":    status,
		"endReason": reason,
		"endedBy":   by,
		"endedAt":   now,
		"updatedAt": now,
		"secret":    secretOff(),
	}
}

func (r *Repository) Deactivate(ctx context.Context, id, user primitive.ObjectID, status Status, reason string, now time.Time) (*Match, error) {
	return r.updateActive(ctx, activeFilter(id, user), bson.M{"$set": deactivateSet(status, reason, user, now)})
}

func (r *Repository) DeactivatePair(ctx context.Context, a, b primitive.ObjectID, status Status, reason string, by primitive.ObjectID, now time.Time) (*Match, error) {
	m, err := r.updateActive(ctx,
		bson.M{"pairKey": PairKey(a, b), "status": StatusActive},
		bson.M{"$set": deactivateSet(status, reason, by, now)},
	)
	if errors.Is(err, apperr.ErrMatchNotFound) {
		return nil, nil
	}
	return m, err
}

func (r *Repository) Extend(ctx context.Context, id, user primitive.ObjectID, by time.Duration, now time.Time) (*Match, error) {
	// Pipeline update so the addition happens server side in one write
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"expiresAt": bson.M{"$add": bson.A{"$expiresAt", by.Milliseconds()}},
			"updatedAt": now,
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m Match
	if err := r.matches.FindOneAndUpdate(ctx, activeFilter(id, user), update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrMatchNotFound
		}
		return nil, apperr.Transient("extend match", err)
	}
	return &m, nil
}

func (r *Repository) SetSecret(ctx context.Context, id, user primitive.ObjectID, from SecretState, secret SecretChat, now time.Time) (*Match, error) {
	filter := activeFilter(id, user)
	filter["secret.state"] = from
	return r.updateActive(ctx, filter, bson.M{"$set": bson.M{"secret": secret, "updatedAt": now}})
}

func (r *Repository) ExpireDue(ctx context.Context, now time.Time) ([]Match, error) {
	cursor, err := r.matches.Find(ctx, bson.M{"status": StatusActive, "expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return nil, apperr.Transient("find due matches", err)
	}
	var due []Match
	if err := cursor.All(ctx, &due); err != nil {
		return nil, apperr.Transient("decode due matches", err)
	}

	expired := make([]Match, 0, len(due))
	for _, m := range due {
		updated, err := r.updateActive(ctx,
			bson.M{"_id": m.ID, "status": StatusActive, "expiresAt": bson.M{"$lte": now}},
			bson.M{"$set": bson.M{
				"status":    StatusExpired,
				"endReason": "Match expired",
				"endedAt":   now,
				"updatedAt": now,
				"secret":    secretOff(),
			}},
		)
		if errors.Is(err, apperr.ErrMatchNotFound) {
			// extended or ended in the meantime
			continue
		}
		if err != nil {
			return expired, err
		}
		expired = append(expired, *updated)
	}
	return expired, nil
}

func (r *Repository) EndSecret(ctx context.Context, id primitive.ObjectID, now time.Time) (*Match, error) {
	return r.updateActive(ctx,
		bson.M{
			"_id":              id,
			"status":           StatusActive,
			"secret.state":     SecretActive,
			"secret.expiresAt": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{"secret": secretOff(), "updatedAt": now}},
	)
}

func (r *Repository) LapsedSecrets(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.matches.Find(ctx, bson.M{
		"status":           StatusActive,
		"secret.state":     SecretActive,
		"secret.expiresAt": bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, apperr.Transient("find lapsed secrets", err)
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, apperr.Transient("decode lapsed secrets", err)
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *Repository) InsertMessage(ctx context.Context, msg *ChatMessage) error {
	result, err := r.messages.InsertOne(ctx, msg)
	if err != nil {
		return apperr.Transient("insert message", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

func (r *Repository) DeleteMessage(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.messages.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Transient("delete message", err)
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, matchID primitive.ObjectID, offset, limit int) ([]ChatMessage, int64, error) {
	filter := bson.M{"matchId": matchID}

	total, err := r.messages.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Transient("count messages", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperr.Transient("list messages", err)
	}
	defer cursor.Close(ctx)

	list := []ChatMessage{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, 0, apperr.Transient("decode messages", err)
	}
	return list, total, nil
}
