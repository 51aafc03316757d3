package safety

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

type Repository struct {
	blocks  *mongo.Collection
	reports *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	r := &Repository{
		blocks:  db.Collection("blocks"),
		reports: db.Collection("reports"),
	}

	ctx := context.Background()
	_, _ = r.blocks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "blockedId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "blockedId", Value: 1}},
		},
	})
	_, _ = r.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		// Ban threshold window
		Keys: bson.D{{Key: "reportedId", Value: 1}, {Key: "createdAt", Value: -1}},
	})

	return r
}

// eitherWay matches a block between a and b in either direction
func eitherWay(a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": []bson.M{
		{"ownerId": a, "blockedId": b},
		{"ownerId": b, "blockedId": a},
	}}
}

// Block inserts the relation or leaves an existing one untouched. It reports
// whether a new row was written; otherwise b is filled from the stored row.
func (r *Repository) Block(ctx context.Context, b *Block) (bool, error) {
	filter := bson.M{"ownerId": b.OwnerID, "blockedId": b.BlockedID}
	update := bson.M{"$setOnInsert": bson.M{
		"ownerId":   b.OwnerID,
		"blockedId": b.BlockedID,
		"reason":    b.Reason,
		"createdAt": b.CreatedAt,
	}}

	result, err := r.blocks.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	// two concurrent upserts can race on the unique index
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, apperr.Transient("block user", err)
	}
	if err == nil {
		if oid, ok := result.UpsertedID.(primitive.ObjectID); ok {
			b.ID = oid
			return true, nil
		}
	}

	if err := r.blocks.FindOne(ctx, filter).Decode(b); err != nil {
		return false, apperr.Transient("load block", err)
	}
	return false, nil
}

func (r *Repository) Unblock(ctx context.Context, owner, target primitive.ObjectID) (bool, error) {
	result, err := r.blocks.DeleteOne(ctx, bson.M{"ownerId": owner, "blockedId": target})
	if err != nil {
		return false, apperr.Transient("unblock user", err)
	}
	return result.DeletedCount > 0, nil
}

// ListBlocked returns the owner's blocks, newest first
func (r *Repository) ListBlocked(ctx context.Context, owner primitive.ObjectID) ([]Block, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.blocks.Find(ctx, bson.M{"ownerId": owner}, opts)
	if err != nil {
		return nil, apperr.Transient("list blocks", err)
	}
	defer cursor.Close(ctx)

	blocks := []Block{}
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, apperr.Transient("decode blocks", err)
	}
	return blocks, nil
}

func (r *Repository) IsBlockedEither(ctx context.Context, a, b primitive.ObjectID) (bool, error) {
	n, err := r.blocks.CountDocuments(ctx, eitherWay(a, b), options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.Transient("check block", err)
	}
	return n > 0, nil
}

// BlockedIDs returns everyone user blocked or was blocked by
func (r *Repository) BlockedIDs(ctx context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{"$or": []bson.M{{"ownerId": user}, {"blockedId": user}}}
	opts := options.Find().SetProjection(bson.M{"ownerId": 1, "blockedId": 1})

	cursor, err := r.blocks.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Transient("list block ids", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var b Block
		if err := cursor.Decode(&b); err != nil {
			return nil, apperr.Transient("decode block", err)
		}
		if b.OwnerID == user {
			ids = append(ids, b.BlockedID)
		} else {
			ids = append(ids, b.OwnerID)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Transient("list block ids", err)
	}
	return ids, nil
}

func (r *Repository) CreateReport(ctx context.Context, report *Report) error {
	result, err := r.reports.InsertOne(ctx, report)
	if err != nil {
		return apperr.Transient("create report", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		report.ID = oid
	}
	return nil
}

// CountRecentReports counts reports filed against reported since
func (r *Repository) CountRecentReports(ctx context.Context, reported primitive.ObjectID, since time.Time) (int64, error) {
	n, err := r.reports.CountDocuments(ctx, bson.M{
		"reportedId": reported,
		"createdAt":  bson.M{"$gte": since},
	})
	if err != nil {
		return 0, apperr.Transient("count reports", err)
	}
	return n, nil
}

func (r *Repository) UpdateReportStatus(ctx context.Context, id primitive.ObjectID, status ReportStatus, now time.Time) (*Report, error) {
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": now, "reviewedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var report Report
	if err := r.reports.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&report); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrReportMissing
		}
		return nil, apperr.Transient("review report", err)
	}
	return &report, nil
}
