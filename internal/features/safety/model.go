package safety

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Block is directed: Owner no longer wants to see Blocked
type Block struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	BlockedID primitive.ObjectID `bson:"blockedId" json:"blockedId"`
	Reason    string             `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportActioned ReportStatus = "actioned"
)

// ContentType says what the report points at
type ContentType string

const (
	ContentUser    ContentType = "user"
	ContentMessage ContentType = "message"
	ContentPhoto   ContentType = "photo"
	ContentProfile ContentType = "profile"
)

type Report struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReporterID  primitive.ObjectID `bson:"reporterId" json:"reporterId"`
	ReportedID  primitive.ObjectID `bson:"reportedId" json:"reportedId"`
	ContentType ContentType        `bson:"contentType" json:"contentType"`
	ContentID   string             `bson:"contentId,omitempty" json:"contentId,omitempty"`
	Reason      string             `bson:"reason" json:"reason"`
	Status      ReportStatus       `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
	ReviewedAt  *time.Time         `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}

// BlockedUser is one row of the caller's block list
type BlockedUser struct {
	UserID    primitive.ObjectID `json:"userId"`
	Alias     string             `json:"alias"`
	Reason    string             `json:"reason,omitempty"`
	BlockedAt time.Time          `json:"blockedAt"`
}

type BlockRequest struct {
	Reason string `json:"reason"`
}

type CreateReportRequest struct {
	ReportedUserID string `json:"reportedUserId" binding:"required"`
	ContentType    string `json:"contentType" binding:"required,oneof=user message photo profile"`
	ContentID      string `json:"contentId"`
	Reason         string `json:"reason" binding:"required,min=5,max=500"`
}

type ReviewReportRequest struct {
	Status string `json:"status" binding:"required,oneof=reviewed actioned"`
}
