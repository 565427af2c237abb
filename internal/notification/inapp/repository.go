package inapp

import (
	"context"
	"fmt"
	"time"

	"brokerage_backoffice/platform/apperr"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "notifications"

	opCreate      = "notification.inapp.repository.create"
	opList        = "notification.inapp.repository.list"
	opCountUnread = "notification.inapp.repository.count_unread"
	opMarkRead    = "notification.inapp.repository.mark_read"
	opMarkAllRead = "notification.inapp.repository.mark_all_read"

	errRepoNotConfigured = "in-app notification repository not configured"
	errUserIDRequired    = "userId is required"
)

type Notification struct {
	ID            string    `json:"id"`
	UserID        uuid.UUID `json:"userId"`
	LeadID        string    `json:"leadId"`
	FollowUpID    string    `json:"followUpId"`
	Tier          string    `json:"tier"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CreateParams struct {
	UserID        uuid.UUID
	LeadID        string
	FollowUpID    string
	Tier          string
	ScheduledTime time.Time
	Title         string
	Message       string
}

type notificationDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"userId"`
	LeadID        string             `bson:"leadId"`
	FollowUpID    string             `bson:"followUpId"`
	Tier          string             `bson:"tier"`
	ScheduledTime time.Time          `bson:"scheduledTime"`
	Title         string             `bson:"title"`
	Message       string             `bson:"message"`
	Read          bool               `bson:"read"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

func (d notificationDocument) toNotification() Notification {
	userID, _ := uuid.Parse(d.UserID)
	return Notification{
		ID:            d.ID.Hex(),
		UserID:        userID,
		LeadID:        d.LeadID,
		FollowUpID:    d.FollowUpID,
		Tier:          d.Tier,
		ScheduledTime: d.ScheduledTime,
		Title:         d.Title,
		Message:       d.Message,
		IsRead:        d.Read,
		CreatedAt:     d.CreatedAt,
	}
}

type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(collectionName), now: time.Now}
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "followUpId", Value: 1},
				{Key: "tier", Value: 1},
				{Key: "scheduledTime", Value: 1},
			},
			Options: options.Index().SetName("follow_up_tier_time_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	return err
}

// Create stores the notification once per (follow-up, tier, scheduled time).
// It reports false when an earlier attempt already stored it.
func (r *Repository) Create(ctx context.Context, p CreateParams) (bool, error) {
	if r == nil || r.coll == nil {
		return false, apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if p.UserID == uuid.Nil || p.FollowUpID == "" || p.Tier == "" {
		return false, apperr.Validation("userId, followUpId and tier are required").WithOp(opCreate)
	}
	if p.Title == "" || p.Message == "" {
		return false, apperr.Validation("title and message are required").WithOp(opCreate)
	}

	key := bson.M{
		"followUpId":    p.FollowUpID,
		"tier":          p.Tier,
		"scheduledTime": p.ScheduledTime.UTC(),
	}
	doc := bson.M{
		"userId":    p.UserID.String(),
		"leadId":    p.LeadID,
		"title":     p.Title,
		"message":   p.Message,
		"read":      false,
		"createdAt": r.now().UTC(),
	}

	res, err := r.coll.UpdateOne(ctx, key, bson.M{"$setOnInsert": doc}, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// Concurrent upsert on the same key.
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(fmt.Sprintf("create in-app notification failed: %v", err)).WithOp(opCreate)
	}
	return res.UpsertedCount == 1, nil
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int64, error) {
	if r == nil || r.coll == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if userID == uuid.Nil {
		return nil, 0, apperr.Validation(errUserIDRequired).WithOp(opList)
	}

	filter := bson.M{"userId": userID.String()}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer cursor.Close(ctx)

	items := make([]Notification, 0, limit)
	for cursor.Next(ctx) {
		var doc notificationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("decode notification failed: %v", err)).WithOp(opList)
		}
		items = append(items, doc.toNotification())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", err)).WithOp(opList)
	}
	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if r == nil || r.coll == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}
	if userID == uuid.Nil {
		return 0, apperr.Validation(errUserIDRequired).WithOp(opCountUnread)
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"userId": userID.String(), "read": false})
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}
	return n, nil
}

func (r *Repository) MarkRead(ctx context.Context, userID uuid.UUID, notificationID string) error {
	if r == nil || r.coll == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	oid, err := primitive.ObjectIDFromHex(notificationID)
	if userID == uuid.Nil || err != nil {
		return apperr.Validation("userId and a valid notificationId are required").WithOp(opMarkRead)
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "userId": userID.String()},
		bson.M{"$set": bson.M{"read": true, "readAt": r.now().UTC()}},
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("notification not found").WithOp(opMarkRead)
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if r == nil || r.coll == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}
	if userID == uuid.Nil {
		return apperr.Validation(errUserIDRequired).WithOp(opMarkAllRead)
	}

	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID.String(), "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": r.now().UTC()}},
	)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return nil
}
