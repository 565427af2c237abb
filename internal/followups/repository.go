package followups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "follow_ups"

var (
	ErrNotFound = errors.New("follow-up not found")
	// ErrNotScheduled is returned when a change needs a SCHEDULED follow-up.
	ErrNotScheduled = errors.New("follow-up is no longer scheduled")
)

type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(collection), now: time.Now}
}

type followUpDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	LeadID      primitive.ObjectID `bson:"leadId"`
	Type        string             `bson:"type"`
	ScheduledAt time.Time          `bson:"scheduledAt"`
	Notes       string             `bson:"notes,omitempty"`
	Status      string             `bson:"status"`
	CreatedBy   string             `bson:"createdBy"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d followUpDocument) toDomain() FollowUp {
	f := FollowUp{
		ID:          d.ID,
		LeadID:      d.LeadID,
		Type:        Type(d.Type),
		ScheduledAt: d.ScheduledAt,
		Notes:       d.Notes,
		Status:      Status(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if id, err := uuid.Parse(d.CreatedBy); err == nil {
		f.CreatedBy = id
	}
	return f
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "leadId", Value: 1}, {Key: "scheduledAt", Value: 1}},
	})
	return err
}

func (r *Repository) Create(ctx context.Context, f FollowUp) (FollowUp, error) {
	now := r.now().UTC()
	doc := followUpDocument{
		LeadID:      f.LeadID,
		Type:        string(f.Type),
		ScheduledAt: f.ScheduledAt.UTC(),
		Notes:       f.Notes,
		Status:      string(f.Status),
		CreatedBy:   f.CreatedBy.String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return FollowUp{}, fmt.Errorf("insert follow-up: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *Repository) GetByID(ctx context.Context, id primitive.ObjectID) (FollowUp, error) {
	var doc followUpDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return FollowUp{}, ErrNotFound
	}
	if err != nil {
		return FollowUp{}, err
	}
	return doc.toDomain(), nil
}

func (r *Repository) ListByLead(ctx context.Context, leadID primitive.ObjectID) ([]FollowUp, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"leadId": leadID},
		options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]FollowUp, 0)
	for cursor.Next(ctx) {
		var doc followUpDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.toDomain())
	}
	return items, cursor.Err()
}

// Reschedule moves a SCHEDULED follow-up to at.
func (r *Repository) Reschedule(ctx context.Context, id primitive.ObjectID, at time.Time) (FollowUp, error) {
	return r.updateScheduled(ctx, id, bson.M{"scheduledAt": at.UTC()})
}

// SetStatus closes a SCHEDULED follow-up.
func (r *Repository) SetStatus(ctx context.Context, id primitive.ObjectID, status Status) (FollowUp, error) {
	return r.updateScheduled(ctx, id, bson.M{"status": string(status)})
}

func (r *Repository) updateScheduled(ctx context.Context, id primitive.ObjectID, set bson.M) (FollowUp, error) {
	set["updatedAt"] = r.now().UTC()

	var doc followUpDocument
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(StatusScheduled)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return FollowUp{}, getErr
		}
		return FollowUp{}, ErrNotScheduled
	}
	if err != nil {
		return FollowUp{}, err
	}
	return doc.toDomain(), nil
}
