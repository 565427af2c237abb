package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brokerage_backoffice/internal/leads/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "leads"

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func New(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(collectionName), now: time.Now}
}

// leadDocument is the stored shape. assignedTo is always written so that an
// unowned lead holds an explicit null.
type leadDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Phone        string             `bson:"phone"`
	Email        string             `bson:"email,omitempty"`
	Location     string             `bson:"location,omitempty"`
	PropertyType string             `bson:"propertyType,omitempty"`
	Budget       string             `bson:"budget,omitempty"`
	Status       string             `bson:"status"`
	AssignedTo   *string            `bson:"assignedTo"`
	UploadedBy   string             `bson:"uploadedBy"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func toDocument(l domain.Lead) leadDocument {
	return leadDocument{
		ID:           l.ID,
		Name:         l.Name,
		Phone:        l.Phone,
		Email:        l.Email,
		Location:     l.Location,
		PropertyType: l.PropertyType,
		Budget:       l.Budget,
		Status:       string(l.Status),
		AssignedTo:   ownerString(l.AssignedTo),
		UploadedBy:   l.UploadedBy.String(),
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func (d leadDocument) toDomain() domain.Lead {
	lead := domain.Lead{
		ID:           d.ID,
		Name:         d.Name,
		Phone:        d.Phone,
		Email:        d.Email,
		Location:     d.Location,
		PropertyType: d.PropertyType,
		Budget:       d.Budget,
		Status:       domain.Status(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if id, err := uuid.Parse(d.UploadedBy); err == nil {
		lead.UploadedBy = id
	}
	if d.AssignedTo != nil {
		if id, err := uuid.Parse(*d.AssignedTo); err == nil {
			lead.AssignedTo = &id
		}
	}
	return lead
}

func ownerString(id *uuid.UUID) *string {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	s := id.String()
	return &s
}

// EnsureIndexes creates the indexes backing bulk-assignment lookups and listings.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uploadedBy", Value: 1}, {Key: "status", Value: 1}, {Key: "assignedTo", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (r *Repository) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	now := r.now().UTC()
	lead.ID = primitive.NewObjectID()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, toDocument(lead)); err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id primitive.ObjectID) (domain.Lead, error) {
	var doc leadDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return doc.toDomain(), nil
}

// GetByIDs returns the leads found among ids, keyed by id.
func (r *Repository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Lead, error) {
	out := make(map[primitive.ObjectID]domain.Lead, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc leadDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.ID] = doc.toDomain()
	}
	return out, cursor.Err()
}

type ListParams struct {
	Status     *domain.Status
	AssignedTo *uuid.UUID
	// VisibleTo restricts results to leads the employee uploaded or owns.
	VisibleTo *uuid.UUID
	Page      int
	PageSize  int
}

type ListResult struct {
	Items []domain.Lead
	Total int64
}

func (r *Repository) List(ctx context.Context, params ListParams) (ListResult, error) {
	filter := bson.M{}
	if params.Status != nil {
		filter["status"] = string(*params.Status)
	}
	if params.AssignedTo != nil {
		filter["assignedTo"] = params.AssignedTo.String()
	}
	if params.VisibleTo != nil {
		actor := params.VisibleTo.String()
		filter["$or"] = bson.A{bson.M{"uploadedBy": actor}, bson.M{"assignedTo": actor}}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((params.Page - 1) * params.PageSize)).
		SetLimit(int64(params.PageSize))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return ListResult{}, err
	}
	defer cursor.Close(ctx)

	items := make([]domain.Lead, 0, params.PageSize)
	for cursor.Next(ctx) {
		var doc leadDocument
		if err := cursor.Decode(&doc); err != nil {
			return ListResult{}, err
		}
		items = append(items, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return ListResult{}, err
	}

	return ListResult{Items: items, Total: total}, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.Status) (domain.Lead, error) {
	return r.findOneAndSet(ctx, bson.M{"_id": id}, bson.M{"status": string(status)})
}

// SetAssignee overwrites the owner unconditionally. This is the single-lead
// reassignment path and does not consult the assignment ledger.
func (r *Repository) SetAssignee(ctx context.Context, id primitive.ObjectID, assignee *uuid.UUID) (domain.Lead, error) {
	return r.findOneAndSet(ctx, bson.M{"_id": id}, bson.M{"assignedTo": ownerString(assignee)})
}

func (r *Repository) findOneAndSet(ctx context.Context, filter bson.M, set bson.M) (domain.Lead, error) {
	set["updatedAt"] = r.now().UTC()

	var doc leadDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return doc.toDomain(), nil
}

// scopeFilter is BulkAssignScope.Allows expressed as a query. A null
// assignedTo matches both explicit nulls and missing fields.
func scopeFilter(scope domain.BulkAssignScope) bson.M {
	return bson.M{
		"uploadedBy": scope.UploadedBy.String(),
		"status":     string(scope.Status),
		"assignedTo": nil,
	}
}

func (r *Repository) CountEligible(ctx context.Context, scope domain.BulkAssignScope) (int64, error) {
	return r.coll.CountDocuments(ctx, scopeFilter(scope))
}

// FindEligibleIDs returns up to limit eligible lead ids, oldest first.
func (r *Repository) FindEligibleIDs(ctx context.Context, scope domain.BulkAssignScope, limit int) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, scopeFilter(scope), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ids := make([]primitive.ObjectID, 0, limit)
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

// Claim assigns the lead to assignee only if it is still inside scope.
// It reports false when another writer got there first.
func (r *Repository) Claim(ctx context.Context, id primitive.ObjectID, scope domain.BulkAssignScope, assignee uuid.UUID) (bool, error) {
	filter := scopeFilter(scope)
	filter["_id"] = id

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"assignedTo": assignee.String(),
		"updatedAt":  r.now().UTC(),
	}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Release undoes a claim, provided the lead is still held by assignee.
func (r *Repository) Release(ctx context.Context, id primitive.ObjectID, assignee uuid.UUID) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "assignedTo": assignee.String()},
		bson.M{"$set": bson.M{"assignedTo": nil, "updatedAt": r.now().UTC()}},
	)
	return err
}

// RestoreOwner sets the owner back to restoreTo (nil clears it) when the lead
// is still held by expected. It reports false when the lead moved on.
func (r *Repository) RestoreOwner(ctx context.Context, id primitive.ObjectID, expected uuid.UUID, restoreTo *uuid.UUID) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "assignedTo": expected.String()},
		bson.M{"$set": bson.M{"assignedTo": ownerString(restoreTo), "updatedAt": r.now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
