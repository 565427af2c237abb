package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ledgerCollection = "lead_assignment_history"

// MongoLedger stores ledger entries in their own collection. Entries are only
// ever inserted.
type MongoLedger struct {
	coll *mongo.Collection
}

func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{coll: db.Collection(ledgerCollection)}
}

type entryDocument struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	BatchID            string             `bson:"batchId"`
	LeadID             primitive.ObjectID `bson:"leadId"`
	ActionType         string             `bson:"actionType"`
	PreviousAssignedTo *string            `bson:"previousAssignedTo"`
	NewAssignedTo      *string            `bson:"newAssignedTo"`
	UpdatedBy          string             `bson:"updatedBy"`
	CreatedAt          time.Time          `bson:"createdAt"`
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseUUIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

func (d entryDocument) toEntry() Entry {
	e := Entry{
		ID:                 d.ID,
		BatchID:            d.BatchID,
		LeadID:             d.LeadID,
		ActionType:         ActionType(d.ActionType),
		PreviousAssignedTo: parseUUIDPtr(d.PreviousAssignedTo),
		NewAssignedTo:      parseUUIDPtr(d.NewAssignedTo),
		CreatedAt:          d.CreatedAt,
	}
	if id, err := uuid.Parse(d.UpdatedBy); err == nil {
		e.UpdatedBy = id
	}
	return e
}

// EnsureIndexes creates the uniqueness guard and the history lookup index.
func (l *MongoLedger) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batchId", Value: 1}, {Key: "leadId", Value: 1}, {Key: "actionType", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("batch_lead_action_unique"),
		},
		{
			Keys: bson.D{{Key: "updatedBy", Value: 1}, {Key: "actionType", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	return err
}

func (l *MongoLedger) Append(ctx context.Context, e Entry) (bool, error) {
	doc := entryDocument{
		BatchID:            e.BatchID,
		LeadID:             e.LeadID,
		ActionType:         string(e.ActionType),
		PreviousAssignedTo: uuidPtrString(e.PreviousAssignedTo),
		NewAssignedTo:      uuidPtrString(e.NewAssignedTo),
		UpdatedBy:          e.UpdatedBy.String(),
		CreatedAt:          e.CreatedAt.UTC(),
	}

	if _, err := l.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return true, nil
}

func (l *MongoLedger) Count(ctx context.Context, batchID string, action ActionType) (int64, error) {
	return l.coll.CountDocuments(ctx, bson.M{"batchId": batchID, "actionType": string(action)})
}

func (l *MongoLedger) Entries(ctx context.Context, batchID string, action ActionType) ([]Entry, error) {
	cursor, err := l.coll.Find(ctx,
		bson.M{"batchId": batchID, "actionType": string(action)},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := make([]Entry, 0)
	for cursor.Next(ctx) {
		var doc entryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		entries = append(entries, doc.toEntry())
	}
	return entries, cursor.Err()
}

type batchGroup struct {
	BatchID    string    `bson:"_id"`
	LeadCount  int64     `bson:"leadCount"`
	CreatedAt  time.Time `bson:"createdAt"`
	AssignedTo string    `bson:"assignedTo"`
	UpdatedBy  string    `bson:"updatedBy"`
	IsReverted bool      `bson:"isReverted"`
}

func groupStage() bson.D {
	return bson.D{{Key: "$group", Value: bson.M{
		"_id":        "$batchId",
		"leadCount":  bson.M{"$sum": 1},
		"createdAt":  bson.M{"$min": "$createdAt"},
		"assignedTo": bson.M{"$first": "$newAssignedTo"},
		"updatedBy":  bson.M{"$first": "$updatedBy"},
	}}}
}

func (l *MongoLedger) FindBatch(ctx context.Context, batchID string, actor uuid.UUID) (BatchInfo, bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"batchId":    batchID,
			"actionType": string(ActionAssign),
			"updatedBy":  actor.String(),
		}}},
		groupStage(),
	}

	cursor, err := l.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return BatchInfo{}, false, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		return BatchInfo{}, false, cursor.Err()
	}

	var group batchGroup
	if err := cursor.Decode(&group); err != nil {
		return BatchInfo{}, false, err
	}
	info := BatchInfo{BatchID: group.BatchID, CreatedAt: group.CreatedAt, LeadCount: group.LeadCount}
	if id, err := uuid.Parse(group.AssignedTo); err == nil {
		info.AssignedTo = id
	}
	return info, true, nil
}

// History groups the actor's ASSIGN entries by batch, newest batch first, and
// flags batches that have at least one REVERT entry.
func (l *MongoLedger) History(ctx context.Context, actor uuid.UUID, page, limit int) ([]BatchSummary, int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"actionType": string(ActionAssign),
			"updatedBy":  actor.String(),
		}}},
		groupStage(),
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$facet", Value: bson.M{
			"total": bson.A{bson.M{"$count": "n"}},
			"items": bson.A{
				bson.M{"$skip": int64(page-1) * int64(limit)},
				bson.M{"$limit": int64(limit)},
				bson.M{"$lookup": bson.M{
					"from": ledgerCollection,
					"let":  bson.M{"batch": "$_id"},
					"pipeline": bson.A{
						bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
							bson.M{"$eq": bson.A{"$batchId", "$$batch"}},
							bson.M{"$eq": bson.A{"$actionType", string(ActionRevert)}},
						}}}},
						bson.M{"$limit": 1},
					},
					"as": "reverts",
				}},
				bson.M{"$addFields": bson.M{"isReverted": bson.M{"$gt": bson.A{bson.M{"$size": "$reverts"}, 0}}}},
				bson.M{"$project": bson.M{"reverts": 0}},
			},
		}}},
	}

	cursor, err := l.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var result []struct {
		Total []struct {
			N int64 `bson:"n"`
		} `bson:"total"`
		Items []batchGroup `bson:"items"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return nil, 0, err
	}
	if len(result) == 0 {
		return []BatchSummary{}, 0, nil
	}

	var total int64
	if len(result[0].Total) > 0 {
		total = result[0].Total[0].N
	}

	summaries := make([]BatchSummary, 0, len(result[0].Items))
	for _, group := range result[0].Items {
		s := BatchSummary{
			BatchID:    group.BatchID,
			LeadCount:  group.LeadCount,
			CreatedAt:  group.CreatedAt,
			IsReverted: group.IsReverted,
		}
		if id, err := uuid.Parse(group.AssignedTo); err == nil {
			s.AssignedTo = id
		}
		if id, err := uuid.Parse(group.UpdatedBy); err == nil {
			s.PerformedBy = id
		}
		summaries = append(summaries, s)
	}
	return summaries, total, nil
}
