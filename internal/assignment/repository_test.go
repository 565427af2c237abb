package assignment

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupTestLedger returns a MongoLedger on a scratch database of
// MONGO_TEST_URI that is dropped when the test ends.
func setupTestLedger(t *testing.T) *MongoLedger {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("ledger_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	ledger := NewMongoLedger(db)
	require.NoError(t, ledger.EnsureIndexes(context.Background()))
	return ledger
}

func appendBatch(t *testing.T, ledger *MongoLedger, batchID string, actor, assignee uuid.UUID, n int, at time.Time) []primitive.ObjectID {
	t.Helper()
	ids := make([]primitive.ObjectID, 0, n)
	for i := 0; i < n; i++ {
		id := primitive.NewObjectID()
		owner := assignee
		inserted, err := ledger.Append(context.Background(), Entry{
			BatchID:       batchID,
			LeadID:        id,
			ActionType:    ActionAssign,
			NewAssignedTo: &owner,
			UpdatedBy:     actor,
			CreatedAt:     at.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		require.True(t, inserted)
		ids = append(ids, id)
	}
	return ids
}

func TestMongoLedgerAppendIsUniquePerAction(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()
	actor, assignee := uuid.New(), uuid.New()
	batchID := uuid.NewString()
	ids := appendBatch(t, ledger, batchID, actor, assignee, 1, time.Now().UTC())

	owner := assignee
	inserted, err := ledger.Append(ctx, Entry{BatchID: batchID, LeadID: ids[0], ActionType: ActionAssign, NewAssignedTo: &owner, UpdatedBy: actor, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = ledger.Append(ctx, Entry{BatchID: batchID, LeadID: ids[0], ActionType: ActionRevert, PreviousAssignedTo: &owner, UpdatedBy: actor, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, inserted)

	assigns, err := ledger.Count(ctx, batchID, ActionAssign)
	require.NoError(t, err)
	assert.Equal(t, int64(1), assigns)

	reverts, err := ledger.Entries(ctx, batchID, ActionRevert)
	require.NoError(t, err)
	require.Len(t, reverts, 1)
	assert.Nil(t, reverts[0].NewAssignedTo)
	assert.Equal(t, assignee, *reverts[0].PreviousAssignedTo)
}

func TestMongoLedgerFindBatchScopedToCreator(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()
	actor, assignee := uuid.New(), uuid.New()
	batchID := uuid.NewString()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	appendBatch(t, ledger, batchID, actor, assignee, 3, start)

	info, found, err := ledger.FindBatch(ctx, batchID, actor)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), info.LeadCount)
	assert.Equal(t, assignee, info.AssignedTo)
	assert.True(t, start.Equal(info.CreatedAt))

	_, found, err = ledger.FindBatch(ctx, batchID, uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMongoLedgerHistoryFlagsRevertedBatches(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()
	actor, assignee, other := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	older, newer := uuid.NewString(), uuid.NewString()
	olderIDs := appendBatch(t, ledger, older, actor, assignee, 2, start)
	appendBatch(t, ledger, newer, actor, assignee, 3, start.Add(time.Hour))
	appendBatch(t, ledger, uuid.NewString(), other, assignee, 1, start.Add(2*time.Hour))

	owner := assignee
	_, err := ledger.Append(ctx, Entry{BatchID: older, LeadID: olderIDs[0], ActionType: ActionRevert, PreviousAssignedTo: &owner, UpdatedBy: actor, CreatedAt: start.Add(3 * time.Hour)})
	require.NoError(t, err)

	items, total, err := ledger.History(ctx, actor, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	assert.Equal(t, newer, items[0].BatchID)
	assert.Equal(t, int64(3), items[0].LeadCount)
	assert.False(t, items[0].IsReverted)
	assert.Equal(t, actor, items[0].PerformedBy)
	assert.Equal(t, assignee, items[0].AssignedTo)

	assert.Equal(t, older, items[1].BatchID)
	assert.Equal(t, int64(2), items[1].LeadCount, "REVERT entries are not counted")
	assert.True(t, items[1].IsReverted)

	page2, total, err := ledger.History(ctx, actor, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page2, 1)
	assert.Equal(t, older, page2[0].BatchID)

	empty, total, err := ledger.History(ctx, uuid.New(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, empty)
}
