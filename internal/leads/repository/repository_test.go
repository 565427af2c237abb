package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"brokerage_backoffice/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupTestMongo returns a scratch database on MONGO_TEST_URI that is dropped
// when the test ends.
func setupTestMongo(t *testing.T) *mongo.Database {
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

	db := client.Database("leads_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo := New(setupTestMongo(t))
	require.NoError(t, repo.EnsureIndexes(context.Background()))
	return repo
}

func createLead(t *testing.T, repo *Repository, uploader uuid.UUID, status domain.Status, owner *uuid.UUID) domain.Lead {
	t.Helper()
	lead, err := repo.Create(context.Background(), domain.Lead{
		Name:       "Anjali Verma",
		Phone:      "+919812345678",
		Status:     status,
		AssignedTo: owner,
		UploadedBy: uploader,
	})
	require.NoError(t, err)
	return lead
}

func TestEligibilityMatchesNullAndMissingOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	actor, other := uuid.New(), uuid.New()

	withNull := createLead(t, repo, actor, domain.StatusNew, nil)
	_, err := repo.coll.InsertOne(ctx, bson.M{
		"name":       "Legacy Lead",
		"phone":      "+919800000000",
		"status":     string(domain.StatusNew),
		"uploadedBy": actor.String(),
		"createdAt":  time.Now().UTC().Add(time.Minute),
	})
	require.NoError(t, err)
	createLead(t, repo, actor, domain.StatusNew, &other)
	createLead(t, repo, actor, domain.StatusContacted, nil)
	createLead(t, repo, other, domain.StatusNew, nil)

	scope := domain.NewBulkAssignScope(actor, domain.StatusNew)
	count, err := repo.CountEligible(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ids, err := repo.FindEligibleIDs(ctx, scope, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, withNull.ID, ids[0], "oldest first")
}

func TestClaimIsConditional(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	actor, first, second := uuid.New(), uuid.New(), uuid.New()
	lead := createLead(t, repo, actor, domain.StatusNew, nil)
	scope := domain.NewBulkAssignScope(actor, domain.StatusNew)

	ok, err := repo.Claim(ctx, lead.ID, scope, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, lead.ID, scope, second)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOwnedBy(first))

	ok, err = repo.Claim(ctx, lead.ID, domain.NewBulkAssignScope(uuid.New(), domain.StatusNew), second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseAndRestoreOwnerGuardOnCurrentOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	actor, assignee, intruder := uuid.New(), uuid.New(), uuid.New()
	lead := createLead(t, repo, actor, domain.StatusNew, nil)
	scope := domain.NewBulkAssignScope(actor, domain.StatusNew)

	ok, err := repo.Claim(ctx, lead.ID, scope, assignee)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Release(ctx, lead.ID, intruder))
	got, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOwnedBy(assignee))

	_, err = repo.SetAssignee(ctx, lead.ID, &intruder)
	require.NoError(t, err)
	moved, err := repo.RestoreOwner(ctx, lead.ID, assignee, nil)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = repo.RestoreOwner(ctx, lead.ID, intruder, nil)
	require.NoError(t, err)
	assert.True(t, moved)
	got, err = repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, got.IsUnassigned())
}

func TestGetByIDMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}
