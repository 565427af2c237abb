package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/internal/queue"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (f *fixture) bulkPayload(batchID string, limit int) queue.BulkAssignPayload {
	return queue.BulkAssignPayload{
		BatchID:   batchID,
		Limit:     limit,
		AssignTo:  f.assignee.String(),
		Status:    string(domain.StatusNew),
		UpdatedBy: f.actor.String(),
	}
}

func TestProcessBulkAssignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.leads.add(5, f.actor, domain.StatusNew)
	payload := f.bulkPayload(uuid.NewString(), 3)

	require.NoError(t, f.proc.ProcessBulkAssign(context.Background(), payload))
	first := f.ledger.all()
	require.Len(t, first, 3)

	owners := map[primitive.ObjectID]*uuid.UUID{}
	for _, e := range first {
		owners[e.LeadID] = f.leads.get(e.LeadID).AssignedTo
	}

	require.NoError(t, f.proc.ProcessBulkAssign(context.Background(), payload))
	assert.Equal(t, first, f.ledger.all())
	for id, owner := range owners {
		assert.Equal(t, owner, f.leads.get(id).AssignedTo)
	}

	left, err := f.leads.CountEligible(context.Background(), domain.NewBulkAssignScope(f.actor, domain.StatusNew))
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)
}

func TestProcessBulkAssignRetryTopsUp(t *testing.T) {
	f := newFixture(t)
	f.leads.add(4, f.actor, domain.StatusNew)
	payload := f.bulkPayload(uuid.NewString(), 4)

	calls := 0
	f.ledger.appendErr = func(Entry) error {
		calls++
		if calls == 3 {
			return errors.New("write concern timeout")
		}
		return nil
	}

	err := f.proc.ProcessBulkAssign(context.Background(), payload)
	require.Error(t, err)
	assert.Len(t, f.ledger.all(), 2)

	owned := 0
	for _, id := range f.leads.order {
		if f.leads.get(id).IsOwnedBy(f.assignee) {
			owned++
		}
	}
	assert.Equal(t, 2, owned, "unlogged claim must be released")

	require.NoError(t, f.proc.ProcessBulkAssign(context.Background(), payload))
	assert.Len(t, f.ledger.all(), 4)
}

func TestProcessBulkAssignSkipsLostRaces(t *testing.T) {
	f := newFixture(t)
	ids := f.leads.add(3, f.actor, domain.StatusNew)
	rival := uuid.New()

	f.leads.beforeClaim = func(id primitive.ObjectID) {
		if id == ids[0] {
			f.leads.setOwner(id, &rival)
		}
	}

	require.NoError(t, f.proc.ProcessBulkAssign(context.Background(), f.bulkPayload(uuid.NewString(), 3)))

	entries := f.ledger.all()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEqual(t, ids[0], e.LeadID)
	}
	assert.True(t, f.leads.get(ids[0]).IsOwnedBy(rival))
}

func TestProcessBulkAssignRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)

	cases := map[string]func(p *queue.BulkAssignPayload){
		"batch":    func(p *queue.BulkAssignPayload) { p.BatchID = "x" },
		"assignee": func(p *queue.BulkAssignPayload) { p.AssignTo = "x" },
		"actor":    func(p *queue.BulkAssignPayload) { p.UpdatedBy = "" },
		"status":   func(p *queue.BulkAssignPayload) { p.Status = "ARCHIVED" },
		"limit":    func(p *queue.BulkAssignPayload) { p.Limit = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := f.bulkPayload(uuid.NewString(), 1)
			mutate(&p)
			err := f.proc.ProcessBulkAssign(context.Background(), p)
			assert.True(t, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestHandleBulkAssignGarbageSkipsRetry(t *testing.T) {
	f := newFixture(t)
	err := f.proc.HandleBulkAssign(context.Background(), asynq.NewTask(queue.TaskBulkAssignLeads, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestProcessRevertRestoresAndAppends(t *testing.T) {
	f := newFixture(t)
	f.leads.add(3, f.actor, domain.StatusNew)

	resp, err := f.svc.BulkAssign(context.Background(), f.actor, BulkAssignRequest{
		Limit:    3,
		AssignTo: f.assignee.String(),
		Status:   "NEW",
	})
	require.NoError(t, err)
	f.runBulkAssign(t, f.jobs.Snapshot()[0])
	assigns := f.ledger.all()
	require.Len(t, assigns, 3)

	f.now = f.now.Add(time.Hour)
	_, err = f.svc.Revert(context.Background(), f.actor, RevertRequest{BatchID: resp.BatchID})
	require.NoError(t, err)

	var payload queue.RevertBulkAssignPayload
	require.NoError(t, f.jobs.Snapshot()[1].Decode(&payload))
	require.NoError(t, f.proc.ProcessRevert(context.Background(), payload))

	entries := f.ledger.all()
	require.Len(t, entries, 6)
	assert.Equal(t, assigns, entries[:3], "ASSIGN entries stay untouched")
	for _, e := range entries[3:] {
		assert.Equal(t, ActionRevert, e.ActionType)
		assert.Equal(t, resp.BatchID, e.BatchID)
		require.NotNil(t, e.PreviousAssignedTo)
		assert.Equal(t, f.assignee, *e.PreviousAssignedTo)
		assert.Nil(t, e.NewAssignedTo)
		assert.Equal(t, f.actor, e.UpdatedBy)
		assert.True(t, f.leads.get(e.LeadID).IsUnassigned())
	}

	history, err := f.svc.History(context.Background(), f.actor, HistoryRequest{})
	require.NoError(t, err)
	require.Len(t, history.Data, 1)
	assert.True(t, history.Data[0].IsReverted)
	assert.Equal(t, int64(3), history.Data[0].LeadCount)

	require.NoError(t, f.proc.ProcessRevert(context.Background(), payload))
	assert.Len(t, f.ledger.all(), 6)
}

func TestProcessRevertSkipsReassignedLeads(t *testing.T) {
	f := newFixture(t)
	ids := f.leads.add(2, f.actor, domain.StatusNew)
	batchID := uuid.NewString()
	require.NoError(t, f.proc.ProcessBulkAssign(context.Background(), f.bulkPayload(batchID, 2)))

	other := uuid.New()
	f.leads.setOwner(ids[1], &other)

	payload := queue.RevertBulkAssignPayload{BatchID: batchID, RevertedBy: f.actor.String()}
	require.NoError(t, f.proc.ProcessRevert(context.Background(), payload))

	reverts, err := f.ledger.Entries(context.Background(), batchID, ActionRevert)
	require.NoError(t, err)
	require.Len(t, reverts, 1)
	assert.Equal(t, ids[0], reverts[0].LeadID)
	assert.True(t, f.leads.get(ids[0]).IsUnassigned())
	assert.True(t, f.leads.get(ids[1]).IsOwnedBy(other))
}

func TestProcessRevertResumesAfterFailedLog(t *testing.T) {
	f := newFixture(t)
	ids := f.leads.add(2, f.actor, domain.StatusNew)
	batchID := uuid.NewString()
	require.NoError(t, f.proc.ProcessBulkAssign(context.Background(), f.bulkPayload(batchID, 2)))

	failed := false
	f.ledger.appendErr = func(e Entry) error {
		if e.ActionType == ActionRevert && e.LeadID == ids[1] && !failed {
			failed = true
			return errors.New("primary stepped down")
		}
		return nil
	}

	payload := queue.RevertBulkAssignPayload{BatchID: batchID, RevertedBy: f.actor.String()}
	require.Error(t, f.proc.ProcessRevert(context.Background(), payload))
	assert.True(t, f.leads.get(ids[1]).IsUnassigned(), "owner restored before the log failed")

	require.NoError(t, f.proc.ProcessRevert(context.Background(), payload))
	reverts, err := f.ledger.Entries(context.Background(), batchID, ActionRevert)
	require.NoError(t, err)
	assert.Len(t, reverts, 2)
}

func TestProcessRevertRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)

	err := f.proc.ProcessRevert(context.Background(), queue.RevertBulkAssignPayload{BatchID: "nope", RevertedBy: f.actor.String()})
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = f.proc.ProcessRevert(context.Background(), queue.RevertBulkAssignPayload{BatchID: uuid.NewString(), RevertedBy: "nope"})
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
