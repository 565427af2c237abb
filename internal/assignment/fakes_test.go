package assignment

import (
	"context"
	"sort"
	"sync"
	"time"

	"brokerage_backoffice/internal/employees"
	"brokerage_backoffice/internal/leads/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeLeads struct {
	mu    sync.Mutex
	order []primitive.ObjectID
	byID  map[primitive.ObjectID]domain.Lead

	// beforeClaim runs ahead of every claim, outside the lock.
	beforeClaim func(id primitive.ObjectID)
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{byID: map[primitive.ObjectID]domain.Lead{}}
}

func (f *fakeLeads) add(n int, uploadedBy uuid.UUID, status domain.Status) []primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]primitive.ObjectID, 0, n)
	for i := 0; i < n; i++ {
		id := primitive.NewObjectID()
		f.byID[id] = domain.Lead{
			ID:         id,
			Name:       "Lead " + id.Hex()[18:],
			Phone:      "+919876543210",
			Status:     status,
			UploadedBy: uploadedBy,
		}
		f.order = append(f.order, id)
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeLeads) get(id primitive.ObjectID) domain.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeLeads) setOwner(id primitive.ObjectID, owner *uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.byID[id]
	lead.AssignedTo = owner
	f.byID[id] = lead
}

func (f *fakeLeads) CountEligible(_ context.Context, scope domain.BulkAssignScope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range f.order {
		if scope.Allows(f.byID[id]) {
			n++
		}
	}
	return n, nil
}

func (f *fakeLeads) FindEligibleIDs(_ context.Context, scope domain.BulkAssignScope, limit int) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []primitive.ObjectID{}
	for _, id := range f.order {
		if len(out) == limit {
			break
		}
		if scope.Allows(f.byID[id]) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeLeads) Claim(_ context.Context, id primitive.ObjectID, scope domain.BulkAssignScope, assignee uuid.UUID) (bool, error) {
	if f.beforeClaim != nil {
		f.beforeClaim(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.byID[id]
	if !ok || !scope.Allows(lead) {
		return false, nil
	}
	owner := assignee
	lead.AssignedTo = &owner
	f.byID[id] = lead
	return true, nil
}

func (f *fakeLeads) Release(_ context.Context, id primitive.ObjectID, assignee uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.byID[id]
	if lead.IsOwnedBy(assignee) {
		lead.AssignedTo = nil
		f.byID[id] = lead
	}
	return nil
}

func (f *fakeLeads) RestoreOwner(_ context.Context, id primitive.ObjectID, expected uuid.UUID, restoreTo *uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.byID[id]
	if !ok || !lead.IsOwnedBy(expected) {
		return false, nil
	}
	lead.AssignedTo = restoreTo
	f.byID[id] = lead
	return true, nil
}

func (f *fakeLeads) GetByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]domain.Lead{}
	for _, id := range ids {
		if lead, ok := f.byID[id]; ok {
			out[id] = lead
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []Entry

	// appendErr, when set, may fail an append.
	appendErr func(e Entry) error
}

func (l *fakeLedger) Append(_ context.Context, e Entry) (bool, error) {
	if l.appendErr != nil {
		if err := l.appendErr(e); err != nil {
			return false, err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.entries {
		if existing.BatchID == e.BatchID && existing.LeadID == e.LeadID && existing.ActionType == e.ActionType {
			return false, nil
		}
	}
	e.ID = primitive.NewObjectID()
	l.entries = append(l.entries, e)
	return true, nil
}

func (l *fakeLedger) Count(_ context.Context, batchID string, action ActionType) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, e := range l.entries {
		if e.BatchID == batchID && e.ActionType == action {
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) Entries(_ context.Context, batchID string, action ActionType) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Entry{}
	for _, e := range l.entries {
		if e.BatchID == batchID && e.ActionType == action {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedger) all() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *fakeLedger) summaries(actor uuid.UUID) []BatchSummary {
	byBatch := map[string]*BatchSummary{}
	reverted := map[string]bool{}
	var order []string
	for _, e := range l.entries {
		if e.ActionType == ActionRevert {
			reverted[e.BatchID] = true
			continue
		}
		if e.UpdatedBy != actor {
			continue
		}
		s, ok := byBatch[e.BatchID]
		if !ok {
			s = &BatchSummary{BatchID: e.BatchID, CreatedAt: e.CreatedAt, PerformedBy: e.UpdatedBy}
			if e.NewAssignedTo != nil {
				s.AssignedTo = *e.NewAssignedTo
			}
			byBatch[e.BatchID] = s
			order = append(order, e.BatchID)
		}
		s.LeadCount++
		if e.CreatedAt.Before(s.CreatedAt) {
			s.CreatedAt = e.CreatedAt
		}
	}

	out := make([]BatchSummary, 0, len(order))
	for _, id := range order {
		s := *byBatch[id]
		s.IsReverted = reverted[id]
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (l *fakeLedger) FindBatch(_ context.Context, batchID string, actor uuid.UUID) (BatchInfo, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.summaries(actor) {
		if s.BatchID == batchID {
			return BatchInfo{BatchID: s.BatchID, CreatedAt: s.CreatedAt, AssignedTo: s.AssignedTo, LeadCount: s.LeadCount}, true, nil
		}
	}
	return BatchInfo{}, false, nil
}

func (l *fakeLedger) History(_ context.Context, actor uuid.UUID, page, limit int) ([]BatchSummary, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.summaries(actor)
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

// seedBatch writes n ASSIGN entries for leads claimed by assignee.
func (l *fakeLedger) seedBatch(batchID string, actor, assignee uuid.UUID, leads []primitive.ObjectID, at time.Time) {
	for _, id := range leads {
		owner := assignee
		_, _ = l.Append(context.Background(), Entry{
			BatchID:       batchID,
			LeadID:        id,
			ActionType:    ActionAssign,
			NewAssignedTo: &owner,
			UpdatedBy:     actor,
			CreatedAt:     at,
		})
	}
}

type fakeDirectory map[uuid.UUID]employees.Employee

func (d fakeDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := d[id]
	return ok, nil
}

func (d fakeDirectory) Lookup(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]employees.Employee, error) {
	out := map[uuid.UUID]employees.Employee{}
	for _, id := range ids {
		if e, ok := d[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type fakeArchive struct {
	bucket string
	key    string
	data   []byte
	err    error
}

func (a *fakeArchive) Put(_ context.Context, bucket, key, _ string, data []byte) error {
	a.bucket, a.key, a.data = bucket, key, data
	return a.err
}
