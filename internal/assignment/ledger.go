// Package assignment hands out batches of unowned leads to an employee in the
// background, records every ownership change in an append-only ledger and
// lets the batch creator undo a batch within 24 hours.
package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActionType tags a ledger entry.
type ActionType string

const (
	ActionAssign ActionType = "ASSIGN"
	ActionRevert ActionType = "REVERT"
)

// RevertWindow is measured from the batch's first ledger entry.
const RevertWindow = 24 * time.Hour

// Entry is one immutable ownership change.
type Entry struct {
	ID                 primitive.ObjectID
	BatchID            string
	LeadID             primitive.ObjectID
	ActionType         ActionType
	PreviousAssignedTo *uuid.UUID
	NewAssignedTo      *uuid.UUID
	UpdatedBy          uuid.UUID
	CreatedAt          time.Time
}

// BatchInfo describes the ASSIGN side of a batch.
type BatchInfo struct {
	BatchID    string
	CreatedAt  time.Time
	AssignedTo uuid.UUID
	LeadCount  int64
}

// BatchSummary is one row of an actor's assignment history.
type BatchSummary struct {
	BatchID     string
	LeadCount   int64
	CreatedAt   time.Time
	PerformedBy uuid.UUID
	AssignedTo  uuid.UUID
	IsReverted  bool
}

// Ledger is the append-only assignment history.
type Ledger interface {
	// Append stores e. It reports false when an entry for the same batch,
	// lead and action already exists.
	Append(ctx context.Context, e Entry) (bool, error)
	Count(ctx context.Context, batchID string, action ActionType) (int64, error)
	Entries(ctx context.Context, batchID string, action ActionType) ([]Entry, error)
	// FindBatch looks for ASSIGN entries of batchID created by actor.
	FindBatch(ctx context.Context, batchID string, actor uuid.UUID) (BatchInfo, bool, error)
	History(ctx context.Context, actor uuid.UUID, page, limit int) ([]BatchSummary, int64, error)
}
