package repository

import (
	"context"

	"brokerage_backoffice/internal/leads/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeadReader provides read-only access to leads.
type LeadReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (domain.Lead, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Lead, error)
	List(ctx context.Context, params ListParams) (ListResult, error)
}

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.Status) (domain.Lead, error)
	SetAssignee(ctx context.Context, id primitive.ObjectID, assignee *uuid.UUID) (domain.Lead, error)
}

// BulkAssignStore holds the conditional ownership updates used by bulk
// assignment and its revert. Each returns false when the guard did not match.
type BulkAssignStore interface {
	CountEligible(ctx context.Context, scope domain.BulkAssignScope) (int64, error)
	FindEligibleIDs(ctx context.Context, scope domain.BulkAssignScope, limit int) ([]primitive.ObjectID, error)
	Claim(ctx context.Context, id primitive.ObjectID, scope domain.BulkAssignScope, assignee uuid.UUID) (bool, error)
	Release(ctx context.Context, id primitive.ObjectID, assignee uuid.UUID) error
	RestoreOwner(ctx context.Context, id primitive.ObjectID, expected uuid.UUID, restoreTo *uuid.UUID) (bool, error)
}

// LeadsRepository is the full lead store.
type LeadsRepository interface {
	LeadReader
	LeadWriter
	BulkAssignStore
	EnsureIndexes(ctx context.Context) error
}

var _ LeadsRepository = (*Repository)(nil)
