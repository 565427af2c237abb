package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brokerage_backoffice/internal/employees"
	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/apperr"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/metrics"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	jobAttempts = 3

	defaultHistoryPage  = 1
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	maxHistoryPage      = 10000

	msgQueueUnavailable = "job queue unavailable"
)

// LeadStore is the slice of lead storage the assignment engine touches.
type LeadStore interface {
	CountEligible(ctx context.Context, scope domain.BulkAssignScope) (int64, error)
	FindEligibleIDs(ctx context.Context, scope domain.BulkAssignScope, limit int) ([]primitive.ObjectID, error)
	Claim(ctx context.Context, id primitive.ObjectID, scope domain.BulkAssignScope, assignee uuid.UUID) (bool, error)
	Release(ctx context.Context, id primitive.ObjectID, assignee uuid.UUID) error
	RestoreOwner(ctx context.Context, id primitive.ObjectID, expected uuid.UUID, restoreTo *uuid.UUID) (bool, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Lead, error)
}

// Directory resolves employees.
type Directory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]employees.Employee, error)
}

// Archive keeps a copy of generated reports.
type Archive interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) error
}

type Service struct {
	leads     LeadStore
	ledger    Ledger
	jobs      queue.Enqueuer
	directory Directory
	archive   Archive
	bucket    string
	log       *logger.Logger
	now       func() time.Time
}

func NewService(leads LeadStore, ledger Ledger, jobs queue.Enqueuer, directory Directory, log *logger.Logger) *Service {
	return &Service{
		leads:     leads,
		ledger:    ledger,
		jobs:      jobs,
		directory: directory,
		log:       log,
		now:       time.Now,
	}
}

// WithArchive uploads every generated batch report to bucket.
func (s *Service) WithArchive(archive Archive, bucket string) *Service {
	s.archive = archive
	s.bucket = bucket
	return s
}

// CheckAvailability counts the leads the actor could hand out right now.
func (s *Service) CheckAvailability(ctx context.Context, actor uuid.UUID, rawStatus string) (AvailabilityResponse, error) {
	if strings.TrimSpace(rawStatus) == "" {
		return AvailabilityResponse{}, apperr.Validation("status is required")
	}
	status, ok := domain.ParseStatus(rawStatus)
	if !ok {
		return AvailabilityResponse{}, apperr.Validation("invalid status")
	}

	count, err := s.leads.CountEligible(ctx, domain.NewBulkAssignScope(actor, status))
	if err != nil {
		return AvailabilityResponse{}, err
	}
	return AvailabilityResponse{Success: true, Count: count}, nil
}

// BulkAssign validates the request, fixes the batch size and queues the
// batch. The leads themselves are claimed by the worker.
func (s *Service) BulkAssign(ctx context.Context, actor uuid.UUID, req BulkAssignRequest) (BulkAssignResponse, error) {
	if req.Limit <= 0 || strings.TrimSpace(req.AssignTo) == "" || strings.TrimSpace(req.Status) == "" {
		return BulkAssignResponse{}, apperr.Validation("limit, assignTo and status are required")
	}

	assignee, err := uuid.Parse(strings.TrimSpace(req.AssignTo))
	if err != nil {
		return BulkAssignResponse{}, apperr.Validation("assignTo must be an employee id")
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return BulkAssignResponse{}, apperr.Validation("invalid status")
	}

	exists, err := s.directory.Exists(ctx, assignee)
	if err != nil {
		return BulkAssignResponse{}, err
	}
	if !exists {
		return BulkAssignResponse{}, apperr.NotFound("assignee not found")
	}

	available, err := s.leads.CountEligible(ctx, domain.NewBulkAssignScope(actor, status))
	if err != nil {
		return BulkAssignResponse{}, err
	}
	if available == 0 {
		return BulkAssignResponse{}, apperr.NotFound("no unassigned leads found for this status")
	}

	actual := int64(req.Limit)
	message := fmt.Sprintf("Assigning %d leads", actual)
	if available < actual {
		actual = available
		message = fmt.Sprintf("Requested %d leads, found %d, assigning %d", req.Limit, available, actual)
	}

	batchID := uuid.NewString()
	payload := queue.BulkAssignPayload{
		BatchID:        batchID,
		Limit:          int(actual),
		AssignTo:       assignee.String(),
		Status:         string(status),
		UpdatedBy:      actor.String(),
		AvailableCount: available,
	}
	if _, err := s.jobs.Enqueue(ctx, queue.TaskBulkAssignLeads, payload, queue.JobOptions{
		Attempts: jobAttempts,
		TaskID:   "bulk-assign:" + batchID,
	}); err != nil {
		return BulkAssignResponse{}, apperr.Unavailable(msgQueueUnavailable, err)
	}

	metrics.RecordBulkAssignBatch()
	s.log.WithContext(ctx).Info("bulk assign queued",
		"batchId", batchID,
		"requested", req.Limit,
		"available", available,
		"limit", actual,
		"assignTo", assignee.String(),
	)

	return BulkAssignResponse{Success: true, Message: message, BatchID: batchID}, nil
}

// Revert queues the undo of a batch. Only the batch creator may revert it,
// and only while the batch is younger than RevertWindow.
func (s *Service) Revert(ctx context.Context, actor uuid.UUID, req RevertRequest) (RevertResponse, error) {
	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		return RevertResponse{}, apperr.Validation("batchId is required")
	}
	if _, err := uuid.Parse(batchID); err != nil {
		return RevertResponse{}, apperr.Validation("invalid batchId")
	}

	info, found, err := s.ledger.FindBatch(ctx, batchID, actor)
	if err != nil {
		return RevertResponse{}, err
	}
	if !found {
		return RevertResponse{}, apperr.Forbidden("you can only revert batches you created")
	}

	if s.now().Sub(info.CreatedAt) >= RevertWindow {
		return RevertResponse{}, apperr.Expired("revert window of 24 hours has passed")
	}

	reverted, err := s.ledger.Count(ctx, batchID, ActionRevert)
	if err != nil {
		return RevertResponse{}, err
	}
	if reverted >= info.LeadCount {
		return RevertResponse{}, apperr.Conflict("batch has already been reverted")
	}

	// A partially reverted batch is resumed: the job skips leads that
	// already carry a REVERT entry.
	payload := queue.RevertBulkAssignPayload{BatchID: batchID, RevertedBy: actor.String()}
	if _, err := s.jobs.Enqueue(ctx, queue.TaskRevertBulkAssign, payload, queue.JobOptions{
		Attempts: jobAttempts,
		TaskID:   "revert:" + batchID,
		Resubmit: true,
	}); err != nil {
		if errors.Is(err, queue.ErrDuplicate) {
			return RevertResponse{}, apperr.Conflict("revert already in progress")
		}
		return RevertResponse{}, apperr.Unavailable(msgQueueUnavailable, err)
	}

	s.log.WithContext(ctx).Info("bulk revert queued", "batchId", batchID, "leadCount", info.LeadCount)
	return RevertResponse{Success: true, Message: fmt.Sprintf("Reverting %d leads", info.LeadCount)}, nil
}

// History lists the batches the actor created, newest first.
func (s *Service) History(ctx context.Context, actor uuid.UUID, req HistoryRequest) (HistoryResponse, error) {
	page := req.Page
	if page < 1 {
		page = defaultHistoryPage
	}
	if page > maxHistoryPage {
		page = maxHistoryPage
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	batches, total, err := s.ledger.History(ctx, actor, page, limit)
	if err != nil {
		return HistoryResponse{}, err
	}

	ids := make([]uuid.UUID, 0, len(batches)*2)
	for _, b := range batches {
		ids = append(ids, b.PerformedBy, b.AssignedTo)
	}
	names, err := s.directory.Lookup(ctx, ids)
	if err != nil {
		return HistoryResponse{}, err
	}

	items := make([]HistoryItem, 0, len(batches))
	for _, b := range batches {
		items = append(items, HistoryItem{
			BatchID:     b.BatchID,
			LeadCount:   b.LeadCount,
			CreatedAt:   b.CreatedAt,
			PerformedBy: employeeRef(b.PerformedBy, names),
			AssignedTo:  employeeRef(b.AssignedTo, names),
			IsReverted:  b.IsReverted,
		})
	}

	return HistoryResponse{Success: true, Data: items, Total: total, Page: page, Limit: limit}, nil
}

func employeeRef(id uuid.UUID, names map[uuid.UUID]employees.Employee) EmployeeRef {
	ref := EmployeeRef{ID: id.String()}
	if e, ok := names[id]; ok {
		ref.Name = e.Name
	}
	return ref
}
