package followups

import (
	"context"
	"errors"
	"strings"
	"time"

	"brokerage_backoffice/internal/followups/reminders"
	leaddomain "brokerage_backoffice/internal/leads/domain"
	leadrepo "brokerage_backoffice/internal/leads/repository"
	"brokerage_backoffice/platform/apperr"
	"brokerage_backoffice/platform/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgLeadNotFound     = "lead not found"
	msgFollowUpNotFound = "follow-up not found"
	msgNotScheduled     = "follow-up is no longer scheduled"
)

type Store interface {
	Create(ctx context.Context, f FollowUp) (FollowUp, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (FollowUp, error)
	ListByLead(ctx context.Context, leadID primitive.ObjectID) ([]FollowUp, error)
	Reschedule(ctx context.Context, id primitive.ObjectID, at time.Time) (FollowUp, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status Status) (FollowUp, error)
}

type LeadReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (leaddomain.Lead, error)
}

// Scheduler enqueues the reminder jobs for one follow-up.
type Scheduler interface {
	ScheduleFollowUpNotifications(ctx context.Context, req reminders.Request) (reminders.Report, error)
}

type Service struct {
	store     Store
	leads     LeadReader
	scheduler Scheduler
	log       *logger.Logger
	now       func() time.Time
}

func NewService(store Store, leads LeadReader, scheduler Scheduler, log *logger.Logger) *Service {
	return &Service{store: store, leads: leads, scheduler: scheduler, log: log, now: time.Now}
}

func (s *Service) Create(ctx context.Context, actor uuid.UUID, isAdmin bool, leadID primitive.ObjectID, req CreateFollowUpRequest) (FollowUpResponse, error) {
	kind, ok := ParseType(req.Type)
	if !ok {
		return FollowUpResponse{}, apperr.Validation("type must be FOLLOW_UP or SITE_VISIT")
	}
	at, err := s.futureTime(req.ScheduledAt)
	if err != nil {
		return FollowUpResponse{}, err
	}
	if _, err := s.loadLead(ctx, leadID, actor, isAdmin); err != nil {
		return FollowUpResponse{}, err
	}

	created, err := s.store.Create(ctx, FollowUp{
		LeadID:      leadID,
		Type:        kind,
		ScheduledAt: at,
		Notes:       strings.TrimSpace(req.Notes),
		Status:      StatusScheduled,
		CreatedBy:   actor,
	})
	if err != nil {
		return FollowUpResponse{}, err
	}

	s.log.WithContext(ctx).Info("follow-up created",
		"followUpId", created.ID.Hex(),
		"leadId", leadID.Hex(),
		"type", kind,
		"scheduledAt", at,
	)
	s.schedule(ctx, created)
	return toResponse(created), nil
}

func (s *Service) Reschedule(ctx context.Context, actor uuid.UUID, isAdmin bool, id primitive.ObjectID, req RescheduleRequest) (FollowUpResponse, error) {
	at, err := s.futureTime(req.ScheduledAt)
	if err != nil {
		return FollowUpResponse{}, err
	}
	if _, err := s.load(ctx, id, actor, isAdmin); err != nil {
		return FollowUpResponse{}, err
	}

	updated, err := s.store.Reschedule(ctx, id, at)
	if err != nil {
		return FollowUpResponse{}, mapStoreErr(err)
	}

	s.log.WithContext(ctx).Info("follow-up rescheduled", "followUpId", id.Hex(), "scheduledAt", at)
	s.schedule(ctx, updated)
	return toResponse(updated), nil
}

func (s *Service) Cancel(ctx context.Context, actor uuid.UUID, isAdmin bool, id primitive.ObjectID) (FollowUpResponse, error) {
	return s.close(ctx, actor, isAdmin, id, StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, actor uuid.UUID, isAdmin bool, id primitive.ObjectID) (FollowUpResponse, error) {
	return s.close(ctx, actor, isAdmin, id, StatusCompleted)
}

func (s *Service) ListByLead(ctx context.Context, actor uuid.UUID, isAdmin bool, leadID primitive.ObjectID) (FollowUpListResponse, error) {
	if _, err := s.loadLead(ctx, leadID, actor, isAdmin); err != nil {
		return FollowUpListResponse{}, err
	}

	items, err := s.store.ListByLead(ctx, leadID)
	if err != nil {
		return FollowUpListResponse{}, err
	}

	resp := FollowUpListResponse{Success: true, Data: make([]FollowUpResponse, 0, len(items))}
	for _, f := range items {
		resp.Data = append(resp.Data, toResponse(f))
	}
	return resp, nil
}

func (s *Service) close(ctx context.Context, actor uuid.UUID, isAdmin bool, id primitive.ObjectID, status Status) (FollowUpResponse, error) {
	if _, err := s.load(ctx, id, actor, isAdmin); err != nil {
		return FollowUpResponse{}, err
	}

	updated, err := s.store.SetStatus(ctx, id, status)
	if err != nil {
		return FollowUpResponse{}, mapStoreErr(err)
	}

	// Queued reminders are dropped by the delivery worker once the status
	// is no longer SCHEDULED.
	s.log.WithContext(ctx).Info("follow-up closed", "followUpId", id.Hex(), "status", status)
	return toResponse(updated), nil
}

// schedule hands the follow-up to the reminder dispatcher. Failures are only
// logged; the follow-up itself is already stored.
func (s *Service) schedule(ctx context.Context, f FollowUp) {
	if s.scheduler == nil {
		return
	}
	_, err := s.scheduler.ScheduleFollowUpNotifications(ctx, reminders.Request{
		LeadID:       f.LeadID.Hex(),
		FollowUpID:   f.ID.Hex(),
		ScheduledAt:  f.ScheduledAt,
		FollowUpType: string(f.Type),
	})
	if err != nil {
		s.log.WithContext(ctx).Error("failed to schedule follow-up reminders",
			"followUpId", f.ID.Hex(),
			"error", err,
		)
	}
}

func (s *Service) futureTime(at time.Time) (time.Time, error) {
	if at.IsZero() {
		return time.Time{}, apperr.Validation("scheduledAt is required")
	}
	at = at.UTC().Truncate(time.Millisecond)
	if !at.After(s.now()) {
		return time.Time{}, apperr.Validation("scheduledAt must be in the future")
	}
	return at, nil
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID, actor uuid.UUID, isAdmin bool) (FollowUp, error) {
	f, err := s.store.GetByID(ctx, id)
	if err != nil {
		return FollowUp{}, mapStoreErr(err)
	}
	if _, err := s.loadLead(ctx, f.LeadID, actor, isAdmin); err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return FollowUp{}, apperr.NotFound(msgFollowUpNotFound)
		}
		return FollowUp{}, err
	}
	return f, nil
}

func (s *Service) loadLead(ctx context.Context, id primitive.ObjectID, actor uuid.UUID, isAdmin bool) (leaddomain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if errors.Is(err, leadrepo.ErrNotFound) {
		return leaddomain.Lead{}, apperr.NotFound(msgLeadNotFound)
	}
	if err != nil {
		return leaddomain.Lead{}, err
	}
	if !lead.CanBeManagedBy(actor, isAdmin) {
		return leaddomain.Lead{}, apperr.NotFound(msgLeadNotFound)
	}
	return lead, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound(msgFollowUpNotFound)
	case errors.Is(err, ErrNotScheduled):
		return apperr.Conflict(msgNotScheduled)
	}
	return err
}
