// Package management handles lead CRUD operations and single-lead
// reassignment.
package management

import (
	"context"
	"errors"
	"strings"

	"brokerage_backoffice/internal/leads/domain"
	"brokerage_backoffice/internal/leads/repository"
	"brokerage_backoffice/internal/leads/transport"
	"brokerage_backoffice/platform/apperr"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/phone"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 20
	msgLeadNotFound = "lead not found"
)

// Repository defines the data access interface needed by the management service.
type Repository interface {
	repository.LeadWriter
	GetByID(ctx context.Context, id primitive.ObjectID) (domain.Lead, error)
	List(ctx context.Context, params repository.ListParams) (repository.ListResult, error)
}

// EmployeeDirectory confirms that an assignee exists.
type EmployeeDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service handles lead management operations.
type Service struct {
	repo      Repository
	directory EmployeeDirectory
	log       *logger.Logger
}

// New creates a new lead management service.
func New(repo Repository, directory EmployeeDirectory, log *logger.Logger) *Service {
	return &Service{repo: repo, directory: directory, log: log}
}

// Create stores a new, unowned lead uploaded by actorID.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	normalized, err := phone.NormalizeE164(req.Phone)
	if err != nil {
		return transport.LeadResponse{}, apperr.Validation("phone is not a valid number")
	}

	status := domain.StatusNew
	if req.Status != "" {
		parsed, ok := domain.ParseStatus(req.Status)
		if !ok {
			return transport.LeadResponse{}, apperr.Validation("invalid status")
		}
		status = parsed
	}

	lead, err := s.repo.Create(ctx, domain.Lead{
		Name:         strings.TrimSpace(req.Name),
		Phone:        normalized,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Location:     strings.TrimSpace(req.Location),
		PropertyType: strings.TrimSpace(req.PropertyType),
		Budget:       strings.TrimSpace(req.Budget),
		Status:       status,
		UploadedBy:   actorID,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.log.WithContext(ctx).Info("lead created", "leadId", lead.ID.Hex(), "status", lead.Status)
	return ToLeadResponse(lead), nil
}

// GetByID returns a lead the actor may see. Leads outside the actor's reach
// are reported as missing.
func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID, actorID uuid.UUID, isAdmin bool) (transport.LeadResponse, error) {
	lead, err := s.load(ctx, id, actorID, isAdmin)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// List returns a page of leads. Non-admins only see leads they uploaded or own.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest, actorID uuid.UUID, isAdmin bool) (transport.LeadListResponse, error) {
	params := repository.ListParams{Page: req.Page, PageSize: req.Limit}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}

	if req.Status != "" {
		status, ok := domain.ParseStatus(req.Status)
		if !ok {
			return transport.LeadListResponse{}, apperr.Validation("invalid status")
		}
		params.Status = &status
	}
	if req.AssignedTo != "" {
		assignee, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation("invalid assignedTo")
		}
		params.AssignedTo = &assignee
	}
	if !isAdmin {
		params.VisibleTo = &actorID
	}

	result, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	return transport.LeadListResponse{
		Success: true,
		Data:    toLeadResponses(result.Items),
		Total:   result.Total,
		Page:    params.Page,
		Limit:   params.PageSize,
	}, nil
}

// UpdateStatus moves a lead through the funnel.
func (s *Service) UpdateStatus(ctx context.Context, id primitive.ObjectID, req transport.UpdateLeadStatusRequest, actorID uuid.UUID, isAdmin bool) (transport.LeadResponse, error) {
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return transport.LeadResponse{}, apperr.Validation("invalid status")
	}

	if _, err := s.load(ctx, id, actorID, isAdmin); err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err)
	}
	return ToLeadResponse(lead), nil
}

// Assign reassigns one lead outside any bulk batch. It is not recorded in
// the assignment ledger and may race with a running bulk batch.
func (s *Service) Assign(ctx context.Context, id primitive.ObjectID, req transport.AssignLeadRequest, actorID uuid.UUID, isAdmin bool) (transport.LeadResponse, error) {
	if _, err := s.load(ctx, id, actorID, isAdmin); err != nil {
		return transport.LeadResponse{}, err
	}

	var assignee *uuid.UUID
	if req.AssigneeID != nil && strings.TrimSpace(*req.AssigneeID) != "" {
		parsed, err := uuid.Parse(*req.AssigneeID)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation("invalid assigneeId")
		}
		exists, err := s.directory.Exists(ctx, parsed)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		if !exists {
			return transport.LeadResponse{}, apperr.NotFound("assignee not found")
		}
		assignee = &parsed
	}

	lead, err := s.repo.SetAssignee(ctx, id, assignee)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err)
	}

	resp := ToLeadResponse(lead)
	owner := "none"
	if resp.AssignedTo != nil {
		owner = *resp.AssignedTo
	}
	s.log.WithContext(ctx).Info("lead reassigned", "leadId", resp.ID, "assignedTo", owner)
	return resp, nil
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID, actorID uuid.UUID, isAdmin bool) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, mapRepoErr(err)
	}
	if !lead.CanBeManagedBy(actorID, isAdmin) {
		return domain.Lead{}, apperr.NotFound(msgLeadNotFound)
	}
	return lead, nil
}

func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgLeadNotFound)
	}
	return err
}
