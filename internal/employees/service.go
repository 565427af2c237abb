// Package employees is the directory of back-office staff, stored in Postgres.
// Other contexts use it to resolve names, e-mail addresses and existence.
package employees

import (
	"context"
	"strings"

	"brokerage_backoffice/platform/apperr"
	"brokerage_backoffice/platform/logger"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleAgent = "agent"

	defaultPageSize = 50
)

type store interface {
	Create(ctx context.Context, p CreateParams) (Employee, error)
	GetByID(ctx context.Context, id uuid.UUID) (Employee, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Employee, error)
	List(ctx context.Context, limit, offset int) ([]Employee, int, error)
}

type Service struct {
	repo store
	log  *logger.Logger
}

func NewService(repo store, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Create(ctx context.Context, name, email, role string) (Employee, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return Employee{}, apperr.Validation("name and email are required")
	}
	if role == "" {
		role = RoleAgent
	}
	if role != RoleAdmin && role != RoleAgent {
		return Employee{}, apperr.Validation("role must be admin or agent")
	}

	e, err := s.repo.Create(ctx, CreateParams{Name: name, Email: email, Role: role})
	if err != nil {
		return Employee{}, err
	}
	s.log.WithContext(ctx).Info("employee created", "employeeId", e.ID, "role", e.Role)
	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Employee, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether id is a known employee.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	_, err := s.repo.GetByID(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Lookup returns the employees found among ids, ignoring duplicates and nil ids.
func (s *Service) Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Employee, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.repo.GetByIDs(ctx, unique)
}

func (s *Service) List(ctx context.Context, page, limit int) ([]Employee, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = defaultPageSize
	}
	return s.repo.List(ctx, limit, (page-1)*limit)
}
