package inapp

import (
	"context"

	"brokerage_backoffice/platform/apperr"
	"brokerage_backoffice/platform/logger"

	"github.com/google/uuid"
)

type store interface {
	Create(ctx context.Context, p CreateParams) (bool, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID uuid.UUID, notificationID string) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	repo store
	log  *logger.Logger
}

func NewService(repo store, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Send persists the notification. A redelivered reminder returns false
// without creating a second entry.
func (s *Service) Send(ctx context.Context, p CreateParams) (bool, error) {
	if s == nil || s.repo == nil {
		return false, apperr.Internal("in-app notification service not configured")
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		s.log.WithContext(ctx).Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		return false, err
	}
	return created, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize
	return s.repo.List(ctx, userID, pageSize, offset)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID uuid.UUID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}
