// Package notification stores in-app notifications and delivers follow-up
// reminders to the lead's owner.
package notification

import (
	"context"

	"brokerage_backoffice/internal/email"
	apphttp "brokerage_backoffice/internal/http"
	"brokerage_backoffice/internal/followups/reminders"
	notifhandler "brokerage_backoffice/internal/notification/handler"
	"brokerage_backoffice/internal/notification/inapp"
	"brokerage_backoffice/platform/config"
	"brokerage_backoffice/platform/logger"

	"go.mongodb.org/mongo-driver/mongo"
)

// Module handles the notification inbox and reminder delivery.
type Module struct {
	repo         *inapp.Repository
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	sender       email.Sender
	cfg          config.ReminderConfig
	log          *logger.Logger
}

// New creates a new notification module.
func New(db *mongo.Database, sender email.Sender, cfg config.ReminderConfig, log *logger.Logger) *Module {
	log = log.WithComponent("notification")
	repo := inapp.NewRepository(db)
	svc := inapp.NewService(repo, log)

	return &Module{
		repo:         repo,
		inAppService: svc,
		inAppHandler: notifhandler.NewHTTPHandler(svc),
		sender:       sender,
		cfg:          cfg,
		log:          log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

func (m *Module) EnsureIndexes(ctx context.Context) error {
	return m.repo.EnsureIndexes(ctx)
}

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.inAppHandler.RegisterRoutes(ctx.Protected.Group("/notifications"))
}

// ReminderDelivery builds the worker handler for follow-up reminder tasks.
func (m *Module) ReminderDelivery(followUps FollowUpReader, leads LeadReader, directory Directory, table reminders.Table) *ReminderDelivery {
	return NewReminderDelivery(followUps, leads, directory, m.inAppService, m.sender, table, m.cfg.GetAppBaseURL(), m.log)
}

var _ apphttp.Module = (*Module)(nil)
