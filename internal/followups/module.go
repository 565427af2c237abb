package followups

import (
	"context"

	apphttp "brokerage_backoffice/internal/http"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/validator"

	"go.mongodb.org/mongo-driver/mongo"
)

type Module struct {
	repo    *Repository
	svc     *Service
	handler *Handler
}

func NewModule(db *mongo.Database, leads LeadReader, scheduler Scheduler, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(db)
	svc := NewService(repo, leads, scheduler, log.WithComponent("followups"))
	return &Module{repo: repo, svc: svc, handler: NewHandler(svc, val)}
}

func (m *Module) Name() string {
	return "followups"
}

// Repository is read by the reminder delivery worker.
func (m *Module) Repository() *Repository {
	return m.repo
}

func (m *Module) EnsureIndexes(ctx context.Context) error {
	return m.repo.EnsureIndexes(ctx)
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/leads/:id/follow-ups", m.handler.Create)
	ctx.Protected.GET("/leads/:id/follow-ups", m.handler.ListByLead)

	rg := ctx.Protected.Group("/follow-ups")
	rg.PUT("/:id/reschedule", m.handler.Reschedule)
	rg.POST("/:id/cancel", m.handler.Cancel)
	rg.POST("/:id/complete", m.handler.Complete)
}

var _ apphttp.Module = (*Module)(nil)
