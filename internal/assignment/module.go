package assignment

import (
	"context"

	apphttp "brokerage_backoffice/internal/http"
	"brokerage_backoffice/internal/queue"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/validator"

	"go.mongodb.org/mongo-driver/mongo"
)

// Module mounts the bulk assignment endpoints under /assignments.
type Module struct {
	ledger  *MongoLedger
	svc     *Service
	handler *Handler
}

func NewModule(db *mongo.Database, leads LeadStore, jobs queue.Enqueuer, directory Directory, val *validator.Validator, log *logger.Logger) *Module {
	ledger := NewMongoLedger(db)
	svc := NewService(leads, ledger, jobs, directory, log.WithComponent("assignment"))
	return &Module{ledger: ledger, svc: svc, handler: NewHandler(svc, val)}
}

func (m *Module) Name() string {
	return "assignment"
}

// Service is exposed so the API can attach the report archive.
func (m *Module) Service() *Service {
	return m.svc
}

func (m *Module) EnsureIndexes(ctx context.Context) error {
	return m.ledger.EnsureIndexes(ctx)
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/assignments"))
}

var _ apphttp.Module = (*Module)(nil)
