// Package leads provides the lead management bounded context module.
package leads

import (
	"context"

	apphttp "brokerage_backoffice/internal/http"
	"brokerage_backoffice/internal/leads/handler"
	"brokerage_backoffice/internal/leads/management"
	"brokerage_backoffice/internal/leads/repository"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/validator"

	"go.mongodb.org/mongo-driver/mongo"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule wires the lead repository, service and handler.
func NewModule(db *mongo.Database, directory management.EmployeeDirectory, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(db)
	svc := management.New(repo, directory, log.WithComponent("leads"))

	return &Module{
		handler: handler.New(svc, val),
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes lead storage to the assignment and follow-up contexts.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// EnsureIndexes creates the lead collection indexes.
func (m *Module) EnsureIndexes(ctx context.Context) error {
	return m.repo.EnsureIndexes(ctx)
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
