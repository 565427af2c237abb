package employees

import (
	apphttp "brokerage_backoffice/internal/http"
	"brokerage_backoffice/platform/logger"
	"brokerage_backoffice/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	svc     *Service
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), log.WithComponent("employees"))
	return &Module{svc: svc, handler: NewHandler(svc, val)}
}

func (m *Module) Name() string {
	return "employees"
}

// Service exposes the directory to other contexts.
func (m *Module) Service() *Service {
	return m.svc
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/employees", m.handler.List)
	ctx.Admin.POST("/employees", m.handler.Create)
}

var _ apphttp.Module = (*Module)(nil)
