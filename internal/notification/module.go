// Package notification provides the notification bounded context module:
// in-app inbox, pending email/SMS outbox and the fan-out from lifecycle
// events to per-recipient rows.
package notification

import (
	apphttp "vitigo_crm_backend/internal/http"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	"vitigo_crm_backend/internal/notification/handler"
	"vitigo_crm_backend/internal/notification/repository"
	"vitigo_crm_backend/internal/notification/service"
	"vitigo_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	fanout  *service.Fanout
	repo    *repository.Repository
}

// NewModule creates and initializes the notification module.
func NewModule(pool *pgxpool.Pool, users *identityrepo.Repository, log *logger.Logger) *Module {
	repo := repository.New(pool)
	fanout := service.NewFanout(repo, users, log)
	h := handler.New(repo)

	return &Module{
		handler: h,
		fanout:  fanout,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Fanout returns the lifecycle notifier consumed by the query module.
func (m *Module) Fanout() *service.Fanout {
	return m.fanout
}

// Repository returns the repository for the outbound dispatcher.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts inbox routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	group.GET("", m.handler.List)
	group.GET("/unread-count", m.handler.UnreadCount)
	group.POST("/:id/read", m.handler.MarkRead)
	group.POST("/read-all", m.handler.MarkAllRead)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
