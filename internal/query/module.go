// Package query provides the query lifecycle bounded context module.
// It owns intake, classification, dispatch, the status state machine and
// the SLA/follow-up timers.
package query

import (
	"vitigo_crm_backend/internal/adapters/storage"
	apphttp "vitigo_crm_backend/internal/http"
	"vitigo_crm_backend/internal/query/dispatch"
	"vitigo_crm_backend/internal/query/handler"
	"vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/service"
	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/events"
	"vitigo_crm_backend/platform/httpkit"
	"vitigo_crm_backend/platform/logger"
	"vitigo_crm_backend/platform/validator"

	identityrepo "vitigo_crm_backend/internal/identity/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config combines the settings this module consumes.
type Config interface {
	config.DispatchConfig
	config.LifecycleConfig
}

// Module is the query bounded context module implementing http.Module.
type Module struct {
	handler     *handler.Handler
	attachments *handler.AttachmentHandler
	service     *service.Service
	repo        *repository.Repository
}

// NewModule creates and initializes the query module with its dependencies.
// The resolver and notifier come from the identity and notification modules
// through their adapters.
func NewModule(
	pool *pgxpool.Pool,
	users *identityrepo.Repository,
	resolver service.IdentityResolver,
	notifier service.Notifier,
	bus events.Bus,
	cfg Config,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	strategy := dispatch.ForName(cfg.GetDispatchStrategy())
	svc := service.New(pool, repo, users, resolver, strategy, notifier, bus, log, cfg.GetDefaultSLA())
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "query"
}

// Service returns the lifecycle service for channel adapters and workers.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// SetAttachmentStore enables the attachment endpoints. Called from the
// composition root only when object storage is configured.
func (m *Module) SetAttachmentStore(store *storage.AttachmentStore) {
	m.attachments = handler.NewAttachmentHandler(m.handler, store)
}

// RegisterRoutes mounts query routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public intake form; trailing slash kept for the embedding sites.
	ctx.Public.POST("/query/simple/", m.handler.CreateSimple)

	// Authenticated read endpoints; patients are limited to their own queries.
	ctx.Protected.GET("/queries/mine", m.handler.ListMine)
	ctx.Protected.GET("/queries/:id", m.handler.GetByID)
	ctx.Protected.GET("/queries/:id/updates", m.handler.ListUpdates)
	ctx.Protected.POST("/queries/:id/satisfaction", m.handler.RateSatisfaction)

	// Staff lifecycle endpoints.
	staff := ctx.Staff.Group("/queries")
	staff.GET("", m.handler.List)
	staff.GET("/stats/escalations", m.handler.Escalations)
	staff.POST("", m.handler.Create)
	staff.POST("/:id/updates", m.handler.AddUpdate)
	staff.PUT("/:id/status", m.handler.SetStatus)
	staff.POST("/:id/assign", m.handler.Assign)
	staff.POST("/:id/reopen", m.handler.Reopen)
	staff.PUT("/:id/priority", m.handler.SetPriority)
	staff.PATCH("/:id/details", m.handler.UpdateDetails)
	staff.DELETE("/:id", httpkit.RequireRole("ADMINISTRATOR"), m.handler.Delete)

	if m.attachments != nil {
		ctx.Protected.GET("/queries/:id/attachments", m.attachments.List)
		ctx.Protected.GET("/queries/:id/attachments/:attachmentId/url", m.attachments.DownloadURL)
		ctx.Protected.POST("/queries/:id/attachments", m.attachments.Upload)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
