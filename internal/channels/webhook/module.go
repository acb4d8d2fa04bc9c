// Package webhook provides the messaging-channel bounded context: the
// WhatsApp, Facebook and Instagram webhook endpoints and their per-sender
// conversation flows.
package webhook

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "vitigo_crm_backend/internal/http"
	identityrepo "vitigo_crm_backend/internal/identity/repository"
	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module.
func NewModule(pool *pgxpool.Pool, queries QueryCreator, lister QueryLister, users *identityrepo.Repository, cfg config.WebhookConfig, log *logger.Logger) *Module {
	conversations := NewConversationRepository(pool)
	service := NewService(conversations, queries, lister, users, log)
	return &Module{handler: NewHandler(service, cfg, log)}
}

func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the public per-channel webhook endpoints. These use
// platform verification, not JWT.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Engine.Group("/webhooks")
	group.GET("/:channel/", m.handler.HandleVerify)
	group.POST("/:channel/", m.handler.HandleEvent)
}

var _ apphttp.Module = (*Module)(nil)
