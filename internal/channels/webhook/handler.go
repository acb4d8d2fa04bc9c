package webhook

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vitigo_crm_backend/platform/config"
	"vitigo_crm_backend/platform/logger"
)

// Handler serves the per-channel verification and delivery endpoints.
type Handler struct {
	service *Service
	cfg     config.WebhookConfig
	log     *logger.Logger
}

func NewHandler(service *Service, cfg config.WebhookConfig, log *logger.Logger) *Handler {
	return &Handler{service: service, cfg: cfg, log: log}
}

// HandleVerify implements the platform subscription handshake.
// GET /webhooks/:channel/
func (h *Handler) HandleVerify(c *gin.Context) {
	channel := c.Param("channel")
	if _, ok := SourceFor(channel); !ok {
		c.Status(http.StatusNotFound)
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.cfg.GetVerifyToken(channel) {
		h.log.Warn("webhook verification rejected", "channel", channel, "mode", mode)
		c.Status(http.StatusForbidden)
		return
	}
	c.String(http.StatusOK, "%s", challenge)
}

// HandleEvent processes a platform delivery. The platform expects 2xx on
// acknowledgement; per-message failures are logged and retried out-of-band,
// only a total failure returns 500.
// POST /webhooks/:channel/
func (h *Handler) HandleEvent(c *gin.Context) {
	channel := c.Param("channel")
	if _, ok := SourceFor(channel); !ok {
		c.Status(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	if !ValidSignature(h.cfg.GetAppSecret(channel), body, c.GetHeader("X-Hub-Signature-256")) {
		h.log.Warn("webhook signature rejected", "channel", channel)
		c.Status(http.StatusForbidden)
		return
	}

	messages, err := ParsePayload(channel, body)
	if err != nil {
		// Malformed body: nothing to retry.
		h.log.Warn("webhook payload rejected", "channel", channel, "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	failures := 0
	for _, msg := range messages {
		reply, err := h.service.ProcessMessage(c.Request.Context(), msg)
		if err != nil {
			failures++
			h.log.Error("webhook message failed", "channel", channel, "message_id", msg.MessageID, "error", err)
			continue
		}
		if reply != "" {
			// Outbound replies go through the channel's send API, which is
			// provisioned separately; record what would be sent.
			h.log.Info("conversation reply", "channel", channel, "sender", msg.SenderID, "reply", reply)
		}
	}

	if len(messages) > 0 && failures == len(messages) {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
