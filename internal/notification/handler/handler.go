// Package handler exposes the user notification inbox over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vitigo_crm_backend/internal/notification/repository"
	"vitigo_crm_backend/platform/httpkit"
)

const defaultInboxLimit = 50

// Handler handles inbox notification requests.
type Handler struct {
	repo *repository.Repository
}

// New creates a new notification handler.
func New(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// NotificationResponse is the API projection of an inbox entry.
type NotificationResponse struct {
	ID        int64                       `json:"id"`
	Type      repository.NotificationType `json:"type"`
	Message   string                      `json:"message"`
	QueryID   *int64                      `json:"queryId,omitempty"`
	IsRead    bool                        `json:"isRead"`
	CreatedAt time.Time                   `json:"createdAt"`
}

// List returns the caller's notifications, newest first.
// GET /api/v1/notifications?unread=true
func (h *Handler) List(c *gin.Context) {
	userID := httpkit.MustGetUserID(c)
	unreadOnly := c.Query("unread") == "true"

	limit := defaultInboxLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpkit.Error(c, http.StatusBadRequest, "invalid limit", nil)
			return
		}
		limit = parsed
	}

	rows, err := h.repo.ListForUser(c.Request.Context(), userID, unreadOnly, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Message:   n.Message,
			QueryID:   n.QueryID,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	httpkit.OK(c, out)
}

// UnreadCount returns the caller's unread notification count.
// GET /api/v1/notifications/unread-count
func (h *Handler) UnreadCount(c *gin.Context) {
	userID := httpkit.MustGetUserID(c)
	count, err := h.repo.UnreadCount(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

// MarkRead marks one of the caller's notifications as read.
// POST /api/v1/notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	userID := httpkit.MustGetUserID(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification ID", nil)
		return
	}

	found, err := h.repo.MarkRead(c.Request.Context(), userID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !found {
		httpkit.Error(c, http.StatusNotFound, "notification not found", nil)
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// MarkAllRead marks all the caller's notifications as read.
// POST /api/v1/notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID := httpkit.MustGetUserID(c)
	updated, err := h.repo.MarkAllRead(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"updated": updated})
}
