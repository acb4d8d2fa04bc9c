package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vitigo_crm_backend/internal/adapters/storage"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/httpkit"
)

// AttachmentHandler handles file uploads and downloads on queries.
// Registered only when MinIO storage is configured.
type AttachmentHandler struct {
	svc   *Handler
	store *storage.AttachmentStore
}

// NewAttachmentHandler creates a handler backed by the given store.
func NewAttachmentHandler(queries *Handler, store *storage.AttachmentStore) *AttachmentHandler {
	return &AttachmentHandler{svc: queries, store: store}
}

// Upload stores a multipart file and records the attachment row.
// POST /api/v1/queries/:id/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	q, err := h.svc.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !canViewQuery(c, q) {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read file", nil)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	attachment, err := h.store.Save(c.Request.Context(), id, fileHeader.Filename, contentType, file, fileHeader.Size)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.AttachmentResponse{
		ID:          attachment.ID,
		FileName:    attachment.FileName,
		ContentType: attachment.ContentType,
		SizeBytes:   attachment.SizeBytes,
		UploadedAt:  attachment.UploadedAt,
	})
}

// List returns attachment metadata for a query.
// GET /api/v1/queries/:id/attachments
func (h *AttachmentHandler) List(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	q, err := h.svc.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !canViewQuery(c, q) {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	attachments, err := h.store.ListForQuery(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, transport.AttachmentResponse{
			ID:          a.ID,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			UploadedAt:  a.UploadedAt,
		})
	}
	httpkit.OK(c, out)
}

// DownloadURL returns a short-lived presigned URL for one attachment.
// GET /api/v1/queries/:id/attachments/:attachmentId/url
func (h *AttachmentHandler) DownloadURL(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	attachmentID, err := strconv.ParseInt(c.Param("attachmentId"), 10, 64)
	if err != nil || attachmentID < 1 {
		httpkit.Error(c, http.StatusBadRequest, "invalid attachment ID", nil)
		return
	}
	q, err := h.svc.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !canViewQuery(c, q) {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	attachments, err := h.store.ListForQuery(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	for _, a := range attachments {
		if a.ID != attachmentID {
			continue
		}
		url, err := h.store.DownloadURL(c.Request.Context(), a.FileKey)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, gin.H{"url": url.URL, "expiresAt": url.ExpiresAt})
		return
	}
	httpkit.Error(c, http.StatusNotFound, "attachment not found", nil)
}
