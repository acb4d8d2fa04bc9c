// Package handler exposes the query lifecycle over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"vitigo_crm_backend/internal/query/dispatch"
	"vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/service"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/httpkit"
	platformvalidator "vitigo_crm_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid query ID"
)

// Handler handles HTTP requests for queries.
type Handler struct {
	svc *service.Service
	val *platformvalidator.Validator
}

// New creates a new query handler.
func New(svc *service.Service, val *platformvalidator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// CreateSimple is the public intake form endpoint.
// POST /api/query/simple/
func (h *Handler) CreateSimple(c *gin.Context) {
	var req transport.SimpleQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"errors": gin.H{"body": "malformed JSON"},
		})
		return
	}
	if err := h.val.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"errors": fieldErrors(err),
		})
		return
	}

	res, err := h.svc.CreateSimple(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.SimpleQueryResponse{
		Status:    "success",
		QueryID:   res.Query.ID,
		UserEmail: res.UserEmail,
		IsNewUser: res.IsNewUser,
	})
}

// Create is the staff-facing create endpoint.
// POST /api/v1/queries
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, fieldErrors(err))
		return
	}

	params := service.CreateParams{
		Subject:              req.Subject,
		Description:          req.Description,
		Source:               req.Source,
		ContactEmail:         req.ContactEmail,
		ContactPhone:         req.ContactPhone,
		UserID:               req.UserID,
		ExpectedResponseDate: req.ExpectedResponseDate,
		FollowUpDate:         req.FollowUpDate,
		Tags:                 req.Tags,
		ResolveIdentity:      !req.IsAnonymous && req.UserID == nil,
		AutoAssign:           true,
	}
	res, err := h.svc.Create(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, toResponse(res.Query))
}

// List returns queries matching the given filters.
// GET /api/v1/queries
func (h *Handler) List(c *gin.Context) {
	var req transport.ListQueriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	filter, err := toFilter(req)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	queries, err := h.svc.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponses(queries))
}

// ListMine returns the authenticated user's own queries.
// GET /api/v1/queries/mine
func (h *Handler) ListMine(c *gin.Context) {
	userID := httpkit.MustGetUserID(c)
	var req transport.ListQueriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	filter, err := toFilter(req)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter.UserID = &userID
	filter.AssignedTo = nil

	queries, err := h.svc.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponses(queries))
}

// GetByID returns a single query. Patients can only read their own.
// GET /api/v1/queries/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	q, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !canViewQuery(c, q) {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}
	httpkit.OK(c, toResponse(q))
}

// ListUpdates returns the conversation/audit trail of a query.
// GET /api/v1/queries/:id/updates
func (h *Handler) ListUpdates(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	q, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if !canViewQuery(c, q) {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	updates, err := h.svc.ListUpdates(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.UpdateResponse, 0, len(updates))
	for _, u := range updates {
		out = append(out, transport.UpdateResponse{
			ID:        u.ID,
			AuthorID:  u.AuthorID,
			Content:   u.Content,
			CreatedAt: u.CreatedAt,
		})
	}
	httpkit.OK(c, out)
}

// AddUpdate appends a conversation entry, optionally transitioning status.
// POST /api/v1/queries/:id/updates
func (h *Handler) AddUpdate(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var req transport.AddUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, fieldErrors(err))
		return
	}

	actor := httpkit.MustGetUserID(c)
	update, err := h.svc.AddUpdate(c.Request.Context(), id, &actor, req.Content, req.NewStatus)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, transport.UpdateResponse{
		ID:        update.ID,
		AuthorID:  update.AuthorID,
		Content:   update.Content,
		CreatedAt: update.CreatedAt,
	})
}

// SetStatus transitions the query through the state machine.
// PUT /api/v1/queries/:id/status
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var req transport.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, fieldErrors(err))
		return
	}

	actor := httpkit.MustGetUserID(c)
	q, err := h.svc.SetStatus(c.Request.Context(), id, req.Status, req.ResolutionSummary, &actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(q))
}

// Assign assigns the query to a staff member, or lets the dispatcher pick.
// POST /api/v1/queries/:id/assign
func (h *Handler) Assign(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	actor := httpkit.MustGetUserID(c)
	q, err := h.svc.Assign(c.Request.Context(), id, req.StaffID, &actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(q))
}

// Reopen moves a terminal query back to IN_PROGRESS.
// POST /api/v1/queries/:id/reopen
func (h *Handler) Reopen(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	actor := httpkit.MustGetUserID(c)
	q, err := h.svc.Reopen(c.Request.Context(), id, &actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(q))
}

// SetPriority changes the triage level.
// PUT /api/v1/queries/:id/priority
func (h *Handler) SetPriority(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var req transport.SetPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, fieldErrors(err))
		return
	}

	actor := httpkit.MustGetUserID(c)
	q, err := h.svc.SetPriority(c.Request.Context(), id, req.Priority, &actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(q))
}

// UpdateDetails patches timers, satisfaction and conversion tracking.
// PATCH /api/v1/queries/:id/details
func (h *Handler) UpdateDetails(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var req transport.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, fieldErrors(err))
		return
	}

	q, err := h.svc.UpdateDetails(c.Request.Context(), id, service.DetailsPatch{
		ExpectedResponseDate: req.ExpectedResponseDate,
		FollowUpDate:         req.FollowUpDate,
		SatisfactionRating:   req.SatisfactionRating,
		ConversionStatus:     req.ConversionStatus,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(q))
}

// RateSatisfaction lets the query owner rate the resolution.
// POST /api/v1/queries/:id/satisfaction
func (h *Handler) RateSatisfaction(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	var req transport.SatisfactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, fieldErrors(err))
		return
	}

	userID := httpkit.MustGetUserID(c)
	q, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	if q.UserID == nil || *q.UserID != userID {
		httpkit.Error(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	q, err = h.svc.UpdateDetails(c.Request.Context(), id, service.DetailsPatch{
		SatisfactionRating: &req.Rating,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(q))
}

// Delete removes a query and its dependent rows.
// DELETE /api/v1/queries/:id
func (h *Handler) Delete(c *gin.Context) {
	id, ok := queryID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Escalations reports on priority escalations.
// GET /api/v1/queries/stats/escalations
func (h *Handler) Escalations(c *gin.Context) {
	stats, err := h.svc.Escalations(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"escalatedCount":          stats.EscalatedCount,
		"resolvedCount":           stats.ResolvedCount,
		"avgTimeToEscalationSecs": int64(stats.AvgTimeToEscalation.Seconds()),
	})
}

func queryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return 0, false
	}
	return id, true
}

// canViewQuery allows staff roles through and restricts everyone else to
// queries they own.
func canViewQuery(c *gin.Context, q *repository.Query) bool {
	for _, held := range httpkit.RolesFromContext(c) {
		for _, staffRole := range dispatch.StaffRoles {
			if strings.EqualFold(held, staffRole) {
				return true
			}
		}
	}
	userID := httpkit.MustGetUserID(c)
	return q.UserID != nil && *q.UserID == userID
}

func toFilter(req transport.ListQueriesRequest) (transport.ListQueriesFilter, error) {
	f := transport.ListQueriesFilter{
		Overdue:  req.Overdue,
		FollowUp: req.FollowUp,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	if req.Status != "" {
		status := transport.Status(strings.ToUpper(req.Status))
		f.Status = &status
	}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			return f, errors.New("invalid userId filter")
		}
		f.UserID = &id
	}
	if req.AssignedTo != "" {
		id, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return f, errors.New("invalid assignedTo filter")
		}
		f.AssignedTo = &id
	}
	return f, nil
}

func toResponses(queries []repository.Query) []transport.QueryResponse {
	out := make([]transport.QueryResponse, 0, len(queries))
	for i := range queries {
		out = append(out, *toResponse(&queries[i]))
	}
	return out
}

func toResponse(q *repository.Query) *transport.QueryResponse {
	resp := &transport.QueryResponse{
		ID:                   q.ID,
		Subject:              q.Subject,
		Description:          q.Description,
		Source:               q.Source,
		Priority:             q.Priority,
		Status:               q.Status,
		QueryType:            q.QueryType,
		IsAnonymous:          q.IsAnonymous,
		IsPatient:            q.IsPatient,
		ContactEmail:         q.ContactEmail,
		ContactPhone:         q.ContactPhone,
		UserID:               q.UserID,
		AssignedToID:         q.AssignedToID,
		ExpectedResponseDate: q.ExpectedResponseDate,
		FollowUpDate:         q.FollowUpDate,
		CreatedAt:            q.CreatedAt,
		UpdatedAt:            q.UpdatedAt,
		ResolvedAt:           q.ResolvedAt,
		SatisfactionRating:   q.SatisfactionRating,
		ConversionStatus:     q.ConversionStatus,
		ResolutionSummary:    q.ResolutionSummary,
		IsOverdue:            q.IsOverdue(time.Now()),
		Tags:                 q.Tags,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if d := q.ResponseTime(); d != nil {
		secs := int64(d.Seconds())
		resp.ResponseTimeSecs = &secs
	}
	return resp
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["request"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = "failed on " + fe.Tag()
	}
	return out
}
