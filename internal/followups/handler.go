package followups

import (
	"context"
	"net/http"

	"brokerage_backoffice/platform/httpkit"
	"brokerage_backoffice/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) Create(c *gin.Context) {
	leadID, ok := parseObjectID(c)
	if !ok {
		return
	}

	var req CreateFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), id.UserID(), id.IsAdmin(), leadID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, FollowUpEnvelope{Success: true, Data: resp})
}

func (h *Handler) ListByLead(c *gin.Context) {
	leadID, ok := parseObjectID(c)
	if !ok {
		return
	}

	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	resp, err := h.svc.ListByLead(c.Request.Context(), id.UserID(), id.IsAdmin(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Reschedule(c *gin.Context) {
	followUpID, ok := parseObjectID(c)
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	resp, err := h.svc.Reschedule(c.Request.Context(), id.UserID(), id.IsAdmin(), followUpID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, FollowUpEnvelope{Success: true, Data: resp})
}

func (h *Handler) Cancel(c *gin.Context) {
	h.close(c, h.svc.Cancel)
}

func (h *Handler) Complete(c *gin.Context) {
	h.close(c, h.svc.Complete)
}

type closeFunc func(ctx context.Context, actor uuid.UUID, isAdmin bool, id primitive.ObjectID) (FollowUpResponse, error)

func (h *Handler) close(c *gin.Context, fn closeFunc) {
	followUpID, ok := parseObjectID(c)
	if !ok {
		return
	}

	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	resp, err := fn(c.Request.Context(), id.UserID(), id.IsAdmin(), followUpID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, FollowUpEnvelope{Success: true, Data: resp})
}

func parseObjectID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return primitive.NilObjectID, false
	}
	return id, true
}
