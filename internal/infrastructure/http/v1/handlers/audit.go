package handlers

import (
	"github.com/gin-gonic/gin"

	"parcelsort/internal/domain/audit"
	"parcelsort/internal/infrastructure/http/v1/dto"
)

// AuditHandler serves the scan trail.
type AuditHandler struct {
	*BaseHandler
	trail *audit.Trail
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, trail *audit.Trail) *AuditHandler {
	return &AuditHandler{BaseHandler: base, trail: trail}
}

// All returns every recorded scan attempt.
// GET /api/v1/audit/all
func (h *AuditHandler) All(c *gin.Context) {
	events, err := h.trail.All(c.Request.Context())
	h.events(c, events, err)
}

// BySession returns the attempts of one scanning session.
// GET /api/v1/audit/session/:sessionId
func (h *AuditHandler) BySession(c *gin.Context) {
	events, err := h.trail.BySession(c.Request.Context(), c.Param("sessionId"))
	h.events(c, events, err)
}

// ByParcel returns the attempts for one tracking number.
// GET /api/v1/audit/parcel/:trackingNumber
func (h *AuditHandler) ByParcel(c *gin.Context) {
	events, err := h.trail.ByTrackingNumber(c.Request.Context(), c.Param("trackingNumber"))
	h.events(c, events, err)
}

func (h *AuditHandler) events(c *gin.Context, events []audit.Event, err error) {
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromAuditEvents(events)))
}
