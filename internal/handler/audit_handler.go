package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scc-edu/registry-sync/internal/repository"
	"github.com/scc-edu/registry-sync/pkg/response"
)

// AuditHandler exposes the persisted audit trail. Only registered when the
// audit database is configured.
type AuditHandler struct {
	audits *repository.AuditRepository
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audits *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// ListByResource returns audit records for one resource id, newest first.
func (h *AuditHandler) ListByResource(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.audits.ListByResource(c.Request.Context(), c.Param("resourceId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}
