package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scc-edu/registry-sync/internal/service"
	"github.com/scc-edu/registry-sync/pkg/response"
)

// RegistryHandler exposes the merged canonical registry.
type RegistryHandler struct {
	reconciler *service.Reconciler
	exports    *service.ExportService
}

// NewRegistryHandler constructs handler.
func NewRegistryHandler(reconciler *service.Reconciler, exports *service.ExportService) *RegistryHandler {
	return &RegistryHandler{reconciler: reconciler, exports: exports}
}

// List returns the current snapshot with its integrity warnings.
func (h *RegistryHandler) List(c *gin.Context) {
	snap, err := h.reconciler.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, map[string]interface{}{
		"count":    len(snap.Identities),
		"warnings": len(snap.Warnings),
	})
}

// Validate checks a business key against the canonical identity set.
func (h *RegistryHandler) Validate(c *gin.Context) {
	studentID := c.Param("studentId")
	valid, reason, err := h.reconciler.Validate(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	body := gin.H{"studentId": studentID, "valid": valid}
	if reason != "" {
		body["reason"] = reason
	}
	response.JSON(c, http.StatusOK, body)
}

// Export streams the registry as a CSV or XLSX download.
func (h *RegistryHandler) Export(c *gin.Context) {
	file, err := h.exports.RenderRegistry(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
