package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scc-edu/registry-sync/internal/service"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
	"github.com/scc-edu/registry-sync/pkg/response"
)

// ImportHandler accepts bulk roster import uploads.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs handler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Upload ingests a CSV or XLSX file from a multipart form and returns the
// per-row import report. Individual row failures never fail the request.
func (h *ImportHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field 'file' is required"))
		return
	}

	read, err := service.SuggestFileReader(fileHeader.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "open upload"))
		return
	}
	defer f.Close() //nolint:errcheck

	raw, err := read(f)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.imports.ParseTable(raw)
	if err != nil {
		response.Error(c, err)
		return
	}

	report := h.imports.Run(c.Request.Context(), rows)
	response.JSON(c, http.StatusOK, report, map[string]interface{}{
		"filename": fileHeader.Filename,
		"rows":     len(rows),
	})
}
