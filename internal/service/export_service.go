package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/pkg/export"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

// Export formats supported by the registry export.
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

type snapshotSource interface {
	Snapshot(ctx context.Context) (models.RegistrySnapshot, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type excelRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportFile is a rendered registry export ready to stream to a client.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the merged registry into downloadable files.
type ExportService struct {
	source snapshotSource
	csv    csvRenderer
	excel  excelRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(source snapshotSource, csv csvRenderer, excel excelRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if excel == nil {
		excel = export.NewExcelExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{source: source, csv: csv, excel: excel, logger: logger}
}

// RenderRegistry produces the current canonical identity set in the
// requested format.
func (s *ExportService) RenderRegistry(ctx context.Context, format string) (*ExportFile, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	dataset := registryDataset(snap)

	switch strings.ToLower(format) {
	case ExportFormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv export")
		}
		return &ExportFile{Filename: "registry.csv", ContentType: "text/csv", Data: data}, nil
	case ExportFormatXLSX:
		data, err := s.excel.Render(dataset, "Registry")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render xlsx export")
		}
		return &ExportFile{
			Filename:    "registry.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format: %s", format))
	}
}

func registryDataset(snap models.RegistrySnapshot) export.Dataset {
	headers := []string{"studentId", "firstName", "lastName", "email", "sex", "course", "year", "section", "registered"}
	rows := make([]map[string]string, 0, len(snap.Identities))
	for _, id := range snap.Identities {
		rows = append(rows, map[string]string{
			"studentId":  id.StudentID,
			"firstName":  id.FirstName,
			"lastName":   id.LastName,
			"email":      id.Email,
			"sex":        id.Sex,
			"course":     id.Course,
			"year":       id.Year,
			"section":    id.Section,
			"registered": fmt.Sprintf("%t", id.IsRegisteredUser),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
