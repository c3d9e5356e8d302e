package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/internal/remote"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

func TestExportServiceRenderCSV(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{InternalID: "r1", StudentID: "SCC-22-00000001", FirstName: "Juan", LastName: "Dela Cruz", Course: "BSIT"})
	svc := NewExportService(newTestReconciler(store, 0), nil, nil, nil)

	file, err := svc.RenderRegistry(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "registry.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Data), "studentId,firstName,lastName")
	assert.Contains(t, string(file.Data), "SCC-22-00000001,Juan,Dela Cruz")
}

func TestExportServiceRenderXLSX(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{InternalID: "r1", StudentID: "SCC-22-00000001", FirstName: "Juan", LastName: "Dela Cruz"})
	svc := NewExportService(newTestReconciler(store, 0), nil, nil, nil)

	file, err := svc.RenderRegistry(context.Background(), "xlsx")
	require.NoError(t, err)
	assert.Equal(t, "registry.xlsx", file.Filename)
	assert.NotEmpty(t, file.Data)
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	svc := NewExportService(newTestReconciler(remote.NewMemoryStore(), 0), nil, nil, nil)

	_, err := svc.RenderRegistry(context.Background(), "pdf")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
