package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/internal/service"
	"github.com/scc-edu/registry-sync/pkg/config"
	"github.com/scc-edu/registry-sync/pkg/response"
)

func newRegistryFixture(t *testing.T) (*remote.MemoryStore, *RegistryHandler) {
	t.Helper()
	store := remote.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), remote.CollectionRoster, "SCC-22-00000001", models.RosterEntry{
		InternalID: "r1",
		StudentID:  "SCC-22-00000001",
		FirstName:  "Juan",
		LastName:   "Dela Cruz",
	}))
	reconciler := service.NewReconciler(store, config.ReconcileConfig{}, nil, nil)
	exports := service.NewExportService(reconciler, nil, nil, nil)
	return store, NewRegistryHandler(reconciler, exports)
}

func TestRegistryHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, handler := newRegistryFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/registry", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.EqualValues(t, 1, envelope.Meta["count"])
	assert.EqualValues(t, 0, envelope.Meta["warnings"])
}

func TestRegistryHandlerValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, handler := newRegistryFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/registry/validate/SCC-22-00000001", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "SCC-22-00000001"}}

	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestRegistryHandlerValidateBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, handler := newRegistryFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/registry/validate/bogus", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "bogus"}}

	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
	assert.Contains(t, w.Body.String(), "format")
}

func TestRegistryHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, handler := newRegistryFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/registry/export?format=csv", nil)

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "registry.csv")
	assert.Contains(t, w.Body.String(), "SCC-22-00000001")
}

func TestRegistryHandlerExportUnsupportedFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, handler := newRegistryFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/registry/export?format=pdf", nil)

	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
