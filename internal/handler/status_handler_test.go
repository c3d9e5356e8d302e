package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/internal/repository"
	"github.com/scc-edu/registry-sync/internal/service"
	"github.com/scc-edu/registry-sync/pkg/config"
)

func newStatusFixture(t *testing.T, store *remote.MemoryStore) *StatusHandler {
	t.Helper()
	monitor := service.NewHealthMonitor(store, config.HealthConfig{
		ProbeInterval: time.Hour,
		BackoffBase:   time.Millisecond,
	}, nil, nil)
	queue, err := service.NewOfflineQueue(repository.NewMemoryQueueStore(), store, config.QueueConfig{}, nil, nil)
	require.NoError(t, err)
	return NewStatusHandler(monitor, queue)
}

func TestStatusHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStatusFixture(t, remote.NewMemoryStore())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	handler.Health(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestStatusHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := remote.NewMemoryStore()
	handler := newStatusFixture(t, store)

	// Park one write so the queue depth shows up.
	store.SetUnavailable(true)
	err := handler.queue.Write(context.Background(), remote.CollectionRoster, "SCC-22-00000001", map[string]string{"v": "x"})
	require.Error(t, err)
	store.SetUnavailable(false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/status", nil)

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connection":"offline"`)
	assert.Contains(t, w.Body.String(), `"pendingCount":1`)
}

func TestStatusHandlerReconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStatusFixture(t, remote.NewMemoryStore())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/reconnect", nil)

	handler.Reconnect(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reconnected":true`)
	assert.Contains(t, w.Body.String(), `"connection":"online"`)
}

func TestStatusHandlerFlush(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := remote.NewMemoryStore()
	handler := newStatusFixture(t, store)

	store.SetUnavailable(true)
	require.Error(t, handler.queue.Write(context.Background(), remote.CollectionRoster, "SCC-22-00000001", map[string]string{"v": "x"}))
	store.SetUnavailable(false)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/queue/flush", nil)

	handler.Flush(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"succeeded":1`)
}
