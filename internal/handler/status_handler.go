package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scc-edu/registry-sync/internal/service"
	"github.com/scc-edu/registry-sync/pkg/response"
)

// StatusHandler exposes connectivity and queue health endpoints.
type StatusHandler struct {
	monitor *service.HealthMonitor
	queue   *service.OfflineQueue
}

// NewStatusHandler constructs handler.
func NewStatusHandler(monitor *service.HealthMonitor, queue *service.OfflineQueue) *StatusHandler {
	return &StatusHandler{monitor: monitor, queue: queue}
}

// Health reports process liveness.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports the connection state plus the offline queue depth.
func (h *StatusHandler) Status(c *gin.Context) {
	state := h.monitor.Status()

	pending, err := h.queue.PendingCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	dead, err := h.queue.DeadLetters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"connection":   state.Status.String(),
		"retries":      state.Retries,
		"pendingCount": pending,
		"deadLetters":  len(dead),
	})
}

// DeadLetters lists writes that exhausted their retries.
func (h *StatusHandler) DeadLetters(c *gin.Context) {
	dead, err := h.queue.DeadLetters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dead)
}

// Reconnect forces an immediate probe, bypassing any backoff wait.
func (h *StatusHandler) Reconnect(c *gin.Context) {
	ok := h.monitor.ForceReconnect(c.Request.Context())
	state := h.monitor.Status()
	response.JSON(c, http.StatusOK, gin.H{
		"reconnected": ok,
		"connection":  state.Status.String(),
	})
}

// Flush triggers a manual flush of the offline queue.
func (h *StatusHandler) Flush(c *gin.Context) {
	succeeded, failed := h.queue.FlushPending(c.Request.Context())
	response.JSON(c, http.StatusOK, gin.H{
		"succeeded": succeeded,
		"failed":    failed,
	})
}
