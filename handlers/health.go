package handlers

import (
	"net/http"

	"calbook/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	Monitor *utils.HealthMonitor
}

func NewHealthHandler(m *utils.HealthMonitor) *HealthHandler {
	return &HealthHandler{Monitor: m}
}

// Live never touches sessions or dependencies.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "calbook is running"})
}

// Ready reports the last dependency snapshot, probing once if none exists yet.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.Monitor.Status()
	if status.CheckedAt.IsZero() {
		status = h.Monitor.CheckNow(c.Request.Context())
	}
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
