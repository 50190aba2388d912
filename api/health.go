package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports service liveness and store reachability.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
