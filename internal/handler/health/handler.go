package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
)

type Handler struct {
	backend datasource.Pinger
	mock    bool
}

// NewHandler reports readiness from backend. A nil backend, or mock mode,
// is always ready.
func NewHandler(backend datasource.Pinger, mock bool) *Handler {
	return &Handler{
		backend: backend,
		mock:    mock,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck stays 200 when the backend is down since every operation
// still answers locally; the body tells the two apart.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.mock || h.backend == nil {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "backend": "mock"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.backend.Ping(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "DEGRADED",
			"backend": "unreachable",
			"reason":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "backend": "remote"})
}
