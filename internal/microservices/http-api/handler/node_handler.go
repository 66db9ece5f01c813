package handler

import (
	"context"
	"net/http"
	"time"

	"mycelhub/internal/microservices/http-api/dto"
	"mycelhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type NodeHandler struct {
	svc service.NodeService
}

func NewNodeHandler(svc service.NodeService) *NodeHandler {
	return &NodeHandler{svc: svc}
}

func (h *NodeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/peers", h.Peers)
	rg.GET("/stats", h.Stats)
}

// Peers handles GET /api/peers
func (h *NodeHandler) Peers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := h.svc.Peers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.PeersFromRecords(records))
}

// Stats handles GET /api/stats
func (h *NodeHandler) Stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.StatsFromService(stats))
}

// Health handles GET /health
func (h *NodeHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
