package notification

import (
	"log/slog"
	"net/http"

	"beacon/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the notification domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Notify handles POST /api/v1/notify
// Sends synchronously and returns 200 with per-transport outcomes, 502 when no
// transport delivered, or 202 Accepted when the request asks for async delivery.
func (h *Handler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.Notify(c.Request.Context(), &req)
	if err != nil {
		slog.Error("notify request failed",
			"error", err,
			"category", req.Category,
			"async", req.Async,
		)
		common.HandleError(c, err)
		return
	}

	switch {
	case req.Async:
		common.Success(c, http.StatusAccepted, resp)
	case !resp.Delivered:
		common.Failure(c, http.StatusBadGateway, "notification delivery failed", resp)
	default:
		common.Success(c, http.StatusOK, resp)
	}
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	common.Success(c, http.StatusOK, h.service.Categories())
}

// GetCategory handles GET /api/v1/categories/:name
func (h *Handler) GetCategory(c *gin.Context) {
	view, err := h.service.Category(c.Param("name"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, view)
}

// ListTransports handles GET /api/v1/transports
func (h *Handler) ListTransports(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{"transports": h.service.Transports()})
}

// RegisterRoutes registers notification routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notify", h.Notify)
	rg.GET("/categories", h.ListCategories)
	rg.GET("/categories/:name", h.GetCategory)
	rg.GET("/transports", h.ListTransports)
}
