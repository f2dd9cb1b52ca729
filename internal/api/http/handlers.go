package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/andeslabs/cryptoqr/backend/internal/infrastructure/monitoring"
	"github.com/andeslabs/cryptoqr/backend/internal/logging"
	"github.com/andeslabs/cryptoqr/backend/internal/roots"
	"github.com/andeslabs/cryptoqr/backend/internal/service"
	"github.com/andeslabs/cryptoqr/backend/internal/types"
)

// Handlers exposes the roots/directory operations over HTTP.
type Handlers struct {
	manager  *roots.Manager
	registry *service.Registry
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(manager *roots.Manager, registry *service.Registry, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	return &Handlers{
		manager:  manager,
		registry: registry,
		metrics:  metrics,
		log:      log,
	}
}

// Root returns the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "cryptoqr-directory",
		"status":  "running",
	})
}

// Health returns liveness plus a metrics snapshot.
func (h *Handlers) Health(c *gin.Context) {
	h.metrics.UpdateUptime()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"metrics": h.metrics.GetSnapshot(),
	})
}

// RootsChanged consumes an inbound roots notification.
func (h *Handlers) RootsChanged(c *gin.Context) {
	var notification types.RootsNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Notificación inválida"})
		return
	}

	result := h.manager.HandleRootsChanged(notification)
	c.JSON(statusForRootsResult(result), result)
}

// GetRoots returns the current roots configuration snapshot.
func (h *Handlers) GetRoots(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.CurrentRoots())
}

// ValidateDirectory performs a dry-run validation of a single path.
func (h *Handlers) ValidateDirectory(c *gin.Context) {
	var req struct {
		Directory string `json:"directory"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "directory required"})
		return
	}

	c.JSON(http.StatusOK, h.manager.ValidateDirectory(req.Directory))
}

// SetDirectory validates and applies a new output directory.
func (h *Handlers) SetDirectory(c *gin.Context) {
	var req struct {
		Directory string `json:"directory"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "directory required"})
		return
	}

	result, _ := h.registry.Execute(c.Request.Context(), "qrdir.set", map[string]interface{}{
		"directory": req.Directory,
	}, nil)
	if result == nil || !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DirectoryInfo probes the active output directory.
func (h *Handlers) DirectoryInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Provider().DirectoryInfo(c.Request.Context()))
}

// ListAllowed returns the whitelist.
func (h *Handlers) ListAllowed(c *gin.Context) {
	dirs := h.manager.Provider().AllowedDirectories()
	c.JSON(http.StatusOK, gin.H{
		"directories": dirs,
		"count":       len(dirs),
	})
}

// ListServices lists registered tool providers.
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(nil),
		"stats":    h.registry.Stats(),
	})
}

// ExecuteService dispatches a generic tool execution.
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req struct {
		ToolID string                 `json:"tool_id"`
		Params map[string]interface{} `json:"params"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tool_id required"})
		return
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, nil)
	if err != nil {
		c.JSON(http.StatusNotFound, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func statusForRootsResult(res types.RootsValidationResult) int {
	if res.IsValid {
		return http.StatusOK
	}
	switch res.Message {
	case "Notificación inválida":
		return http.StatusBadRequest
	case "Rate limit excedido":
		return http.StatusTooManyRequests
	case "Ya hay una notificación en proceso":
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func parseLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
