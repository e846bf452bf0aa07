package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiawesome/tt-live-music-player/internal/domain"
	"github.com/weiawesome/tt-live-music-player/internal/service"
	"github.com/weiawesome/tt-live-music-player/pkg/response"
)

// HTTPHandler serves read-only diagnostics.
type HTTPHandler struct {
	service service.JukeboxService
}

func NewHTTPHandler(svc service.JukeboxService) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// RegisterRoutes registers all routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/connections", h.Connections)
		api.GET("/connections/:account", h.GetConnection)
		api.GET("/statistics", h.Statistics)
	}
}

func (h *HTTPHandler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// Connections lists the claimed external accounts.
func (h *HTTPHandler) Connections(c *gin.Context) {
	response.OK(c, h.service.Connections())
}

// GetConnection reports which session owns one account.
func (h *HTTPHandler) GetConnection(c *gin.Context) {
	account := domain.NormalizeAccount(c.Param("account"))
	if account == "" {
		response.BadRequest(c, "account is required")
		return
	}

	owner, ok := h.service.ConnectionOwner(account)
	if !ok {
		response.NotFound(c, "account is not connected")
		return
	}
	response.OK(c, gin.H{"account": account, "sessionId": owner})
}

func (h *HTTPHandler) Statistics(c *gin.Context) {
	response.OK(c, h.service.Statistics())
}
