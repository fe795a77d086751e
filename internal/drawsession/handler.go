package drawsession

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/auth"
)

// Handler exposes draw sessions over HTTP
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a new draw session handler
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes registers the draw session route
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws/draw", h.serve)
}

// serve handles GET /ws/draw?geometry=
func (h *Handler) serve(c *gin.Context) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// The upgrader has already answered the client on failure.
	if _, err := h.manager.HandleConnection(c.Writer, c.Request, companyID, c.Query("geometry")); err != nil {
		h.logger.Warn("Failed to open draw session", zap.Error(err))
	}
}
