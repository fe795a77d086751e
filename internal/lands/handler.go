package lands

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/auth"
	"agrotrace/company-portal/portal-backend/internal/deforestation"
)

// Handler handles HTTP requests for lands
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new lands handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers land routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	lands := router.Group("/lands")
	{
		lands.POST("", h.createLand)
		lands.GET("", h.listLands)
		lands.GET("/:id", h.getLand)
		lands.PUT("/:id", h.updateLand)
		lands.DELETE("/:id", h.deleteLand)
		lands.GET("/:id/geometry", h.getGeometry)
		lands.POST("/:id/deforestation-check", h.checkDeforestation)
	}
}

// createLand handles POST /api/v1/lands
func (h *Handler) createLand(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	var req CreateLandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	land, err := h.service.CreateLand(c.Request.Context(), companyID, req)
	if err != nil {
		h.respondError(c, "Failed to create land", err)
		return
	}

	c.JSON(http.StatusCreated, land)
}

// listLands handles GET /api/v1/lands?search=
func (h *Handler) listLands(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	filter := LandFilter{
		CompanyID: companyID,
		Search:    c.Query("search"),
		Limit:     h.getIntParam(c, "limit", 100),
		Offset:    h.getIntParam(c, "offset", 0),
	}

	lands, err := h.service.ListLands(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "Failed to list lands", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lands": lands, "count": len(lands)})
}

// getLand handles GET /api/v1/lands/:id
func (h *Handler) getLand(c *gin.Context) {
	companyID, id, ok := h.scopedID(c)
	if !ok {
		return
	}

	land, err := h.service.GetLand(c.Request.Context(), companyID, id)
	if err != nil {
		h.respondError(c, "Failed to get land", err)
		return
	}

	c.JSON(http.StatusOK, land)
}

// updateLand handles PUT /api/v1/lands/:id
func (h *Handler) updateLand(c *gin.Context) {
	companyID, id, ok := h.scopedID(c)
	if !ok {
		return
	}

	var req UpdateLandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	land, err := h.service.UpdateLand(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.respondError(c, "Failed to update land", err)
		return
	}

	c.JSON(http.StatusOK, land)
}

// deleteLand handles DELETE /api/v1/lands/:id
func (h *Handler) deleteLand(c *gin.Context) {
	companyID, id, ok := h.scopedID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteLand(c.Request.Context(), companyID, id); err != nil {
		h.respondError(c, "Failed to delete land", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// getGeometry handles GET /api/v1/lands/:id/geometry
func (h *Handler) getGeometry(c *gin.Context) {
	companyID, id, ok := h.scopedID(c)
	if !ok {
		return
	}

	data, err := h.service.LandGeometry(c.Request.Context(), companyID, id)
	if err != nil {
		h.respondError(c, "Failed to render land geometry", err)
		return
	}

	c.Data(http.StatusOK, "application/geo+json", data)
}

// checkDeforestation handles POST /api/v1/lands/:id/deforestation-check?years=N
func (h *Handler) checkDeforestation(c *gin.Context) {
	companyID, id, ok := h.scopedID(c)
	if !ok {
		return
	}

	years := h.getIntParam(c, "years", deforestation.DefaultLookbackYears)
	land, err := h.service.CheckDeforestation(c.Request.Context(), companyID, id, years)
	if err != nil {
		h.respondError(c, "Deforestation check failed", err)
		return
	}

	c.JSON(http.StatusOK, land)
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidPolygon), errors.Is(err, ErrNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrStaleCheck):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, deforestation.ErrInference):
		h.logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (h *Handler) companyID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return id, ok
}

func (h *Handler) scopedID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	companyID, ok := h.companyID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid land id"})
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}

func (h *Handler) getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
