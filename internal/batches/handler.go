package batches

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/auth"
)

// Handler handles HTTP requests for batches and batch sources
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new batches handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers batch routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	batches := router.Group("/batches")
	{
		batches.POST("", h.createBatch)
		batches.GET("", h.listBatches)
		batches.GET("/:id", h.getBatch)
		batches.DELETE("/:id", h.deleteBatch)

		batches.GET("/:id/sources", h.listSources)
		batches.POST("/:id/sources", h.createSource)
		batches.PUT("/:id/sources/:sourceId", h.updateSource)
		batches.DELETE("/:id/sources/:sourceId", h.deleteSource)
		batches.GET("/:id/sources/:sourceId/map", h.sourceMap)

		batches.GET("/:id/available-lands", h.availableLands)
	}
}

// createBatch handles POST /api/v1/batches
func (h *Handler) createBatch(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.service.CreateBatch(c.Request.Context(), companyID, req)
	if err != nil {
		h.respondError(c, "Failed to create batch", err)
		return
	}

	c.JSON(http.StatusCreated, batch)
}

// listBatches handles GET /api/v1/batches
func (h *Handler) listBatches(c *gin.Context) {
	companyID, ok := h.companyID(c)
	if !ok {
		return
	}

	batches, err := h.service.ListBatches(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, "Failed to list batches", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches, "count": len(batches)})
}

// getBatch handles GET /api/v1/batches/:id
func (h *Handler) getBatch(c *gin.Context) {
	companyID, batchID, ok := h.batchScope(c)
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(c.Request.Context(), companyID, batchID)
	if err != nil {
		h.respondError(c, "Failed to get batch", err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// deleteBatch handles DELETE /api/v1/batches/:id
func (h *Handler) deleteBatch(c *gin.Context) {
	companyID, batchID, ok := h.batchScope(c)
	if !ok {
		return
	}

	if err := h.service.DeleteBatch(c.Request.Context(), companyID, batchID); err != nil {
		h.respondError(c, "Failed to delete batch", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// listSources handles GET /api/v1/batches/:id/sources
func (h *Handler) listSources(c *gin.Context) {
	companyID, batchID, ok := h.batchScope(c)
	if !ok {
		return
	}

	sources, err := h.service.ListSources(c.Request.Context(), companyID, batchID)
	if err != nil {
		h.respondError(c, "Failed to list batch sources", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
}

// createSource handles POST /api/v1/batches/:id/sources
func (h *Handler) createSource(c *gin.Context) {
	companyID, batchID, ok := h.batchScope(c)
	if !ok {
		return
	}

	var req CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source, err := h.service.CreateSource(c.Request.Context(), companyID, batchID, req)
	if err != nil {
		h.respondError(c, "Failed to create batch source", err)
		return
	}

	c.JSON(http.StatusCreated, source)
}

// updateSource handles PUT /api/v1/batches/:id/sources/:sourceId
func (h *Handler) updateSource(c *gin.Context) {
	companyID, batchID, sourceID, ok := h.sourceScope(c)
	if !ok {
		return
	}

	var req UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source, err := h.service.UpdateSource(c.Request.Context(), companyID, batchID, sourceID, req)
	if err != nil {
		h.respondError(c, "Failed to update batch source", err)
		return
	}

	c.JSON(http.StatusOK, source)
}

// deleteSource handles DELETE /api/v1/batches/:id/sources/:sourceId
func (h *Handler) deleteSource(c *gin.Context) {
	companyID, batchID, sourceID, ok := h.sourceScope(c)
	if !ok {
		return
	}

	if err := h.service.DeleteSource(c.Request.Context(), companyID, batchID, sourceID); err != nil {
		h.respondError(c, "Failed to delete batch source", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// sourceMap handles GET /api/v1/batches/:id/sources/:sourceId/map
func (h *Handler) sourceMap(c *gin.Context) {
	companyID, batchID, sourceID, ok := h.sourceScope(c)
	if !ok {
		return
	}

	data, err := h.service.SourceMap(c.Request.Context(), companyID, batchID, sourceID)
	if err != nil {
		h.respondError(c, "Failed to render source map", err)
		return
	}

	c.Data(http.StatusOK, "application/geo+json", data)
}

// availableLands handles GET /api/v1/batches/:id/available-lands?search=
func (h *Handler) availableLands(c *gin.Context) {
	companyID, batchID, ok := h.batchScope(c)
	if !ok {
		return
	}

	available, err := h.service.AvailableLands(c.Request.Context(), companyID, batchID, c.Query("search"))
	if err != nil {
		h.respondError(c, "Failed to list available lands", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lands": available, "count": len(available)})
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound), errors.Is(err, ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrLandNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ErrLandAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidBatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
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

func (h *Handler) batchScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	companyID, ok := h.companyID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, batchID, true
}

func (h *Handler) sourceScope(c *gin.Context) (uuid.UUID, uuid.UUID, uuid.UUID, bool) {
	companyID, batchID, ok := h.batchScope(c)
	if !ok {
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	sourceID, err := uuid.Parse(c.Param("sourceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	return companyID, batchID, sourceID, true
}
