package exports

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/auth"
	"agrotrace/company-portal/portal-backend/internal/batches"
)

// Handler handles HTTP requests for batch exports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new export handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers export routes under /batches
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/batches/:id/export", h.export)
	router.POST("/batches/:id/export/archive", h.archive)
}

// export handles GET /api/v1/batches/:id/export?format=&delimiter=&lineEnding=&decimals=
func (h *Handler) export(c *gin.Context) {
	companyID, batchID, opts, ok := h.scope(c)
	if !ok {
		return
	}

	artifact, err := h.service.Export(c.Request.Context(), companyID, batchID, opts)
	if err != nil {
		h.respondError(c, "Failed to export batch", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+artifact.Filename+`"`)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// archive handles POST /api/v1/batches/:id/export/archive?format=
func (h *Handler) archive(c *gin.Context) {
	companyID, batchID, opts, ok := h.scope(c)
	if !ok {
		return
	}

	archive, err := h.service.ArchiveExport(c.Request.Context(), companyID, batchID, opts)
	if err != nil {
		h.respondError(c, "Failed to archive batch export", err)
		return
	}

	c.JSON(http.StatusCreated, archive)
}

func (h *Handler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, ExportOptions, bool) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, ExportOptions{}, false
	}
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return uuid.Nil, uuid.Nil, ExportOptions{}, false
	}
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, uuid.Nil, ExportOptions{}, false
	}
	csvOpts, err := ParseCSVOptions(c.Query("delimiter"), c.Query("lineEnding"), c.Query("decimals"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return uuid.Nil, uuid.Nil, ExportOptions{}, false
	}
	return companyID, batchID, ExportOptions{Format: format, CSV: csvOpts}, true
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, batches.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
