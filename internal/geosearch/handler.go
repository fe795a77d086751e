package geosearch

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves location search for the land form.
type Handler struct {
	geocoder Geocoder
	logger   *zap.Logger
}

// NewHandler creates a new geocoding handler
func NewHandler(geocoder Geocoder, logger *zap.Logger) *Handler {
	return &Handler{
		geocoder: geocoder,
		logger:   logger,
	}
}

// RegisterRoutes registers geocoding routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	geocode := router.Group("/geocode")
	{
		geocode.GET("/search", h.search)
		geocode.GET("/reverse", h.reverse)
	}
}

// search handles GET /api/v1/geocode/search?q=
func (h *Handler) search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"results": []Place{}})
		return
	}

	places, err := h.geocoder.Search(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": places})
}

// reverse handles GET /api/v1/geocode/reverse?lat=&lng=
func (h *Handler) reverse(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng must be numbers"})
		return
	}

	place, err := h.geocoder.Reverse(c.Request.Context(), lat, lng)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, place)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrLocationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrLocationNotFound.Error()})
		return
	}
	h.logger.Error("Geocoding failed", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": "geocoding service unavailable"})
}
