package lands

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"agrotrace/company-portal/portal-backend/internal/auth"
	"agrotrace/company-portal/portal-backend/internal/deforestation"
)

func newTestRouter(s *Service, companyID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	if companyID != uuid.Nil {
		api.Use(func(c *gin.Context) { auth.WithCompany(c, companyID) })
	}
	NewHandler(s, zap.NewNop()).RegisterRoutes(api)
	return router
}

func TestHandler_CreateLand(t *testing.T) {
	companyID := uuid.New()
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(l *Land) bool { return l.CompanyID == companyID })).Return(nil)
	router := newTestRouter(newTestService(repo, nil, nil), companyID)

	body := `{"name":"North plot","location":"Bogor","geoPolygon":` + jsonString(milliRect) + `}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/lands", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"areaHectares":1.24`)
	repo.AssertExpectations(t)
}

func TestHandler_CreateLandInvalidPolygon(t *testing.T) {
	router := newTestRouter(newTestService(new(MockRepository), nil, nil), uuid.New())

	body := `{"name":"Plot","geoPolygon":"{\"type\":\"Point\",\"coordinates\":[1,2]}"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/lands", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid land polygon")
}

func TestHandler_RequiresCompany(t *testing.T) {
	router := newTestRouter(newTestService(new(MockRepository), nil, nil), uuid.Nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lands", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ListLandsPassesSearch(t *testing.T) {
	companyID := uuid.New()
	repo := new(MockRepository)
	repo.On("List", mock.Anything, LandFilter{CompanyID: companyID, Search: "bogor", Limit: 100}).
		Return([]Land{{Name: "Bogor plot"}}, nil)
	router := newTestRouter(newTestService(repo, nil, nil), companyID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lands?search=bogor", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	repo.AssertExpectations(t)
}

func TestHandler_GetLandNotFound(t *testing.T) {
	companyID, id := uuid.New(), uuid.New()
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, companyID, id).Return(nil, ErrNotFound)
	router := newTestRouter(newTestService(repo, nil, nil), companyID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lands/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lands/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_DeforestationCheckFailureIsBadGateway(t *testing.T) {
	companyID, id := uuid.New(), uuid.New()
	stored := milliRect
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, companyID, id).Return(&Land{ID: id, GeoPolygon: &stored}, nil)
	checker := new(MockChecker)
	checker.On("Check", mock.Anything, milliRect, 2).Return(false, deforestation.ErrInference)
	router := newTestRouter(newTestService(repo, nil, checker), companyID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/lands/"+id.String()+"/deforestation-check?years=2", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "deforestation inference failed")
}

func TestHandler_StaleDeforestationCheckIsConflict(t *testing.T) {
	companyID, id := uuid.New(), uuid.New()
	stored := milliRect
	repo := new(MockRepository)
	repo.On("GetByID", mock.Anything, companyID, id).Return(&Land{ID: id, GeoPolygon: &stored}, nil)
	repo.On("SetDeforestationResult", mock.Anything, id, milliRect, true, mock.Anything).Return(ErrStaleCheck)
	checker := new(MockChecker)
	checker.On("Check", mock.Anything, milliRect, 5).Return(true, nil)
	router := newTestRouter(newTestService(repo, nil, checker), companyID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/lands/"+id.String()+"/deforestation-check?years=5", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "polygon changed")
}

func TestHandler_DeleteLand(t *testing.T) {
	companyID, id := uuid.New(), uuid.New()
	repo := new(MockRepository)
	repo.On("Delete", mock.Anything, companyID, id).Return(nil)
	router := newTestRouter(newTestService(repo, nil, nil), companyID)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/lands/"+id.String(), nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func jsonString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
