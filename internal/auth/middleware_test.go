package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(companyID uuid.UUID) Claims {
	return Claims{
		CompanyID: companyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "session-provider",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(NewVerifier(testSecret, "session-provider"), zap.NewNop()))
	router.GET("/whoami", func(c *gin.Context) {
		id, ok := CompanyID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return router
}

func TestMiddleware_AcceptsValidToken(t *testing.T) {
	companyID := uuid.New()
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(companyID)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, companyID.String(), w.Body.String())
}

func TestMiddleware_QueryToken(t *testing.T) {
	companyID := uuid.New()
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami?access_token="+signToken(t, testSecret, validClaims(companyID)), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_Rejects(t *testing.T) {
	expired := validClaims(uuid.New())
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noCompany := validClaims(uuid.New())
	noCompany.CompanyID = ""

	wrongIssuer := validClaims(uuid.New())
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other", validClaims(uuid.New()))},
		{"expired", "Bearer " + signToken(t, testSecret, expired)},
		{"no company", "Bearer " + signToken(t, testSecret, noCompany)},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, wrongIssuer)},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestVerifier_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(uuid.New())).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewVerifier(testSecret, "").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
