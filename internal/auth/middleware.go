package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	companyIDKey = "company_id"
	userIDKey    = "user_id"
)

var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingCompany = errors.New("token carries no company")
)

// Claims are the fields the session provider puts in its access tokens.
type Claims struct {
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed access tokens. Tokens are issued elsewhere;
// this service only reads them.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier creates a token verifier. An empty issuer accepts any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		leeway: 30 * time.Second,
	}
}

// Verify parses a raw token and returns its claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.CompanyID); err != nil {
		return nil, ErrMissingCompany
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's company and user on the gin context. Browsers cannot set headers
// on WebSocket upgrades, so the token may also come as ?access_token=.
func Middleware(v *Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		claims, err := v.Verify(raw)
		if err != nil {
			logger.Debug("Rejected access token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		companyID, _ := uuid.Parse(claims.CompanyID)
		c.Set(companyIDKey, companyID)
		if userID, err := uuid.Parse(claims.Subject); err == nil {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

// CompanyID returns the tenant set by Middleware.
func CompanyID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(companyIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// UserID returns the caller set by Middleware, if the token named one.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// WithCompany stores a company on the context. Used by tests and internal
// callers that have already authenticated the request.
func WithCompany(c *gin.Context, companyID uuid.UUID) {
	c.Set(companyIDKey, companyID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("access_token")
}
