package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator turns a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ActorFromContext returns the caller established by JWT.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Actor{}, false
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims == nil {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}
