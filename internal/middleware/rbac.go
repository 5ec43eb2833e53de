package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/models"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

// RequireRoles rejects callers whose role is not listed. Workflows repeat their own
// authorization; this only keeps whole route groups closed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
