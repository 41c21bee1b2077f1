package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/gin-gonic/gin"
)

const claimsKey = "auth_claims"

// Middleware validates "Bearer <token>" headers. With authentication
// disabled every request passes.
func (j *JWTHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !j.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse(types.CodeUnauthorized, "missing or malformed authorization header", nil))
			return
		}

		claims, err := j.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse(types.CodeUnauthorized, "invalid or expired token", nil))
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequirePermission must run after Middleware.
func (j *JWTHandler) RequirePermission(required Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !j.Enabled() {
			c.Next()
			return
		}

		value, exists := c.Get(claimsKey)
		claims, ok := value.(*JWTClaims)
		if !exists || !ok || !claims.Has(required) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse(types.CodeForbidden, "insufficient permissions", string(required)))
			return
		}

		c.Next()
	}
}
