package auth

import (
	"net/http"
	"strings"

	"arena-indexer/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": message, "code": apperrors.CodeUnauthorized},
	})
}

// AuthMiddleware validates admin JWT tokens and protects routes
func AuthMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Warn("Admin token rejected")
			abort(c, "Invalid or expired token")
			return
		}

		c.Set("operator", claims.Operator)
		c.Next()
	}
}

// GetOperator retrieves the authenticated operator from the context
func GetOperator(c *gin.Context) (string, bool) {
	v, exists := c.Get("operator")
	if !exists {
		return "", false
	}
	op, ok := v.(string)
	return op, ok
}
