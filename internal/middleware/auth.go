package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/services"
)

const (
	contextUserID = "user_id"
	contextScope  = "scope"

	ScopeAdmin = "admin"
)

// Auth verifies HS256 bearer tokens. With auth disabled every request passes
// and no user is bound to the context.
func Auth(authService *services.AuthService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authService.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "MISSING_AUTHORIZATION", "Authorization header is required")
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") || tokenParts[1] == "" {
			abort(c, http.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT", "Authorization header must be in format 'Bearer <token>'")
			return
		}

		claims, err := authService.ValidateToken(tokenParts[1])
		if err != nil {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Invalid JWT token")
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextScope, claims.Scope)
		c.Next()
	}
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(contextUserID)
	if !ok {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

// CanActAs reports whether the caller may read or write userID's data. Open
// deployments allow everything; admins may act for any user.
func CanActAs(c *gin.Context, userID string) bool {
	caller, ok := UserFromContext(c)
	if !ok {
		return true
	}
	return IsAdmin(c) || caller == userID
}

func IsAdmin(c *gin.Context) bool {
	scope, _ := c.Get(contextScope)
	return scope == ScopeAdmin
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
