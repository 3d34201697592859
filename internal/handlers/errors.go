package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/services"
	"github.com/temcen/retouch/internal/store"
)

func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without their details.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, learning.ErrInvalidFeedback):
		errorResponse(c, http.StatusBadRequest, "INVALID_FEEDBACK", err.Error())
	case errors.Is(err, services.ErrInvalidProfileID):
		errorResponse(c, http.StatusBadRequest, "INVALID_PROFILE_ID", err.Error())
	case errors.Is(err, engine.ErrProfileNotFound):
		errorResponse(c, http.StatusNotFound, "PROFILE_NOT_FOUND", err.Error())
	case errors.Is(err, learning.ErrProfileNotFound):
		errorResponse(c, http.StatusNotFound, "CUSTOM_PROFILE_NOT_FOUND", "Custom profile not found")
	case errors.Is(err, learning.ErrUserMismatch):
		errorResponse(c, http.StatusForbidden, "FORBIDDEN", "Profile belongs to another user")
	case errors.Is(err, store.ErrStaleVersion):
		errorResponse(c, http.StatusConflict, "CONCURRENT_UPDATE", "Custom profile was updated concurrently, retry")
	case errors.Is(err, services.ErrQueueFull), errors.Is(err, services.ErrProcessorStopped):
		c.Header("Retry-After", "1")
		errorResponse(c, http.StatusServiceUnavailable, "FEEDBACK_UNAVAILABLE", "Feedback processing is temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		errorResponse(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	}
}

func forbidden(c *gin.Context) {
	errorResponse(c, http.StatusForbidden, "FORBIDDEN", "Not allowed to act for this user")
}
