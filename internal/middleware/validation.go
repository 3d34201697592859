package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/temcen/retouch/internal/validation"
)

// maxBodyBytes bounds the request bodies read for schema validation.
const maxBodyBytes = 1 << 20

// ValidationMiddleware checks request bodies against the JSON schemas before
// handlers bind them.
type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

func (vm *ValidationMiddleware) ValidateRecommendationRequest() gin.HandlerFunc {
	return vm.validateRequestBody("INVALID_REQUEST", vm.validator.ValidateRecommendationRequest)
}

func (vm *ValidationMiddleware) ValidateEnhancementFeedback() gin.HandlerFunc {
	return vm.validateRequestBody("INVALID_FEEDBACK", vm.validator.ValidateEnhancementFeedback)
}

func (vm *ValidationMiddleware) ValidateCustomProfileFeedback() gin.HandlerFunc {
	return vm.validateRequestBody("INVALID_FEEDBACK", vm.validator.ValidateCustomProfileFeedback)
}

func (vm *ValidationMiddleware) validateRequestBody(code string, validate func(interface{}) *validation.ValidationResult) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		if err != nil {
			sendValidationError(c, "BODY_READ_ERROR", "Failed to read request body", nil)
			return
		}
		if len(bodyBytes) > maxBodyBytes {
			sendValidationError(c, "BODY_TOO_LARGE", "Request body exceeds 1MiB", nil)
			return
		}
		if len(bodyBytes) == 0 {
			sendValidationError(c, "EMPTY_BODY", "Request body is required", nil)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		result := validate(bodyBytes)
		if !result.Valid {
			apiError := result.ToAPIError(code)
			if errorObj, ok := apiError["error"].(map[string]interface{}); ok {
				annotate(c, errorObj)
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError)
			return
		}

		c.Next()
	}
}

// ValidateQueryParams checks the path and query parameters the API accepts.
func (vm *ValidationMiddleware) ValidateQueryParams() gin.HandlerFunc {
	return func(c *gin.Context) {
		errors := make([]validation.ValidationError, 0)

		if top := c.Query("top"); top != "" {
			if n, err := strconv.Atoi(top); err != nil || n < 1 || n > 50 {
				errors = append(errors, validation.ValidationError{
					Field:   "top",
					Message: "Top must be an integer between 1 and 50",
					Code:    "INVALID_QUERY_PARAM",
					Value:   top,
				})
			}
		}

		if userID := c.Param("userId"); userID != "" && len(userID) > 128 {
			errors = append(errors, validation.ValidationError{
				Field:   "userId",
				Message: "User ID must be at most 128 characters",
				Code:    "INVALID_PATH_PARAM",
				Value:   userID,
			})
		}

		if profileID := c.Param("profileId"); profileID != "" {
			if _, err := uuid.Parse(profileID); err != nil {
				errors = append(errors, validation.ValidationError{
					Field:   "profileId",
					Message: "Profile ID must be a valid UUID",
					Code:    "INVALID_PATH_PARAM",
					Value:   profileID,
				})
			}
		}

		if len(errors) > 0 {
			result := &validation.ValidationResult{Errors: errors}
			apiError := result.ToAPIError("VALIDATION_ERROR")
			if errorObj, ok := apiError["error"].(map[string]interface{}); ok {
				annotate(c, errorObj)
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, apiError)
			return
		}

		c.Next()
	}
}

// ValidateHeaders requires a JSON content type on requests with bodies.
func (vm *ValidationMiddleware) ValidateHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		contentType := c.GetHeader("Content-Type")
		switch {
		case contentType == "":
			sendValidationError(c, "MISSING_HEADER", "Content-Type header is required", nil)
			return
		case !strings.Contains(contentType, "application/json"):
			sendValidationError(c, "INVALID_HEADER", "Content-Type must be application/json", map[string]interface{}{
				"content_type": contentType,
			})
			return
		}

		c.Next()
	}
}

func sendValidationError(c *gin.Context, code, message string, details map[string]interface{}) {
	errorObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if details != nil {
		errorObj["details"] = details
	}
	annotate(c, errorObj)
	c.AbortWithStatusJSON(http.StatusBadRequest, map[string]interface{}{"error": errorObj})
}

func annotate(c *gin.Context, errorObj map[string]interface{}) {
	errorObj["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	errorObj["path"] = c.Request.URL.Path
	errorObj["method"] = c.Request.Method
	if requestID, ok := c.Get(contextRequestID); ok {
		errorObj["request_id"] = requestID
	}
}
