// Package docs serves machine-readable API documentation: the route table,
// the JSON schemas request bodies are validated against, and the error codes.
package docs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/temcen/retouch/internal/validation"
)

type Config struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
	BasePath    string `json:"base_path"`
}

type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Schema      string `json:"schema,omitempty"`
	Description string `json:"description"`
}

type ErrorCodeInfo struct {
	Code        string `json:"code"`
	HTTPStatus  int    `json:"http_status"`
	Description string `json:"description"`
}

type Handler struct {
	config    Config
	endpoints []Endpoint
}

func NewHandler(config Config) *Handler {
	return &Handler{config: config, endpoints: endpoints()}
}

func DefaultConfig() Config {
	return Config{
		Title:       "Retouch API",
		Description: "Adaptive photo enhancement recommendations that learn from user feedback",
		Version:     "1.0.0",
		BasePath:    "/api/v1",
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	docs := router.Group("/docs")
	{
		docs.GET("", h.Index)
		docs.GET("/schemas", h.Schemas)
		docs.GET("/schemas/:name", h.Schema)
		docs.GET("/errors", h.Errors)
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"info":      h.config,
		"endpoints": h.endpoints,
	})
}

func (h *Handler) Schemas(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"schemas": schemaNames()})
}

func (h *Handler) Schema(c *gin.Context) {
	source, err := validation.SchemaSource(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "SCHEMA_NOT_FOUND",
				"message": err.Error(),
			},
		})
		return
	}
	c.Data(http.StatusOK, "application/schema+json", source)
}

func (h *Handler) Errors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"errors": errorCodes})
}

func schemaNames() []string {
	return []string{
		validation.SchemaAnalysisSnapshot,
		validation.SchemaCustomProfileFeedback,
		validation.SchemaEnhancementFeedback,
		validation.SchemaErrorResponse,
		validation.SchemaRecommendationRequest,
	}
}

func endpoints() []Endpoint {
	return []Endpoint{
		{Method: "GET", Path: "/profiles", Description: "List catalog profiles"},
		{Method: "GET", Path: "/profiles/:id", Description: "Get one catalog profile"},
		{Method: "POST", Path: "/recommendations", Schema: validation.SchemaRecommendationRequest, Description: "Recommend enhancements for an analysis snapshot"},
		{Method: "POST", Path: "/feedback", Schema: validation.SchemaEnhancementFeedback, Description: "Rate an applied enhancement"},
		{Method: "GET", Path: "/users/:userId/learning", Description: "Learned preferences and effectiveness summary"},
		{Method: "GET", Path: "/users/:userId/custom-profiles", Description: "List a user's custom profiles"},
		{Method: "POST", Path: "/users/:userId/custom-profiles", Description: "Derive a custom profile from a catalog profile"},
		{Method: "GET", Path: "/custom-profiles/:profileId", Description: "Get a custom profile"},
		{Method: "POST", Path: "/custom-profiles/:profileId/feedback", Schema: validation.SchemaCustomProfileFeedback, Description: "Rate a custom profile application"},
	}
}

var errorCodes = []ErrorCodeInfo{
	{Code: "INVALID_JSON", HTTPStatus: 400, Description: "Body is not valid JSON for the endpoint"},
	{Code: "INVALID_REQUEST", HTTPStatus: 400, Description: "Recommendation or custom profile request failed validation"},
	{Code: "INVALID_FEEDBACK", HTTPStatus: 400, Description: "Feedback is missing fields or has scores outside [0,1]"},
	{Code: "INVALID_PROFILE_ID", HTTPStatus: 400, Description: "Custom profile id is not a UUID"},
	{Code: "VALIDATION_ERROR", HTTPStatus: 400, Description: "Path or query parameter is invalid"},
	{Code: "MISSING_AUTHORIZATION", HTTPStatus: 401, Description: "Bearer token required"},
	{Code: "INVALID_TOKEN", HTTPStatus: 401, Description: "Token is invalid or expired"},
	{Code: "FORBIDDEN", HTTPStatus: 403, Description: "Caller may not act for this user"},
	{Code: "PROFILE_NOT_FOUND", HTTPStatus: 404, Description: "Unknown catalog profile"},
	{Code: "CUSTOM_PROFILE_NOT_FOUND", HTTPStatus: 404, Description: "Unknown custom profile"},
	{Code: "CONCURRENT_UPDATE", HTTPStatus: 409, Description: "Custom profile changed concurrently, retry"},
	{Code: "RATE_LIMIT_EXCEEDED", HTTPStatus: 429, Description: "Too many requests in the current window"},
	{Code: "FEEDBACK_UNAVAILABLE", HTTPStatus: 503, Description: "Feedback queue is full or shutting down, retry"},
}
