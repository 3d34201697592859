package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/middleware"
	"github.com/temcen/retouch/internal/services"
	"github.com/temcen/retouch/pkg/models"
)

type EnhancementHandler struct {
	service   *services.EnhancementService
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewEnhancementHandler(service *services.EnhancementService, logger *logrus.Logger) *EnhancementHandler {
	return &EnhancementHandler{
		service:   service,
		validator: learning.NewValidator(),
		logger:    logger,
	}
}

type ProfileSummary struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Mode       string               `json:"mode"`
	Operations []models.Enhancement `json:"operations"`
}

func summarizeProfile(p engine.EnhancementProfile) ProfileSummary {
	ops := make([]models.Enhancement, 0, len(p.Configurations))
	for _, cfg := range p.Configurations {
		ops = append(ops, models.Enhancement{Type: cfg.Type, Intensity: cfg.BaseIntensity})
	}
	return ProfileSummary{ID: p.ID, Name: p.Name, Mode: string(p.Mode), Operations: ops}
}

func (h *EnhancementHandler) ListProfiles(c *gin.Context) {
	profiles := h.service.Profiles()
	summaries := make([]ProfileSummary, 0, len(profiles))
	for _, p := range profiles {
		summaries = append(summaries, summarizeProfile(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"profiles": summaries,
		"count":    len(summaries),
	})
}

func (h *EnhancementHandler) GetProfile(c *gin.Context) {
	profile, err := h.service.Profile(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *EnhancementHandler) Recommend(c *gin.Context) {
	var request models.RecommendationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in recommendation request")
		errorResponse(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if top := c.Query("top"); top != "" {
		if n, err := strconv.Atoi(top); err == nil && n > 0 {
			request.TopN = n
		}
	}
	if !middleware.CanActAs(c, request.UserID) {
		forbidden(c)
		return
	}

	resp, err := h.service.Recommend(c.Request.Context(), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *EnhancementHandler) LearningReport(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.CanActAs(c, userID) {
		forbidden(c)
		return
	}

	report, err := h.service.LearningReport(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *EnhancementHandler) CreateCustomProfile(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.CanActAs(c, userID) {
		forbidden(c)
		return
	}

	var request models.CreateCustomProfileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	custom, err := h.service.CreateCustomProfile(c.Request.Context(), userID, &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, custom)
}

func (h *EnhancementHandler) ListCustomProfiles(c *gin.Context) {
	userID := c.Param("userId")
	if !middleware.CanActAs(c, userID) {
		forbidden(c)
		return
	}

	profiles, err := h.service.CustomProfiles(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if profiles == nil {
		profiles = []*learning.CustomEnhancementProfile{}
	}
	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

func (h *EnhancementHandler) GetCustomProfile(c *gin.Context) {
	custom, err := h.service.CustomProfile(c.Request.Context(), ownerFilter(c), c.Param("profileId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, custom)
}

// ownerFilter is the user a lookup is restricted to, or "" when the caller
// may see every user's profiles.
func ownerFilter(c *gin.Context) string {
	caller, ok := middleware.UserFromContext(c)
	if !ok || middleware.IsAdmin(c) {
		return ""
	}
	return caller
}
