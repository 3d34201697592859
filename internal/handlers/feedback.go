package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/middleware"
	"github.com/temcen/retouch/internal/services"
	"github.com/temcen/retouch/pkg/models"
)

type FeedbackHandler struct {
	processor *services.FeedbackProcessor
	logger    *logrus.Logger
}

func NewFeedbackHandler(processor *services.FeedbackProcessor, logger *logrus.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		processor: processor,
		logger:    logger,
	}
}

// Submit applies one enhancement rating and returns the updated learning
// profile. Out-of-range scores are rejected, not clamped.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var feedback models.EnhancementFeedback
	if err := c.ShouldBindJSON(&feedback); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in feedback request")
		errorResponse(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	if !middleware.CanActAs(c, feedback.UserID) {
		forbidden(c)
		return
	}

	profile, err := h.processor.Process(c.Request.Context(), feedback)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "applied",
		"profile": profile,
	})
}

// SubmitCustom rates a custom profile. The profile id comes from the path.
func (h *FeedbackHandler) SubmitCustom(c *gin.Context) {
	profileID, err := services.ParseProfileID(c.Param("profileId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var feedback models.CustomProfileFeedback
	if err := c.ShouldBindJSON(&feedback); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	feedback.ProfileID = profileID

	if !middleware.CanActAs(c, feedback.UserID) {
		forbidden(c)
		return
	}

	custom, err := h.processor.ProcessCustom(c.Request.Context(), feedback)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "applied",
		"profile": custom,
	})
}
