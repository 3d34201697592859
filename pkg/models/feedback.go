package models

import (
	"time"

	"github.com/google/uuid"
)

// EnhancementFeedback is one explicit user reaction to an applied operation.
// It is immutable once created.
type EnhancementFeedback struct {
	ID                      uuid.UUID       `json:"id"`
	UserID                  string          `json:"user_id" validate:"required,max=128"`
	EnhancementType         EnhancementType `json:"enhancement_type" validate:"required,enhancement_type"`
	AppliedIntensity        float64         `json:"applied_intensity" validate:"gte=0,lte=1"`
	SatisfactionScore       float64         `json:"satisfaction_score" validate:"gte=0,lte=1"`
	VisualImprovementRating float64         `json:"visual_improvement_rating" validate:"gte=0,lte=1"`
	WouldUseAgain           bool            `json:"would_use_again"`
	Timestamp               time.Time       `json:"timestamp"`
}

// OperationFeedback is the per-operation part of a custom profile rating.
type OperationFeedback struct {
	EnhancementType EnhancementType `json:"enhancement_type" validate:"required,enhancement_type"`
	Satisfaction    float64         `json:"satisfaction" validate:"gte=0,lte=1"`
}

// CustomProfileFeedback rates a whole custom profile application.
type CustomProfileFeedback struct {
	ID            uuid.UUID           `json:"id"`
	ProfileID     uuid.UUID           `json:"profile_id"`
	UserID        string              `json:"user_id" validate:"required,max=128"`
	OverallRating float64             `json:"overall_rating" validate:"gte=0,lte=1"`
	Satisfaction  float64             `json:"satisfaction" validate:"gte=0,lte=1"`
	Naturalness   float64             `json:"naturalness" validate:"gte=0,lte=1"`
	Details       []OperationFeedback `json:"details,omitempty" validate:"omitempty,max=32,dive"`
	Timestamp     time.Time           `json:"timestamp"`
}
