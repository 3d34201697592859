package models

import (
	"time"

	"github.com/google/uuid"
)

// Recommendation is a single operation the rendering pipeline should run.
type Recommendation struct {
	Type            EnhancementType `json:"type"`
	Confidence      float64         `json:"confidence"`
	Intensity       float64         `json:"intensity"`
	Priority        int             `json:"priority"`
	ProcessingOrder int             `json:"processing_order"`
	Score           float64         `json:"score"`
	Reasoning       string          `json:"reasoning"`
	QuickProcessing bool            `json:"quick_processing"`
}

type RecommendationRequest struct {
	UserID          string           `json:"user_id" validate:"required,max=128"`
	ProfileID       string           `json:"profile_id,omitempty" validate:"omitempty,max=64"`
	CustomProfileID *uuid.UUID       `json:"custom_profile_id,omitempty"`
	Analysis        AnalysisSnapshot `json:"analysis"`
	TopN            int              `json:"top_n,omitempty" validate:"omitempty,min=1,max=50"`
}

// ProfileRecommendations holds the outcome of one profile. Recommendations is in
// processing order; Top is the confidence x priority ranking.
type ProfileRecommendations struct {
	ProfileID       string           `json:"profile_id"`
	ProfileName     string           `json:"profile_name"`
	Mode            string           `json:"mode"`
	TotalScore      float64          `json:"total_score"`
	Recommendations []Recommendation `json:"recommendations"`
	Top             []Recommendation `json:"top,omitempty"`
}

type RecommendationResponse struct {
	UserID      string                   `json:"user_id"`
	Results     []ProfileRecommendations `json:"results"`
	GeneratedAt time.Time                `json:"generated_at"`
	CacheHit    bool                     `json:"cache_hit"`
}

type CreateCustomProfileRequest struct {
	BaseProfileID string `json:"base_profile_id" validate:"required,max=64"`
	Name          string `json:"name" validate:"required,min=1,max=100"`
}
