package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/retouch/pkg/models"
)

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	sv, err := NewDefaultSchemaValidator()
	require.NoError(t, err)
	return sv
}

func fields(r *ValidationResult) []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Field)
	}
	return out
}

func TestNewDefaultSchemaValidator(t *testing.T) {
	sv := newValidator(t)
	assert.Equal(t, []string{
		SchemaAnalysisSnapshot,
		SchemaCustomProfileFeedback,
		SchemaEnhancementFeedback,
		SchemaErrorResponse,
		SchemaRecommendationRequest,
	}, sv.AvailableSchemas())
	assert.True(t, sv.SchemaExists(SchemaErrorResponse))
	assert.False(t, sv.SchemaExists("content-item"))
}

func TestValidateAnalysisSnapshot(t *testing.T) {
	sv := newValidator(t)

	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"minimal", `{"image_quality":0.8,"lighting_quality":0.6}`, true},
		{"with face", `{"image_quality":0.8,"lighting_quality":0.6,"primary_face":{"quality_score":0.9,"age_category":"adult"}}`, true},
		{"null face", `{"image_quality":0.8,"lighting_quality":0.6,"primary_face":null}`, true},
		{"missing lighting", `{"image_quality":0.8}`, false},
		{"quality above one", `{"image_quality":1.2,"lighting_quality":0.6}`, false},
		{"negative beauty", `{"image_quality":0.5,"lighting_quality":0.5,"beauty_score":-0.1}`, false},
		{"bad age", `{"image_quality":0.5,"lighting_quality":0.5,"primary_face":{"quality_score":0.5,"age_category":"toddler"}}`, false},
		{"wrong type", `{"image_quality":"high","lighting_quality":0.5}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sv.ValidateAnalysisSnapshot(tt.body)
			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
		})
	}
}

func TestValidateAnalysisSnapshot_Struct(t *testing.T) {
	sv := newValidator(t)
	snapshot := models.AnalysisSnapshot{
		ImageQuality:    0.7,
		LightingQuality: 0.4,
		PrimaryFace:     &models.FaceAnalysis{QualityScore: 0.9},
	}
	assert.True(t, sv.ValidateAnalysisSnapshot(snapshot).Valid)
}

func TestValidateEnhancementFeedback(t *testing.T) {
	sv := newValidator(t)

	valid := models.EnhancementFeedback{
		ID:                uuid.New(),
		UserID:            "user-1",
		EnhancementType:   models.EnhancementClarity,
		AppliedIntensity:  0.5,
		SatisfactionScore: 0.9,
		Timestamp:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	assert.True(t, sv.ValidateEnhancementFeedback(valid).Valid)

	unknown := valid
	unknown.EnhancementType = "hdr_merge"
	result := sv.ValidateEnhancementFeedback(unknown)
	assert.False(t, result.Valid)
	assert.Contains(t, fields(result), "enhancement_type")

	outOfRange := valid
	outOfRange.SatisfactionScore = 1.5
	result = sv.ValidateEnhancementFeedback(outOfRange)
	assert.False(t, result.Valid)
	assert.Contains(t, fields(result), "satisfaction_score")
}

func TestValidateCustomProfileFeedback(t *testing.T) {
	sv := newValidator(t)

	assert.True(t, sv.ValidateCustomProfileFeedback(`{
		"user_id":"u","overall_rating":0.8,"satisfaction":0.7,"naturalness":0.9,
		"details":[{"enhancement_type":"skin_smoothing","satisfaction":0.6}]
	}`).Valid)

	assert.False(t, sv.ValidateCustomProfileFeedback(`{
		"user_id":"u","overall_rating":0.8,"satisfaction":0.7,"naturalness":0.9,
		"details":[{"enhancement_type":"skin_smoothing","satisfaction":2}]
	}`).Valid)

	assert.False(t, sv.ValidateCustomProfileFeedback(`{"user_id":"","overall_rating":0.8,"satisfaction":0.7,"naturalness":0.9}`).Valid)
}

func TestValidateRecommendationRequest(t *testing.T) {
	sv := newValidator(t)

	assert.True(t, sv.ValidateRecommendationRequest(`{
		"user_id":"u","profile_id":"hd","top_n":3,
		"analysis":{"image_quality":0.9,"lighting_quality":0.8}
	}`).Valid)

	missing := sv.ValidateRecommendationRequest(`{"user_id":"u"}`)
	assert.False(t, missing.Valid)

	nested := sv.ValidateRecommendationRequest(`{
		"user_id":"u",
		"analysis":{"image_quality":0.9,"lighting_quality":0.8,"primary_face":{"quality_score":3}}
	}`)
	assert.False(t, nested.Valid)
	assert.Contains(t, fields(nested), "analysis.primary_face.quality_score")

	tooMany := sv.ValidateRecommendationRequest(`{"user_id":"u","top_n":500,"analysis":{"image_quality":0.9,"lighting_quality":0.8}}`)
	assert.False(t, tooMany.Valid)
}

func TestValidate_MalformedAndUnknown(t *testing.T) {
	sv := newValidator(t)

	malformed := sv.ValidateEnhancementFeedback(`{"user_id":`)
	require.False(t, malformed.Valid)
	assert.Equal(t, "MALFORMED_JSON", malformed.Errors[0].Code)

	missing := NewSchemaValidator().ValidateAnalysisSnapshot(`{}`)
	require.False(t, missing.Valid)
	assert.Equal(t, "SCHEMA_NOT_FOUND", missing.Errors[0].Code)
}

func TestValidationResult_ToAPIError(t *testing.T) {
	sv := newValidator(t)

	assert.Nil(t, sv.ValidateAnalysisSnapshot(`{"image_quality":0.1,"lighting_quality":0.1}`).ToAPIError("INVALID_ANALYSIS"))

	apiErr := sv.ValidateAnalysisSnapshot(`{"image_quality":9,"lighting_quality":0.1}`).ToAPIError("INVALID_ANALYSIS")
	require.NotNil(t, apiErr)
	assert.True(t, sv.ValidateErrorResponse(apiErr).Valid)

	body := apiErr["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_ANALYSIS", body["code"])
	details := body["details"].(map[string]interface{})
	assert.Contains(t, details["fieldErrors"], "image_quality")
}
