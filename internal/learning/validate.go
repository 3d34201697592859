package learning

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/temcen/retouch/pkg/models"
)

var (
	ErrInvalidFeedback = errors.New("invalid feedback")
	ErrProfileNotFound = errors.New("learning profile not found")
	ErrUserMismatch    = errors.New("profile belongs to another user")
)

var validate = NewValidator()

// NewValidator returns a validator that understands the enhancement_type tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("enhancement_type", func(fl validator.FieldLevel) bool {
		return models.EnhancementType(fl.Field().String()).IsValid()
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateFeedback rejects out-of-range scores instead of clamping them.
func ValidateFeedback(fb *models.EnhancementFeedback) error {
	if err := validate.Struct(fb); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}
	return checkFinite(fb.AppliedIntensity, fb.SatisfactionScore, fb.VisualImprovementRating)
}

func ValidateCustomFeedback(fb *models.CustomProfileFeedback) error {
	if err := validate.Struct(fb); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeedback, err)
	}
	values := []float64{fb.OverallRating, fb.Satisfaction, fb.Naturalness}
	for _, d := range fb.Details {
		values = append(values, d.Satisfaction)
	}
	return checkFinite(values...)
}

func checkFinite(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite score", ErrInvalidFeedback)
		}
	}
	return nil
}
