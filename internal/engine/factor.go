package engine

import (
	"github.com/temcen/retouch/pkg/models"
)

// Factor names an analysis signal that rules can react to.
type Factor string

const (
	FactorImageQuality    Factor = "image_quality"
	FactorLightingQuality Factor = "lighting_quality"
	FactorFaceQuality     Factor = "face_quality"
	FactorSkinQuality     Factor = "skin_quality"
	FactorBeautyScore     Factor = "beauty_score"
	FactorAge             Factor = "age"
)

const (
	// neutralFactorValue is returned for quality-like factors whose input is missing.
	neutralFactorValue = 0.5

	// noFaceQuality is the face quality of a photo without a detected face, so
	// face-gated profiles and operations never apply to it.
	noFaceQuality = 0.0
)

var ageFactorValues = map[models.AgeCategory]float64{
	models.AgeChild:      0.1,
	models.AgeTeen:       0.3,
	models.AgeYoungAdult: 0.5,
	models.AgeAdult:      0.7,
	models.AgeSenior:     0.9,
}

func (f Factor) IsValid() bool {
	switch f {
	case FactorImageQuality, FactorLightingQuality, FactorFaceQuality,
		FactorSkinQuality, FactorBeautyScore, FactorAge:
		return true
	}
	return false
}

// UserSignals is the read-only view of a learned user profile the engine
// consumes. Implementations must be safe to read for the duration of a call.
type UserSignals interface {
	ConfidenceAdjustment(t models.EnhancementType) float64
	PreferenceWeight(t models.EnhancementType) (float64, bool)
	DeclaredAgeCategory() (models.AgeCategory, bool)
}

// ExtractFactor maps a factor to a value in [0,1]. It never fails: missing
// inputs resolve to documented defaults.
//
//   - face_quality without a face is 0.0
//   - skin_quality without a face or skin-tone confidence is 0.5
//   - beauty_score without a score is 0.5
//   - age uses the face age category, then the user's declared category, then 0.5
func ExtractFactor(f Factor, analysis *models.AnalysisSnapshot, user UserSignals) float64 {
	if analysis == nil {
		analysis = &models.AnalysisSnapshot{ImageQuality: neutralFactorValue, LightingQuality: neutralFactorValue}
	}

	switch f {
	case FactorImageQuality:
		return clamp01(analysis.ImageQuality)
	case FactorLightingQuality:
		return clamp01(analysis.LightingQuality)
	case FactorFaceQuality:
		if !analysis.HasFace() {
			return noFaceQuality
		}
		return clamp01(analysis.PrimaryFace.QualityScore)
	case FactorSkinQuality:
		if !analysis.HasFace() || analysis.PrimaryFace.SkinToneConfidence == nil {
			return neutralFactorValue
		}
		return clamp01(*analysis.PrimaryFace.SkinToneConfidence)
	case FactorBeautyScore:
		if analysis.BeautyScore == nil {
			return neutralFactorValue
		}
		return clamp01(*analysis.BeautyScore)
	case FactorAge:
		if analysis.HasFace() {
			if v, ok := ageFactorValues[analysis.PrimaryFace.AgeCategory]; ok {
				return v
			}
		}
		if user != nil {
			if category, ok := user.DeclaredAgeCategory(); ok {
				if v, ok := ageFactorValues[category]; ok {
					return v
				}
			}
		}
		return neutralFactorValue
	}
	return neutralFactorValue
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
