package engine

import (
	"fmt"

	"github.com/temcen/retouch/pkg/models"
)

// Built-in profile ids.
const (
	ProfileNatural = "natural"
	ProfileGlam    = "glam"
	ProfileHD      = "hd"
	ProfileStudio  = "studio"
)

func gated(f Factor, op Operator, threshold, multiplier float64) AdaptiveAdjustment {
	return AdaptiveAdjustment{Factor: f, Operator: op, Threshold: floatPtr(threshold), Multiplier: multiplier}
}

func continuous(f Factor, multiplier float64) AdaptiveAdjustment {
	return AdaptiveAdjustment{Factor: f, Multiplier: multiplier}
}

func when(f Factor, op Operator, threshold float64) ApplicabilityCondition {
	return ApplicabilityCondition{Factor: f, Operator: op, Threshold: threshold}
}

// DefaultProfiles returns fresh copies of the built-in Natural, Glam, HD and
// Studio profiles.
func DefaultProfiles() []EnhancementProfile {
	return []EnhancementProfile{
		{
			ID:                  ProfileNatural,
			Name:                "Natural",
			Mode:                ModeNatural,
			IntensityMultiplier: 0.8,
			TargetAudience:      "everyday",
			Configurations: []EnhancementConfiguration{
				{
					Type: models.EnhancementAutoEnhance, BaseIntensity: 0.5, Priority: 3, ProcessingOrder: 10,
					QuickProcessing: true,
					Adjustments:     []AdaptiveAdjustment{continuous(FactorImageQuality, 0.6)},
				},
				{
					Type: models.EnhancementBrightness, BaseIntensity: 0.4, Priority: 2, ProcessingOrder: 20,
					QuickProcessing: true,
					Adjustments:     []AdaptiveAdjustment{gated(FactorLightingQuality, OpLessThan, 0.4, 1.5)},
				},
				{
					Type: models.EnhancementNoiseReduction, BaseIntensity: 0.3, Priority: 2, ProcessingOrder: 30,
					Conditions:    []ApplicabilityCondition{when(FactorLightingQuality, OpLessThan, 0.5)},
					ConflictsWith: []models.EnhancementType{models.EnhancementSharpening},
				},
				{
					Type: models.EnhancementSkinSmoothing, BaseIntensity: 0.3, Priority: 2, ProcessingOrder: 40,
					Conditions: []ApplicabilityCondition{when(FactorFaceQuality, OpGreaterThan, 0.3)},
					Adjustments: []AdaptiveAdjustment{
						gated(FactorSkinQuality, OpLessThan, 0.5, 1.3),
						continuous(FactorAge, 1.4),
					},
				},
				{
					Type: models.EnhancementEyeBrightening, BaseIntensity: 0.2, Priority: 1, ProcessingOrder: 50,
					Conditions: []ApplicabilityCondition{when(FactorFaceQuality, OpGreaterThan, 0.5)},
				},
				{
					Type: models.EnhancementSharpening, BaseIntensity: 0.25, Priority: 1, ProcessingOrder: 60,
					QuickProcessing: true,
					ConflictsWith:   []models.EnhancementType{models.EnhancementNoiseReduction},
				},
			},
		},
		{
			ID:                  ProfileGlam,
			Name:                "Glam",
			Mode:                ModeGlam,
			IntensityMultiplier: 1.2,
			TargetAudience:      "social",
			Conditions:          []ApplicabilityCondition{when(FactorFaceQuality, OpGreaterThan, 0.5)},
			MaximumIntensity:    floatPtr(0.85),
			Configurations: []EnhancementConfiguration{
				{Type: models.EnhancementBlemishRemoval, BaseIntensity: 0.5, Priority: 3, ProcessingOrder: 20},
				{
					Type: models.EnhancementSkinSmoothing, BaseIntensity: 0.6, Priority: 4, ProcessingOrder: 30,
					Prerequisites: []models.EnhancementType{models.EnhancementBlemishRemoval},
					Adjustments: []AdaptiveAdjustment{
						gated(FactorSkinQuality, OpLessThan, 0.6, 1.2),
						continuous(FactorBeautyScore, 0.8),
					},
				},
				{
					Type: models.EnhancementFaceContouring, BaseIntensity: 0.3, Priority: 2, ProcessingOrder: 40,
					Prerequisites: []models.EnhancementType{models.EnhancementSkinSmoothing},
					Adjustments:   []AdaptiveAdjustment{continuous(FactorAge, 1.3)},
				},
				{Type: models.EnhancementEyeBrightening, BaseIntensity: 0.5, Priority: 3, ProcessingOrder: 50},
				{
					Type: models.EnhancementTeethWhitening, BaseIntensity: 0.4, Priority: 2, ProcessingOrder: 60,
					Conditions: []ApplicabilityCondition{when(FactorFaceQuality, OpGreaterThan, 0.6)},
				},
				{
					Type: models.EnhancementSaturation, BaseIntensity: 0.35, Priority: 1, ProcessingOrder: 70,
					QuickProcessing: true,
					Adjustments:     []AdaptiveAdjustment{gated(FactorLightingQuality, OpLessThan, 0.5, 0.8)},
				},
				{Type: models.EnhancementBackgroundBlur, BaseIntensity: 0.5, Priority: 2, ProcessingOrder: 80},
			},
		},
		{
			ID:                  ProfileHD,
			Name:                "HD",
			Mode:                ModeHD,
			IntensityMultiplier: 1.0,
			TargetAudience:      "detail",
			Conditions:          []ApplicabilityCondition{when(FactorImageQuality, OpGreaterThan, 0.5)},
			Configurations: []EnhancementConfiguration{
				{
					Type: models.EnhancementNoiseReduction, BaseIntensity: 0.4, Priority: 2, ProcessingOrder: 10,
					Conditions:    []ApplicabilityCondition{when(FactorLightingQuality, OpLessThan, 0.4)},
					ConflictsWith: []models.EnhancementType{models.EnhancementSharpening},
				},
				{
					Type: models.EnhancementContrast, BaseIntensity: 0.4, Priority: 3, ProcessingOrder: 20,
					QuickProcessing: true,
					Adjustments:     []AdaptiveAdjustment{gated(FactorLightingQuality, OpLessThan, 0.5, 1.3)},
				},
				{
					Type: models.EnhancementClarity, BaseIntensity: 0.6, Priority: 4, ProcessingOrder: 30,
					Adjustments: []AdaptiveAdjustment{gated(FactorImageQuality, OpGreaterThan, 0.7, 1.5)},
				},
				{
					Type: models.EnhancementSharpening, BaseIntensity: 0.5, Priority: 3, ProcessingOrder: 40,
					QuickProcessing: true,
					Adjustments:     []AdaptiveAdjustment{gated(FactorLightingQuality, OpLessThan, 0.4, 0.7)},
					ConflictsWith:   []models.EnhancementType{models.EnhancementNoiseReduction},
				},
				{Type: models.EnhancementSaturation, BaseIntensity: 0.3, Priority: 1, ProcessingOrder: 50, QuickProcessing: true},
			},
		},
		{
			ID:                  ProfileStudio,
			Name:                "Studio",
			Mode:                ModeStudio,
			IntensityMultiplier: 1.1,
			TargetAudience:      "portrait",
			Conditions:          []ApplicabilityCondition{when(FactorFaceQuality, OpGreaterThan, 0.4)},
			MinimumIntensity:    floatPtr(0.1),
			MaximumIntensity:    floatPtr(0.9),
			Configurations: []EnhancementConfiguration{
				{
					Type: models.EnhancementPortraitLighting, BaseIntensity: 0.5, Priority: 4, ProcessingOrder: 10,
					Adjustments: []AdaptiveAdjustment{continuous(FactorLightingQuality, 0.5)},
				},
				{Type: models.EnhancementContrast, BaseIntensity: 0.3, Priority: 2, ProcessingOrder: 20, QuickProcessing: true},
				{
					Type: models.EnhancementSkinSmoothing, BaseIntensity: 0.4, Priority: 3, ProcessingOrder: 30,
					Adjustments: []AdaptiveAdjustment{gated(FactorSkinQuality, OpLessThan, 0.5, 1.25)},
				},
				{Type: models.EnhancementEyeBrightening, BaseIntensity: 0.35, Priority: 2, ProcessingOrder: 40},
				{
					Type: models.EnhancementTeethWhitening, BaseIntensity: 0.3, Priority: 1, ProcessingOrder: 50,
					Conditions: []ApplicabilityCondition{when(FactorFaceQuality, OpGreaterThan, 0.6)},
				},
				{
					Type: models.EnhancementBackgroundBlur, BaseIntensity: 0.6, Priority: 3, ProcessingOrder: 60,
					Prerequisites: []models.EnhancementType{models.EnhancementPortraitLighting},
				},
				{Type: models.EnhancementVignette, BaseIntensity: 0.25, Priority: 1, ProcessingOrder: 70},
			},
		},
	}
}

// DefaultCatalog builds the catalog of built-in profiles. It panics if the
// built-in table is invalid, which is a programming error.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultProfiles()...)
	if err != nil {
		panic(fmt.Sprintf("engine: invalid default catalog: %v", err))
	}
	return c
}
