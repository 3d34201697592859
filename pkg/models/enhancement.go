package models

import "sort"

// EnhancementType identifies a single enhancement operation. The engine only
// uses it as an identity for ordering, conflict and prerequisite lookups.
type EnhancementType string

const (
	EnhancementSkinSmoothing    EnhancementType = "skin_smoothing"
	EnhancementBlemishRemoval   EnhancementType = "blemish_removal"
	EnhancementEyeBrightening   EnhancementType = "eye_brightening"
	EnhancementTeethWhitening   EnhancementType = "teeth_whitening"
	EnhancementBrightness       EnhancementType = "brightness"
	EnhancementContrast         EnhancementType = "contrast"
	EnhancementSaturation       EnhancementType = "saturation"
	EnhancementWarmth           EnhancementType = "warmth"
	EnhancementClarity          EnhancementType = "clarity"
	EnhancementSharpening       EnhancementType = "sharpening"
	EnhancementNoiseReduction   EnhancementType = "noise_reduction"
	EnhancementBackgroundBlur   EnhancementType = "background_blur"
	EnhancementPortraitLighting EnhancementType = "portrait_lighting"
	EnhancementFaceContouring   EnhancementType = "face_contouring"
	EnhancementVignette         EnhancementType = "vignette"
	EnhancementAutoEnhance      EnhancementType = "auto_enhance"
)

// ValidEnhancementTypes is the closed vocabulary of operations.
var ValidEnhancementTypes = map[EnhancementType]string{
	EnhancementSkinSmoothing:    "Softens skin texture while preserving detail",
	EnhancementBlemishRemoval:   "Removes small blemishes and spots",
	EnhancementEyeBrightening:   "Brightens the eye region",
	EnhancementTeethWhitening:   "Whitens visible teeth",
	EnhancementBrightness:       "Global exposure adjustment",
	EnhancementContrast:         "Global contrast adjustment",
	EnhancementSaturation:       "Color saturation adjustment",
	EnhancementWarmth:           "Color temperature shift",
	EnhancementClarity:          "Local mid-tone contrast",
	EnhancementSharpening:       "Edge sharpening",
	EnhancementNoiseReduction:   "Luminance and chroma denoise",
	EnhancementBackgroundBlur:   "Synthetic depth of field",
	EnhancementPortraitLighting: "Relights the detected face",
	EnhancementFaceContouring:   "Subtle facial contour shaping",
	EnhancementVignette:         "Edge darkening",
	EnhancementAutoEnhance:      "One-shot automatic correction",
}

func (t EnhancementType) IsValid() bool {
	_, ok := ValidEnhancementTypes[t]
	return ok
}

func (t EnhancementType) String() string {
	return string(t)
}

// AllEnhancementTypes returns the vocabulary in a stable order.
func AllEnhancementTypes() []EnhancementType {
	types := make([]EnhancementType, 0, len(ValidEnhancementTypes))
	for t := range ValidEnhancementTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Enhancement is a concrete operation with the intensity it should run at.
type Enhancement struct {
	Type      EnhancementType `json:"type" validate:"required,enhancement_type"`
	Intensity float64         `json:"intensity" validate:"gte=0,lte=1"`
}
