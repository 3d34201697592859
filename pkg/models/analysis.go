package models

// AgeCategory is the coarse age bucket reported by face analysis.
type AgeCategory string

const (
	AgeChild      AgeCategory = "child"
	AgeTeen       AgeCategory = "teen"
	AgeYoungAdult AgeCategory = "young_adult"
	AgeAdult      AgeCategory = "adult"
	AgeSenior     AgeCategory = "senior"
)

// FaceAnalysis describes the primary face detected in a photo.
type FaceAnalysis struct {
	QualityScore       float64     `json:"quality_score" validate:"gte=0,lte=1"`
	SkinToneConfidence *float64    `json:"skin_tone_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	AgeCategory        AgeCategory `json:"age_category,omitempty" validate:"omitempty,oneof=child teen young_adult adult senior"`
}

// AnalysisSnapshot is the upstream computer-vision result for one photo.
// All scores are in [0,1].
type AnalysisSnapshot struct {
	ImageID         string        `json:"image_id,omitempty"`
	ImageQuality    float64       `json:"image_quality" validate:"gte=0,lte=1"`
	LightingQuality float64       `json:"lighting_quality" validate:"gte=0,lte=1"`
	BeautyScore     *float64      `json:"beauty_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	SceneType       string        `json:"scene_type,omitempty"`
	PrimaryFace     *FaceAnalysis `json:"primary_face,omitempty" validate:"omitempty"`
}

// HasFace reports whether a primary face was detected.
func (a *AnalysisSnapshot) HasFace() bool {
	return a != nil && a.PrimaryFace != nil
}
