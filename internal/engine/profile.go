package engine

import (
	"github.com/temcen/retouch/pkg/models"
)

// Mode tags the style a profile targets.
type Mode string

const (
	ModeNatural Mode = "natural"
	ModeGlam    Mode = "glam"
	ModeHD      Mode = "hd"
	ModeStudio  Mode = "studio"
	ModeCustom  Mode = "custom"
)

// AdaptiveAdjustment scales an operation's intensity from one factor. With a
// threshold the multiplier is a step applied only when the condition holds;
// without one it is interpolated as 1 + value*(multiplier-1).
type AdaptiveAdjustment struct {
	Factor     Factor   `json:"factor" yaml:"factor"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
	Threshold  *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Operator   Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// Gated reports whether the adjustment is a step function.
func (a AdaptiveAdjustment) Gated() bool {
	return a.Threshold != nil
}

// Effective returns the multiplier to apply and whether a gated adjustment fired.
func (a AdaptiveAdjustment) Effective(analysis *models.AnalysisSnapshot, user UserSignals) (float64, bool) {
	value := ExtractFactor(a.Factor, analysis, user)
	if a.Gated() {
		if Evaluate(a.Operator, value, *a.Threshold) {
			return a.Multiplier, true
		}
		return 1.0, false
	}
	return 1 + value*(a.Multiplier-1), false
}

// EnhancementConfiguration is one operation inside a profile.
type EnhancementConfiguration struct {
	Type            models.EnhancementType   `json:"type" yaml:"type"`
	BaseIntensity   float64                  `json:"base_intensity" yaml:"base_intensity"`
	Priority        int                      `json:"priority" yaml:"priority"`
	ProcessingOrder int                      `json:"processing_order" yaml:"processing_order"`
	Adjustments     []AdaptiveAdjustment     `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
	Conditions      []ApplicabilityCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	QuickProcessing bool                     `json:"quick_processing" yaml:"quick_processing"`
	Prerequisites   []models.EnhancementType `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	ConflictsWith   []models.EnhancementType `json:"conflicts_with,omitempty" yaml:"conflicts_with,omitempty"`
}

// EnhancementProfile is a named bundle of operations with profile-level gates.
// Catalog profiles are immutable; callers receive copies.
type EnhancementProfile struct {
	ID                  string                     `json:"id" yaml:"id"`
	Name                string                     `json:"name" yaml:"name"`
	Mode                Mode                       `json:"mode" yaml:"mode"`
	Configurations      []EnhancementConfiguration `json:"configurations" yaml:"configurations"`
	IntensityMultiplier float64                    `json:"intensity_multiplier" yaml:"intensity_multiplier"`
	Conditions          []ApplicabilityCondition   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	TargetAudience      string                     `json:"target_audience,omitempty" yaml:"target_audience,omitempty"`
	MinimumIntensity    *float64                   `json:"minimum_intensity,omitempty" yaml:"minimum_intensity,omitempty"`
	MaximumIntensity    *float64                   `json:"maximum_intensity,omitempty" yaml:"maximum_intensity,omitempty"`
}

// IsApplicable is the AND over the profile's conditions.
func (p *EnhancementProfile) IsApplicable(analysis *models.AnalysisSnapshot, user UserSignals) bool {
	return allHold(p.Conditions, analysis, user)
}

// Bounds returns the intensity clamp range of the profile.
func (p *EnhancementProfile) Bounds() (float64, float64) {
	lo, hi := 0.0, 1.0
	if p.MinimumIntensity != nil {
		lo = *p.MinimumIntensity
	}
	if p.MaximumIntensity != nil {
		hi = *p.MaximumIntensity
	}
	return lo, hi
}

func (p *EnhancementProfile) clampIntensity(v float64) float64 {
	lo, hi := p.Bounds()
	return clamp(v, lo, hi)
}

// ComputeIntensity runs base x multiplier through every adjustment in order
// and clamps once at the end.
func (p *EnhancementProfile) ComputeIntensity(cfg EnhancementConfiguration, analysis *models.AnalysisSnapshot, user UserSignals) float64 {
	intensity, _ := p.computeIntensity(cfg, analysis, user)
	return intensity
}

type appliedAdjustment struct {
	adjustment AdaptiveAdjustment
	value      float64
	effective  float64
}

func (p *EnhancementProfile) computeIntensity(cfg EnhancementConfiguration, analysis *models.AnalysisSnapshot, user UserSignals) (float64, []appliedAdjustment) {
	intensity := cfg.BaseIntensity * p.IntensityMultiplier
	var applied []appliedAdjustment
	for _, adj := range cfg.Adjustments {
		effective, fired := adj.Effective(analysis, user)
		intensity *= effective
		if fired || (!adj.Gated() && effective != 1.0) {
			applied = append(applied, appliedAdjustment{
				adjustment: adj,
				value:      ExtractFactor(adj.Factor, analysis, user),
				effective:  effective,
			})
		}
	}
	return p.clampIntensity(intensity), applied
}

// Clone returns a deep copy.
func (p EnhancementProfile) Clone() EnhancementProfile {
	out := p
	out.Conditions = append([]ApplicabilityCondition(nil), p.Conditions...)
	out.MinimumIntensity = copyFloat(p.MinimumIntensity)
	out.MaximumIntensity = copyFloat(p.MaximumIntensity)
	if p.Configurations != nil {
		out.Configurations = make([]EnhancementConfiguration, len(p.Configurations))
		for i, cfg := range p.Configurations {
			out.Configurations[i] = cfg.clone()
		}
	}
	return out
}

func (c EnhancementConfiguration) clone() EnhancementConfiguration {
	out := c
	out.Conditions = append([]ApplicabilityCondition(nil), c.Conditions...)
	out.Prerequisites = append([]models.EnhancementType(nil), c.Prerequisites...)
	out.ConflictsWith = append([]models.EnhancementType(nil), c.ConflictsWith...)
	if c.Adjustments != nil {
		out.Adjustments = make([]AdaptiveAdjustment, len(c.Adjustments))
		for i, adj := range c.Adjustments {
			adj.Threshold = copyFloat(adj.Threshold)
			out.Adjustments[i] = adj
		}
	}
	return out
}

// Configuration returns the operation of the given type, if the profile has one.
func (p *EnhancementProfile) Configuration(t models.EnhancementType) (EnhancementConfiguration, bool) {
	for _, cfg := range p.Configurations {
		if cfg.Type == t {
			return cfg, true
		}
	}
	return EnhancementConfiguration{}, false
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func floatPtr(v float64) *float64 {
	return &v
}
