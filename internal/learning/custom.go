package learning

import (
	"time"

	"github.com/google/uuid"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/pkg/models"
)

const (
	initialCustomConfidence = 0.5
	confidenceDecay         = 0.8

	MinPreferredIntensity    = 0.1
	MaxPreferredIntensity    = 0.9
	intensityLearningRate    = 0.1
	defaultPreferredStarting = 0.5
)

// CustomProfileLearningData is what a custom profile has learned per operation.
type CustomProfileLearningData struct {
	PreferredIntensities map[models.EnhancementType]float64 `json:"preferred_intensities"`
	FeedbackHistory      []models.CustomProfileFeedback     `json:"feedback_history"`
}

// ProcessFeedback records the event and nudges each rated operation's
// preferred intensity by (satisfaction - 0.5) x 0.1 within [0.1, 0.9].
func (d *CustomProfileLearningData) ProcessFeedback(fb models.CustomProfileFeedback) {
	d.FeedbackHistory = insertByTime(d.FeedbackHistory, fb, func(f models.CustomProfileFeedback) time.Time { return f.Timestamp })
	if over := len(d.FeedbackHistory) - MaxFeedbackHistory; over > 0 {
		d.FeedbackHistory = append(d.FeedbackHistory[:0:0], d.FeedbackHistory[over:]...)
	}

	if d.PreferredIntensities == nil {
		d.PreferredIntensities = make(map[models.EnhancementType]float64)
	}
	for _, detail := range fb.Details {
		current, ok := d.PreferredIntensities[detail.EnhancementType]
		if !ok {
			current = defaultPreferredStarting
		}
		d.PreferredIntensities[detail.EnhancementType] = clamp(
			current+(detail.Satisfaction-neutralSatisfaction)*intensityLearningRate,
			MinPreferredIntensity, MaxPreferredIntensity,
		)
	}
}

// AdaptEnhancements blends each operation 50/50 with its learned preferred
// intensity. Operations without one are unchanged.
func (d *CustomProfileLearningData) AdaptEnhancements(base []models.Enhancement) []models.Enhancement {
	out := make([]models.Enhancement, len(base))
	for i, e := range base {
		if preferred, ok := d.PreferredIntensities[e.Type]; ok {
			e.Intensity = (e.Intensity + preferred) / 2
		}
		out[i] = e
	}
	return out
}

// HasFeedback reports whether feedback with this id is still in the window.
func (d *CustomProfileLearningData) HasFeedback(id uuid.UUID) bool {
	for _, fb := range d.FeedbackHistory {
		if fb.ID == id {
			return true
		}
	}
	return false
}

func (d CustomProfileLearningData) clone() CustomProfileLearningData {
	return CustomProfileLearningData{
		PreferredIntensities: copyMap(d.PreferredIntensities),
		FeedbackHistory:      append([]models.CustomProfileFeedback(nil), d.FeedbackHistory...),
	}
}

// CustomEnhancementProfile is a user-owned profile derived from a catalog
// profile. Every feedback event bumps Version.
type CustomEnhancementProfile struct {
	ID            uuid.UUID                 `json:"id"`
	UserID        string                    `json:"user_id"`
	BaseProfileID string                    `json:"base_profile_id"`
	Name          string                    `json:"name"`
	Enhancements  []models.Enhancement      `json:"enhancements"`
	Confidence    float64                   `json:"confidence"`
	UsageCount    int                       `json:"usage_count"`
	AverageRating float64                   `json:"average_rating"`
	Version       int                       `json:"version"`
	LearningData  CustomProfileLearningData `json:"learning_data"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// BuildCustomProfile seeds a custom profile with the base profile's operations
// at their nominal intensity.
func BuildCustomProfile(base *engine.EnhancementProfile, userID, name string, now time.Time) *CustomEnhancementProfile {
	lo, hi := base.Bounds()
	enhancements := make([]models.Enhancement, 0, len(base.Configurations))
	for _, cfg := range base.Configurations {
		enhancements = append(enhancements, models.Enhancement{
			Type:      cfg.Type,
			Intensity: clamp(cfg.BaseIntensity*base.IntensityMultiplier, lo, hi),
		})
	}

	return &CustomEnhancementProfile{
		ID:            uuid.New(),
		UserID:        userID,
		BaseProfileID: base.ID,
		Name:          name,
		Enhancements:  enhancements,
		Confidence:    initialCustomConfidence,
		Version:       1,
		LearningData: CustomProfileLearningData{
			PreferredIntensities: make(map[models.EnhancementType]float64),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateFromFeedback folds one rating into the profile. The rating uses a
// lifetime running mean while confidence decays toward recent feedback.
func (c *CustomEnhancementProfile) UpdateFromFeedback(fb models.CustomProfileFeedback) {
	previous := float64(c.UsageCount)
	c.UsageCount++
	c.AverageRating = (c.AverageRating*previous + fb.OverallRating) / float64(c.UsageCount)
	c.Confidence = c.Confidence*confidenceDecay + ((fb.Satisfaction+fb.Naturalness)/2)*(1-confidenceDecay)
	c.Version++
	if fb.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = fb.Timestamp
	}
	c.LearningData.ProcessFeedback(fb)
}

// AdaptedEnhancements is the profile's operation list after learning.
func (c *CustomEnhancementProfile) AdaptedEnhancements() []models.Enhancement {
	return c.LearningData.AdaptEnhancements(c.Enhancements)
}

// ToEnhancementProfile turns the custom profile into one the engine can
// evaluate. Rules come from base; intensities come from the adapted list and
// operations the custom profile does not carry are left out.
func (c *CustomEnhancementProfile) ToEnhancementProfile(base *engine.EnhancementProfile) engine.EnhancementProfile {
	adapted := make(map[models.EnhancementType]float64, len(c.Enhancements))
	for _, e := range c.AdaptedEnhancements() {
		adapted[e.Type] = e.Intensity
	}

	out := base.Clone()
	out.ID = c.ID.String()
	out.Name = c.Name
	out.Mode = engine.ModeCustom
	out.IntensityMultiplier = 1.0

	configs := out.Configurations[:0]
	for _, cfg := range out.Configurations {
		intensity, ok := adapted[cfg.Type]
		if !ok {
			continue
		}
		cfg.BaseIntensity = intensity
		configs = append(configs, cfg)
	}
	out.Configurations = configs
	return out
}

func (c *CustomEnhancementProfile) Clone() *CustomEnhancementProfile {
	if c == nil {
		return nil
	}
	out := *c
	out.Enhancements = append([]models.Enhancement(nil), c.Enhancements...)
	out.LearningData = c.LearningData.clone()
	return &out
}
