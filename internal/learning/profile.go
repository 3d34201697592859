package learning

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/pkg/models"
)

const (
	// MaxFeedbackHistory is the forgetting window of retained feedback.
	MaxFeedbackHistory = 50

	DefaultPreferenceWeight = 0.5
	MinPreferenceWeight     = 0.1
	MaxPreferenceWeight     = 1.0
	preferenceLearningRate  = 0.2

	usageBonusPerUse       = 0.05
	maxUsageBonus          = 0.3
	satisfactionBonusScale = 0.4
	MinConfidenceAdjust    = 0.5
	MaxConfidenceAdjust    = 1.2

	neutralSatisfaction = 0.5
)

var _ engine.UserSignals = (*UserLearningProfile)(nil)

// UserLearningProfile is the learned state of one user. It is mutated only
// through Record and its two halves; callers serialize writes per user.
type UserLearningProfile struct {
	UserID              string                             `json:"user_id"`
	PreferenceWeights   map[models.EnhancementType]float64 `json:"preference_weights"`
	FeedbackHistory     []models.EnhancementFeedback       `json:"feedback_history"`
	UsageCounts         map[models.EnhancementType]int     `json:"usage_counts"`
	AverageSatisfaction map[models.EnhancementType]float64 `json:"average_satisfaction"`
	DeclaredAge         models.AgeCategory                 `json:"declared_age,omitempty"`
	LastUpdated         time.Time                          `json:"last_updated"`
}

func NewUserLearningProfile(userID string) *UserLearningProfile {
	return &UserLearningProfile{
		UserID:              userID,
		PreferenceWeights:   make(map[models.EnhancementType]float64),
		UsageCounts:         make(map[models.EnhancementType]int),
		AverageSatisfaction: make(map[models.EnhancementType]float64),
	}
}

// PreferenceAdjustment returns the learned weight, or the neutral 0.5.
func (p *UserLearningProfile) PreferenceAdjustment(t models.EnhancementType) float64 {
	if w, ok := p.PreferenceWeight(t); ok {
		return w
	}
	return DefaultPreferenceWeight
}

// PreferenceWeight returns the learned weight and whether one exists.
func (p *UserLearningProfile) PreferenceWeight(t models.EnhancementType) (float64, bool) {
	if p == nil {
		return 0, false
	}
	w, ok := p.PreferenceWeights[t]
	return w, ok
}

// ConfidenceAdjustment is 1 + min(uses x 0.05, 0.3) + (avg - 0.5) x 0.4,
// clamped to [0.5, 1.2]. A type never rated counts as neutral satisfaction.
func (p *UserLearningProfile) ConfidenceAdjustment(t models.EnhancementType) float64 {
	if p == nil {
		return 1.0
	}
	usageBonus := float64(p.UsageCounts[t]) * usageBonusPerUse
	if usageBonus > maxUsageBonus {
		usageBonus = maxUsageBonus
	}
	avg, ok := p.AverageSatisfaction[t]
	if !ok {
		avg = neutralSatisfaction
	}
	satisfactionBonus := (avg - neutralSatisfaction) * satisfactionBonusScale
	return clamp(1.0+usageBonus+satisfactionBonus, MinConfidenceAdjust, MaxConfidenceAdjust)
}

func (p *UserLearningProfile) DeclaredAgeCategory() (models.AgeCategory, bool) {
	if p == nil || p.DeclaredAge == "" {
		return "", false
	}
	return p.DeclaredAge, true
}

// Record applies one feedback event to both the aggregates and the history.
func (p *UserLearningProfile) Record(fb models.EnhancementFeedback) {
	p.UpdatePreferences(fb)
	p.UpdateEffectivenessData(fb)
}

// UpdatePreferences moves the preference weight by (satisfaction - 0.5) x 0.2
// and folds the score into an exact running mean.
func (p *UserLearningProfile) UpdatePreferences(fb models.EnhancementFeedback) {
	p.ensureMaps()
	t := fb.EnhancementType

	current, ok := p.PreferenceWeights[t]
	if !ok {
		current = DefaultPreferenceWeight
	}
	p.PreferenceWeights[t] = clamp(current+(fb.SatisfactionScore-neutralSatisfaction)*preferenceLearningRate, MinPreferenceWeight, MaxPreferenceWeight)

	p.UsageCounts[t]++
	n := float64(p.UsageCounts[t])
	p.AverageSatisfaction[t] = (p.AverageSatisfaction[t]*(n-1) + fb.SatisfactionScore) / n

	if fb.Timestamp.After(p.LastUpdated) {
		p.LastUpdated = fb.Timestamp
	}
}

// UpdateEffectivenessData inserts the feedback in timestamp order and evicts
// the oldest entries beyond MaxFeedbackHistory.
func (p *UserLearningProfile) UpdateEffectivenessData(fb models.EnhancementFeedback) {
	p.FeedbackHistory = insertByTime(p.FeedbackHistory, fb, func(f models.EnhancementFeedback) time.Time { return f.Timestamp })
	if over := len(p.FeedbackHistory) - MaxFeedbackHistory; over > 0 {
		p.FeedbackHistory = append(p.FeedbackHistory[:0:0], p.FeedbackHistory[over:]...)
	}
}

// Revision counts the feedback events folded into the profile. It grows by
// one with every applied event.
func (p *UserLearningProfile) Revision() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, c := range p.UsageCounts {
		n += c
	}
	return n
}

// HasFeedback reports whether feedback with this id is still in the window.
func (p *UserLearningProfile) HasFeedback(id uuid.UUID) bool {
	if p == nil {
		return false
	}
	for _, fb := range p.FeedbackHistory {
		if fb.ID == id {
			return true
		}
	}
	return false
}

func (p *UserLearningProfile) ensureMaps() {
	if p.PreferenceWeights == nil {
		p.PreferenceWeights = make(map[models.EnhancementType]float64)
	}
	if p.UsageCounts == nil {
		p.UsageCounts = make(map[models.EnhancementType]int)
	}
	if p.AverageSatisfaction == nil {
		p.AverageSatisfaction = make(map[models.EnhancementType]float64)
	}
}

// Clone returns a deep copy safe to read while the original is written.
func (p *UserLearningProfile) Clone() *UserLearningProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.PreferenceWeights = copyMap(p.PreferenceWeights)
	out.UsageCounts = copyMap(p.UsageCounts)
	out.AverageSatisfaction = copyMap(p.AverageSatisfaction)
	out.FeedbackHistory = append([]models.EnhancementFeedback(nil), p.FeedbackHistory...)
	return &out
}

// insertByTime places item after every entry with an equal or earlier
// timestamp, so same-instant events keep arrival order.
func insertByTime[T any](items []T, item T, at func(T) time.Time) []T {
	ts := at(item)
	idx := sort.Search(len(items), func(i int) bool { return at(items[i]).After(ts) })
	items = append(items, item)
	copy(items[idx+1:], items[idx:])
	items[idx] = item
	return items
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
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
