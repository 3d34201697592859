package learning

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/temcen/retouch/pkg/models"
)

// TypeSummary describes the retained feedback for one operation.
type TypeSummary struct {
	Type               models.EnhancementType `json:"type"`
	Count              int                    `json:"count"`
	MeanSatisfaction   float64                `json:"mean_satisfaction"`
	StdDevSatisfaction float64                `json:"stddev_satisfaction"`
	MeanIntensity      float64                `json:"mean_intensity"`
	WouldUseAgainRate  float64                `json:"would_use_again_rate"`
	PreferenceWeight   float64                `json:"preference_weight"`
	ConfidenceAdjust   float64                `json:"confidence_adjustment"`
}

// Summary is computed over the forgetting window, not the lifetime aggregates.
type Summary struct {
	UserID           string        `json:"user_id"`
	Window           int           `json:"window"`
	MeanSatisfaction float64       `json:"mean_satisfaction"`
	Types            []TypeSummary `json:"types"`
}

func Summarize(p *UserLearningProfile) Summary {
	if p == nil {
		return Summary{}
	}

	type samples struct {
		satisfaction []float64
		intensity    []float64
		again        int
	}
	byType := make(map[models.EnhancementType]*samples)
	all := make([]float64, 0, len(p.FeedbackHistory))

	for _, fb := range p.FeedbackHistory {
		s, ok := byType[fb.EnhancementType]
		if !ok {
			s = &samples{}
			byType[fb.EnhancementType] = s
		}
		s.satisfaction = append(s.satisfaction, fb.SatisfactionScore)
		s.intensity = append(s.intensity, fb.AppliedIntensity)
		if fb.WouldUseAgain {
			s.again++
		}
		all = append(all, fb.SatisfactionScore)
	}

	summary := Summary{UserID: p.UserID, Window: len(p.FeedbackHistory)}
	if len(all) > 0 {
		summary.MeanSatisfaction = stat.Mean(all, nil)
	}

	for t, s := range byType {
		ts := TypeSummary{
			Type:              t,
			Count:             len(s.satisfaction),
			MeanSatisfaction:  stat.Mean(s.satisfaction, nil),
			MeanIntensity:     stat.Mean(s.intensity, nil),
			WouldUseAgainRate: float64(s.again) / float64(len(s.satisfaction)),
			PreferenceWeight:  p.PreferenceAdjustment(t),
			ConfidenceAdjust:  p.ConfidenceAdjustment(t),
		}
		// sample deviation is undefined for a single value
		if len(s.satisfaction) > 1 {
			ts.StdDevSatisfaction = stat.StdDev(s.satisfaction, nil)
		}
		summary.Types = append(summary.Types, ts)
	}
	sort.Slice(summary.Types, func(i, j int) bool {
		return summary.Types[i].Type < summary.Types[j].Type
	})

	return summary
}
