package engine

import (
	"sort"

	"github.com/temcen/retouch/pkg/models"
)

// Engine turns an analysis snapshot into ranked recommendations using an
// immutable catalog.
//
// Engine holds no mutable state and is safe for concurrent use. For fixed
// inputs every method returns identical output.
type Engine struct {
	catalog *Catalog
}

func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// RecommendationSet is the outcome of one profile. Recommendations is ordered
// by processing order for execution.
type RecommendationSet struct {
	ProfileID       string
	ProfileName     string
	Mode            Mode
	Recommendations []models.Recommendation
}

func (s RecommendationSet) Empty() bool {
	return len(s.Recommendations) == 0
}

// TotalScore sums confidence x priority weight over the set.
func (s RecommendationSet) TotalScore() float64 {
	var total float64
	for _, r := range s.Recommendations {
		total += r.Score
	}
	return total
}

// Top returns the n best recommendations by confidence x priority weight,
// ties broken by priority then processing order. n <= 0 returns all of them.
func (s RecommendationSet) Top(n int) []models.Recommendation {
	ranked := append([]models.Recommendation(nil), s.Recommendations...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].ProcessingOrder < ranked[j].ProcessingOrder
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Result is the API form of the set with its top n ranking.
func (s RecommendationSet) Result(topN int) models.ProfileRecommendations {
	recs := s.Recommendations
	if recs == nil {
		recs = []models.Recommendation{}
	}
	return models.ProfileRecommendations{
		ProfileID:       s.ProfileID,
		ProfileName:     s.ProfileName,
		Mode:            string(s.Mode),
		TotalScore:      s.TotalScore(),
		Recommendations: recs,
		Top:             s.Top(topN),
	}
}

// RecommendProfile runs Recommend against a catalog profile.
func (e *Engine) RecommendProfile(id string, analysis *models.AnalysisSnapshot, user UserSignals) (RecommendationSet, error) {
	profile, err := e.catalog.Profile(id)
	if err != nil {
		return RecommendationSet{}, err
	}
	return e.Recommend(&profile, analysis, user), nil
}

// RecommendAll runs Recommend over every catalog profile and returns the
// non-empty sets by descending total score, ties in catalog order.
func (e *Engine) RecommendAll(analysis *models.AnalysisSnapshot, user UserSignals) []RecommendationSet {
	var sets []RecommendationSet
	for _, p := range e.catalog.profiles {
		set := e.Recommend(&p, analysis, user)
		if !set.Empty() {
			sets = append(sets, set)
		}
	}
	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].TotalScore() > sets[j].TotalScore()
	})
	return sets
}

type candidate struct {
	cfg       EnhancementConfiguration
	index     int
	intensity float64
	applied   []appliedAdjustment
}

// Recommend evaluates one profile. user may be nil. The profile is only read.
//
// Selection walks candidates by priority (declaration order on ties). A
// candidate waiting on a prerequisite that is not selected yet is deferred to
// one more pass in the same order and dropped if still unmet. A candidate that
// conflicts with anything already selected is dropped.
func (e *Engine) Recommend(profile *EnhancementProfile, analysis *models.AnalysisSnapshot, user UserSignals) RecommendationSet {
	set := RecommendationSet{}
	if profile == nil {
		return set
	}
	set.ProfileID = profile.ID
	set.ProfileName = profile.Name
	set.Mode = profile.Mode

	if !profile.IsApplicable(analysis, user) {
		return set
	}

	candidates := make([]candidate, 0, len(profile.Configurations))
	for i, cfg := range profile.Configurations {
		if !allHold(cfg.Conditions, analysis, user) {
			continue
		}
		intensity, applied := profile.computeIntensity(cfg, analysis, user)
		candidates = append(candidates, candidate{cfg: cfg, index: i, intensity: intensity, applied: applied})
	}

	selected := resolve(candidates)

	recs := make([]models.Recommendation, 0, len(selected))
	for _, c := range selected {
		recs = append(recs, e.finalize(profile, c, analysis, user))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].ProcessingOrder != recs[j].ProcessingOrder {
			return recs[i].ProcessingOrder < recs[j].ProcessingOrder
		}
		return recs[i].Priority > recs[j].Priority
	})
	set.Recommendations = recs
	return set
}

func resolve(candidates []candidate) []candidate {
	ordered := append([]candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].cfg.Priority != ordered[j].cfg.Priority {
			return ordered[i].cfg.Priority > ordered[j].cfg.Priority
		}
		return ordered[i].index < ordered[j].index
	})

	chosen := make(map[models.EnhancementType]EnhancementConfiguration, len(ordered))
	var selected, deferred []candidate

	for _, c := range ordered {
		if conflicts(c.cfg, chosen) {
			continue
		}
		if !prerequisitesMet(c.cfg, chosen) {
			deferred = append(deferred, c)
			continue
		}
		chosen[c.cfg.Type] = c.cfg
		selected = append(selected, c)
	}

	for _, c := range deferred {
		if conflicts(c.cfg, chosen) || !prerequisitesMet(c.cfg, chosen) {
			continue
		}
		chosen[c.cfg.Type] = c.cfg
		selected = append(selected, c)
	}

	return selected
}

// conflicts is symmetric: either side may declare the conflict.
func conflicts(cfg EnhancementConfiguration, chosen map[models.EnhancementType]EnhancementConfiguration) bool {
	for _, t := range cfg.ConflictsWith {
		if _, ok := chosen[t]; ok {
			return true
		}
	}
	for _, other := range chosen {
		for _, t := range other.ConflictsWith {
			if t == cfg.Type {
				return true
			}
		}
	}
	return false
}

func prerequisitesMet(cfg EnhancementConfiguration, chosen map[models.EnhancementType]EnhancementConfiguration) bool {
	for _, t := range cfg.Prerequisites {
		if _, ok := chosen[t]; !ok {
			return false
		}
	}
	return true
}

func (e *Engine) finalize(profile *EnhancementProfile, c candidate, analysis *models.AnalysisSnapshot, user UserSignals) models.Recommendation {
	confidence := rawConfidence(c.cfg, analysis, user)
	intensity := c.intensity
	blended := false

	if user != nil {
		confidence *= user.ConfidenceAdjustment(c.cfg.Type)
		if weight, ok := user.PreferenceWeight(c.cfg.Type); ok {
			intensity = profile.clampIntensity((intensity + weight) / 2)
			blended = true
		}
	}
	confidence = clamp01(confidence)

	return models.Recommendation{
		Type:            c.cfg.Type,
		Confidence:      confidence,
		Intensity:       intensity,
		Priority:        c.cfg.Priority,
		ProcessingOrder: c.cfg.ProcessingOrder,
		Score:           confidence * PriorityWeight(c.cfg.Priority),
		Reasoning:       explain(profile, c.cfg.Type, intensity, c.applied, blended),
		QuickProcessing: c.cfg.QuickProcessing,
	}
}

// rawConfidence is the mean of the factors the operation reacts to, or the
// image quality when it has no adjustments.
func rawConfidence(cfg EnhancementConfiguration, analysis *models.AnalysisSnapshot, user UserSignals) float64 {
	if len(cfg.Adjustments) == 0 {
		return ExtractFactor(FactorImageQuality, analysis, user)
	}
	var sum float64
	for _, adj := range cfg.Adjustments {
		sum += ExtractFactor(adj.Factor, analysis, user)
	}
	return sum / float64(len(cfg.Adjustments))
}
