package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/retouch/pkg/models"
)

func types(recs []models.Recommendation) []models.EnhancementType {
	out := make([]models.EnhancementType, len(recs))
	for i, r := range recs {
		out[i] = r.Type
	}
	return out
}

func TestRecommend_HDScenario(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	analysis := &models.AnalysisSnapshot{ImageQuality: 0.9, LightingQuality: 0.6}

	set, err := e.RecommendProfile(ProfileHD, analysis, nil)
	require.NoError(t, err)
	assert.Equal(t, ProfileHD, set.ProfileID)
	assert.Equal(t, ModeHD, set.Mode)

	// noise reduction is gated on low lighting
	assert.Equal(t, []models.EnhancementType{
		models.EnhancementContrast,
		models.EnhancementClarity,
		models.EnhancementSharpening,
		models.EnhancementSaturation,
	}, types(set.Recommendations))

	clarity := set.Recommendations[1]
	assert.InDelta(t, 0.9, clarity.Intensity, 1e-9)
	assert.InDelta(t, 0.9, clarity.Confidence, 1e-9)
	assert.InDelta(t, 0.9, clarity.Score, 1e-9)
	assert.Equal(t, 4, clarity.Priority)
	assert.Equal(t, "Clarity at 90% for the HD profile; raised because image quality is above 0.70", clarity.Reasoning)

	saturation := set.Recommendations[3]
	assert.InDelta(t, 0.9, saturation.Confidence, 1e-9, "no adjustments uses image quality")
	assert.InDelta(t, 0.45, saturation.Score, 1e-9)

	top := set.Top(2)
	assert.Equal(t, []models.EnhancementType{models.EnhancementClarity, models.EnhancementContrast}, types(top))
	assert.Len(t, set.Top(0), 4)
	assert.Len(t, set.Top(10), 4)
}

func TestRecommend_StudioWithoutFaceIsEmpty(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	landscape := &models.AnalysisSnapshot{ImageQuality: 0.95, LightingQuality: 0.9}

	set, err := e.RecommendProfile(ProfileStudio, landscape, nil)
	require.NoError(t, err)
	assert.True(t, set.Empty())
	assert.Equal(t, ProfileStudio, set.ProfileID)
	assert.Zero(t, set.TotalScore())
}

func TestRecommend_ConflictExclusivity(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	dark := &models.AnalysisSnapshot{ImageQuality: 0.8, LightingQuality: 0.3}

	set, err := e.RecommendProfile(ProfileHD, dark, nil)
	require.NoError(t, err)

	got := types(set.Recommendations)
	assert.Contains(t, got, models.EnhancementSharpening, "higher priority wins")
	assert.NotContains(t, got, models.EnhancementNoiseReduction)

	sharpening := set.Recommendations[len(set.Recommendations)-2]
	require.Equal(t, models.EnhancementSharpening, sharpening.Type)
	assert.InDelta(t, 0.35, sharpening.Intensity, 1e-9)
}

func TestRecommend_ConflictDeclaredOnOneSide(t *testing.T) {
	a, b := models.EnhancementWarmth, models.EnhancementVignette
	first := op(a, 1)
	second := op(b, 2)
	second.ConflictsWith = []models.EnhancementType{a}

	catalog, err := NewCatalog(simpleProfile("p", first, second))
	require.NoError(t, err)

	set, err := NewEngine(catalog).RecommendProfile("p", portrait(0.8), nil)
	require.NoError(t, err)
	assert.Equal(t, []models.EnhancementType{b}, types(set.Recommendations))
}

func TestRecommend_PrerequisitesDeferred(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	set, err := e.RecommendProfile(ProfileGlam, portrait(0.8), nil)
	require.NoError(t, err)

	// skin smoothing outranks its prerequisite and contouring depends on it,
	// both are picked up by the deferred pass
	assert.Equal(t, []models.EnhancementType{
		models.EnhancementBlemishRemoval,
		models.EnhancementSkinSmoothing,
		models.EnhancementFaceContouring,
		models.EnhancementEyeBrightening,
		models.EnhancementTeethWhitening,
		models.EnhancementSaturation,
		models.EnhancementBackgroundBlur,
	}, types(set.Recommendations))
}

func TestRecommend_DeferredChainDropsHead(t *testing.T) {
	a, b, c := models.EnhancementContrast, models.EnhancementBrightness, models.EnhancementClarity

	catalog, err := NewCatalog(simpleProfile("chain", op(a, 3, b), op(b, 2, c), op(c, 1)))
	require.NoError(t, err)

	set, err := NewEngine(catalog).RecommendProfile("chain", portrait(0.8), nil)
	require.NoError(t, err)
	assert.Equal(t, []models.EnhancementType{c, b}, types(set.Recommendations))
}

func TestRecommend_PrerequisiteRemovedByCondition(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	// gate portrait lighting off on a copy so blur loses its prerequisite
	studio, err := e.Catalog().Profile(ProfileStudio)
	require.NoError(t, err)
	studio.Configurations[0].Conditions = []ApplicabilityCondition{when(FactorImageQuality, OpGreaterThan, 0.99)}

	set := e.Recommend(&studio, portrait(0.8), nil)
	got := types(set.Recommendations)
	assert.NotContains(t, got, models.EnhancementPortraitLighting)
	assert.NotContains(t, got, models.EnhancementBackgroundBlur)
}

func TestRecommend_SelectionInvariants(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	catalog := e.Catalog()
	values := []float64{0.05, 0.35, 0.45, 0.55, 0.65, 0.85}

	for _, p := range catalog.Profiles() {
		for _, q := range values {
			for _, l := range values {
				set := e.Recommend(&p, &models.AnalysisSnapshot{
					ImageQuality:    q,
					LightingQuality: l,
					PrimaryFace:     &models.FaceAnalysis{QualityScore: q},
				}, nil)

				selected := make(map[models.EnhancementType]bool)
				for _, r := range set.Recommendations {
					selected[r.Type] = true
				}
				for _, r := range set.Recommendations {
					cfg, ok := p.Configuration(r.Type)
					require.True(t, ok)
					for _, pre := range cfg.Prerequisites {
						assert.True(t, selected[pre], "%s requires %s in %s", r.Type, pre, p.ID)
					}
					for _, other := range cfg.ConflictsWith {
						assert.False(t, selected[other], "%s conflicts with %s in %s", r.Type, other, p.ID)
					}
					assert.GreaterOrEqual(t, r.Confidence, 0.0)
					assert.LessOrEqual(t, r.Confidence, 1.0)
				}
				for i := 1; i < len(set.Recommendations); i++ {
					assert.LessOrEqual(t, set.Recommendations[i-1].ProcessingOrder, set.Recommendations[i].ProcessingOrder)
				}
			}
		}
	}
}

func TestRecommend_UserSignals(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	analysis := &models.AnalysisSnapshot{ImageQuality: 0.9, LightingQuality: 0.6}
	user := &fakeUser{
		confidence: map[models.EnhancementType]float64{
			models.EnhancementClarity:  1.2,
			models.EnhancementContrast: 0.5,
		},
		weights: map[models.EnhancementType]float64{
			models.EnhancementClarity: 0.5,
		},
	}

	set, err := e.RecommendProfile(ProfileHD, analysis, user)
	require.NoError(t, err)

	byType := make(map[models.EnhancementType]models.Recommendation)
	for _, r := range set.Recommendations {
		byType[r.Type] = r
	}

	clarity := byType[models.EnhancementClarity]
	assert.InDelta(t, 0.7, clarity.Intensity, 1e-9)
	assert.InDelta(t, 1.0, clarity.Confidence, 1e-9, "clamped")
	assert.Contains(t, clarity.Reasoning, "learned preference")

	contrast := byType[models.EnhancementContrast]
	assert.InDelta(t, 0.4, contrast.Intensity, 1e-9, "no learned weight keeps intensity")
	assert.InDelta(t, 0.3, contrast.Confidence, 1e-9)
}

func TestRecommend_PreferenceBlendRespectsBounds(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	user := &fakeUser{weights: map[models.EnhancementType]float64{
		models.EnhancementSkinSmoothing: 1.0,
		models.EnhancementVignette:      1.0,
	}}

	glam, err := e.RecommendProfile(ProfileGlam, portrait(0.8), user)
	require.NoError(t, err)
	studio, err := e.RecommendProfile(ProfileStudio, portrait(0.8), user)
	require.NoError(t, err)

	find := func(set RecommendationSet, typ models.EnhancementType) (models.Recommendation, bool) {
		for _, r := range set.Recommendations {
			if r.Type == typ {
				return r, true
			}
		}
		return models.Recommendation{}, false
	}

	// (0.7776 + 1.0) / 2 is above the glam ceiling
	skin, ok := find(glam, models.EnhancementSkinSmoothing)
	require.True(t, ok)
	assert.InDelta(t, 0.85, skin.Intensity, 1e-9)

	// (0.275 + 1.0) / 2
	vignette, ok := find(studio, models.EnhancementVignette)
	require.True(t, ok)
	assert.InDelta(t, 0.6375, vignette.Intensity, 1e-9)
}

func TestRecommendAll(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	sets := e.RecommendAll(&models.AnalysisSnapshot{ImageQuality: 0.9, LightingQuality: 0.6}, nil)

	ids := make([]string, len(sets))
	for i, s := range sets {
		ids[i] = s.ProfileID
		if i > 0 {
			assert.GreaterOrEqual(t, sets[i-1].TotalScore(), s.TotalScore())
		}
	}
	assert.ElementsMatch(t, []string{ProfileNatural, ProfileHD}, ids, "face profiles are skipped")
}

func TestRecommend_NilInputs(t *testing.T) {
	e := NewEngine(DefaultCatalog())

	assert.True(t, e.Recommend(nil, portrait(0.8), nil).Empty())

	set, err := e.RecommendProfile(ProfileNatural, nil, nil)
	require.NoError(t, err)
	assert.False(t, set.Empty())

	_, err = e.RecommendProfile("missing", nil, nil)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestRecommend_DeterministicAndConcurrent(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	analysis := portrait(0.8)
	user := &fakeUser{weights: map[models.EnhancementType]float64{models.EnhancementSkinSmoothing: 0.9}}

	expected := e.RecommendAll(analysis, user)

	var wg sync.WaitGroup
	results := make([][]RecommendationSet, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.RecommendAll(analysis, user)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, expected, r)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Skin Smoothing", DisplayName(string(models.EnhancementSkinSmoothing)))
	assert.Equal(t, "Auto Enhance", DisplayName(string(models.EnhancementAutoEnhance)))
}
