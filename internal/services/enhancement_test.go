package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/store"
	"github.com/temcen/retouch/pkg/models"
)

func newEnhancementService(ls LearningStore, cache RecommendationCacher) *EnhancementService {
	return NewEnhancementService(engine.NewEngine(engine.DefaultCatalog()), ls, cache, NewMetricsCollector(), 3, testLogger())
}

func portraitAnalysis() models.AnalysisSnapshot {
	return models.AnalysisSnapshot{
		ImageQuality:    0.9,
		LightingQuality: 0.6,
		PrimaryFace:     &models.FaceAnalysis{QualityScore: 0.8},
	}
}

func findRec(recs []models.Recommendation, t models.EnhancementType) (models.Recommendation, bool) {
	for _, r := range recs {
		if r.Type == t {
			return r, true
		}
	}
	return models.Recommendation{}, false
}

func TestEnhancementService_RecommendProfile(t *testing.T) {
	svc := newEnhancementService(newManager(), nil)

	resp, err := svc.Recommend(context.Background(), &models.RecommendationRequest{
		UserID:    "user-1",
		ProfileID: engine.ProfileHD,
		Analysis:  models.AnalysisSnapshot{ImageQuality: 0.9, LightingQuality: 0.6},
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", resp.UserID)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Results, 1)

	hd := resp.Results[0]
	assert.Equal(t, engine.ProfileHD, hd.ProfileID)
	assert.Equal(t, "hd", hd.Mode)
	require.Len(t, hd.Recommendations, 4)
	assert.Len(t, hd.Top, 3, "default top n")
	assert.Equal(t, models.EnhancementClarity, hd.Top[0].Type)

	clarity, ok := findRec(hd.Recommendations, models.EnhancementClarity)
	require.True(t, ok)
	assert.InDelta(t, 0.9, clarity.Intensity, 1e-9)
}

func TestEnhancementService_RecommendAll(t *testing.T) {
	svc := newEnhancementService(newManager(), nil)

	resp, err := svc.Recommend(context.Background(), &models.RecommendationRequest{
		UserID:   "user-1",
		Analysis: portraitAnalysis(),
		TopN:     1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	for i, result := range resp.Results {
		assert.NotEmpty(t, result.Recommendations)
		assert.Len(t, result.Top, 1)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Results[i-1].TotalScore, result.TotalScore)
		}
	}
}

func TestEnhancementService_UnknownProfile(t *testing.T) {
	svc := newEnhancementService(newManager(), nil)

	_, err := svc.Recommend(context.Background(), &models.RecommendationRequest{
		UserID:    "user-1",
		ProfileID: "vintage",
		Analysis:  portraitAnalysis(),
	})
	assert.ErrorIs(t, err, engine.ErrProfileNotFound)
}

func TestEnhancementService_CacheHit(t *testing.T) {
	cache := &mockCache{}
	cached := &models.RecommendationResponse{UserID: "user-1"}
	cache.On("Get", mock.Anything, "user-1", mock.AnythingOfType("string")).Return(cached, true, nil)

	svc := newEnhancementService(newManager(), cache)
	resp, err := svc.Recommend(context.Background(), &models.RecommendationRequest{UserID: "user-1", Analysis: portraitAnalysis()})
	require.NoError(t, err)

	assert.True(t, resp.CacheHit)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnhancementService_CacheMissStoresResponse(t *testing.T) {
	cache := &mockCache{}
	req := &models.RecommendationRequest{UserID: "user-1", ProfileID: engine.ProfileNatural, Analysis: portraitAnalysis(), TopN: 3}
	fingerprint := store.Fingerprint(req, cacheRevision(learning.NewUserLearningProfile("user-1"), nil))

	cache.On("Get", mock.Anything, "user-1", fingerprint).Return(nil, false, nil)
	cache.On("Set", mock.Anything, "user-1", fingerprint, mock.AnythingOfType("*models.RecommendationResponse")).Return(nil)

	svc := newEnhancementService(newManager(), cache)
	resp, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	cache.AssertExpectations(t)
}

func TestEnhancementService_FeedbackChangesCacheKey(t *testing.T) {
	manager := newManager()
	cache := &mockCache{}
	svc := newEnhancementService(manager, cache)
	ctx := context.Background()
	request := func() *models.RecommendationRequest {
		return &models.RecommendationRequest{
			UserID:    "user-1",
			ProfileID: engine.ProfileHD,
			Analysis:  models.AnalysisSnapshot{ImageQuality: 0.9, LightingQuality: 0.6},
		}
	}

	var before string
	cache.On("Get", mock.Anything, "user-1", mock.Anything).Return(nil, false, nil).Once()
	cache.On("Set", mock.Anything, "user-1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { before = args.String(2) }).
		Return(nil).Once()

	first, err := svc.Recommend(ctx, request())
	require.NoError(t, err)
	require.NotEmpty(t, before)

	// Feedback lands and invalidates, then a request that read the old
	// profile writes its response back under the old key.
	_, err = manager.ApplyFeedback(ctx, models.EnhancementFeedback{
		UserID:            "user-1",
		EnhancementType:   models.EnhancementClarity,
		AppliedIntensity:  0.9,
		SatisfactionScore: 0,
	})
	require.NoError(t, err)

	var after string
	cache.On("Get", mock.Anything, "user-1", before).Return(first, true, nil)
	cache.On("Get", mock.Anything, "user-1", mock.Anything).Return(nil, false, nil)
	cache.On("Set", mock.Anything, "user-1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { after = args.String(2) }).
		Return(nil)

	second, err := svc.Recommend(ctx, request())
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	assert.NotEqual(t, before, after)

	was, ok := findRec(first.Results[0].Recommendations, models.EnhancementClarity)
	require.True(t, ok)
	now, ok := findRec(second.Results[0].Recommendations, models.EnhancementClarity)
	require.True(t, ok)
	assert.Less(t, now.Intensity, was.Intensity)
}

func TestEnhancementService_CustomFeedbackChangesCacheKey(t *testing.T) {
	manager := newManager()
	ctx := context.Background()
	custom, err := manager.CreateCustomProfile(ctx, "user-1", "Evening", func() *engine.EnhancementProfile {
		p, err := engine.DefaultCatalog().Profile(engine.ProfileGlam)
		require.NoError(t, err)
		return &p
	}())
	require.NoError(t, err)

	req := &models.RecommendationRequest{UserID: "user-1", CustomProfileID: &custom.ID, Analysis: portraitAnalysis(), TopN: 3}
	before := store.Fingerprint(req, cacheRevision(learning.NewUserLearningProfile("user-1"), custom))

	_, err = manager.ApplyCustomFeedback(ctx, models.CustomProfileFeedback{
		ProfileID:     custom.ID,
		UserID:        "user-1",
		OverallRating: 0.2,
		Satisfaction:  0.2,
		Naturalness:   0.2,
	})
	require.NoError(t, err)

	cache := &mockCache{}
	cache.On("Get", mock.Anything, "user-1", before).Return(&models.RecommendationResponse{UserID: "user-1"}, true, nil)
	cache.On("Get", mock.Anything, "user-1", mock.Anything).Return(nil, false, nil)
	cache.On("Set", mock.Anything, "user-1", mock.Anything, mock.Anything).Return(nil)

	resp, err := newEnhancementService(manager, cache).Recommend(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Results, 1)
}

func TestEnhancementService_CacheFailuresAreIgnored(t *testing.T) {
	cache := &mockCache{}
	cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	svc := newEnhancementService(newManager(), cache)
	resp, err := svc.Recommend(context.Background(), &models.RecommendationRequest{UserID: "user-1", Analysis: portraitAnalysis()})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestEnhancementService_CustomProfile(t *testing.T) {
	svc := newEnhancementService(newManager(), nil)
	ctx := context.Background()

	custom, err := svc.CreateCustomProfile(ctx, "user-1", &models.CreateCustomProfileRequest{BaseProfileID: engine.ProfileGlam, Name: "Evening"})
	require.NoError(t, err)
	assert.Equal(t, engine.ProfileGlam, custom.BaseProfileID)

	resp, err := svc.Recommend(ctx, &models.RecommendationRequest{
		UserID:          "user-1",
		CustomProfileID: &custom.ID,
		Analysis:        portraitAnalysis(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	result := resp.Results[0]
	assert.Equal(t, custom.ID.String(), result.ProfileID)
	assert.Equal(t, "Evening", result.ProfileName)
	assert.Equal(t, "custom", result.Mode)

	blemish, ok := findRec(result.Recommendations, models.EnhancementBlemishRemoval)
	require.True(t, ok)
	assert.InDelta(t, 0.6, blemish.Intensity, 1e-9)

	_, err = svc.Recommend(ctx, &models.RecommendationRequest{
		UserID:          "intruder",
		CustomProfileID: &custom.ID,
		Analysis:        portraitAnalysis(),
	})
	assert.ErrorIs(t, err, learning.ErrUserMismatch)
}

func TestEnhancementService_CustomProfileLookup(t *testing.T) {
	svc := newEnhancementService(newManager(), nil)
	ctx := context.Background()

	_, err := svc.CreateCustomProfile(ctx, "user-1", &models.CreateCustomProfileRequest{BaseProfileID: "vintage", Name: "x"})
	assert.ErrorIs(t, err, engine.ErrProfileNotFound)

	custom, err := svc.CreateCustomProfile(ctx, "user-1", &models.CreateCustomProfileRequest{BaseProfileID: engine.ProfileStudio, Name: "Headshots"})
	require.NoError(t, err)

	got, err := svc.CustomProfile(ctx, "user-1", custom.ID.String())
	require.NoError(t, err)
	assert.Equal(t, custom.ID, got.ID)

	_, err = svc.CustomProfile(ctx, "user-2", custom.ID.String())
	assert.ErrorIs(t, err, learning.ErrUserMismatch)

	_, err = svc.CustomProfile(ctx, "", "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidProfileID)

	_, err = svc.CustomProfile(ctx, "", uuid.NewString())
	assert.ErrorIs(t, err, learning.ErrProfileNotFound)

	list, err := svc.CustomProfiles(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnhancementService_LearningReport(t *testing.T) {
	manager := newManager()
	ctx := context.Background()
	_, err := manager.ApplyFeedback(ctx, models.EnhancementFeedback{
		UserID:            "user-1",
		EnhancementType:   models.EnhancementContrast,
		AppliedIntensity:  0.4,
		SatisfactionScore: 1.0,
	})
	require.NoError(t, err)

	graph := &mockGraph{}
	graph.On("Affinities", mock.Anything, "user-1").Return([]store.Affinity{{Type: models.EnhancementContrast, Ratings: 1, MeanSatisfaction: 1}}, nil)

	svc := newEnhancementService(manager, nil).WithGraph(graph)
	report, err := svc.LearningReport(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", report.Profile.UserID)
	assert.InDelta(t, 0.6, report.Profile.PreferenceWeights[models.EnhancementContrast], 1e-9)
	require.Len(t, report.Summary.Types, 1)
	assert.Equal(t, models.EnhancementContrast, report.Summary.Types[0].Type)
	assert.Len(t, report.Affinities, 1)
}
