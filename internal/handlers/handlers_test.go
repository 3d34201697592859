package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/retouch/internal/config"
	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/middleware"
	"github.com/temcen/retouch/internal/services"
)

type testEnv struct {
	router    *gin.Engine
	processor *services.FeedbackProcessor
	auth      *services.AuthService
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestEnv(t *testing.T, jwtSecret string, startProcessor bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := testLogger()

	metrics := services.NewMetricsCollector()
	manager := learning.NewManager(learning.NewMemoryRepository(), logger)
	enhancement := services.NewEnhancementService(engine.NewEngine(engine.DefaultCatalog()), manager, nil, metrics, 3, logger)
	processor := services.NewFeedbackProcessor(services.FeedbackProcessorConfig{Workers: 2, QueueSize: 8, Timeout: time.Second}, manager, logger).
		WithMetrics(metrics)
	if startProcessor {
		processor.Start()
		t.Cleanup(processor.Stop)
	}
	auth := services.NewAuthService(&config.AuthConfig{JWTSecret: jwtSecret, TokenTTL: time.Hour}, logger)

	h := &Handlers{
		Health:      NewHealthHandler(logger, services.NewHealthService(logger, metrics)),
		Enhancement: NewEnhancementHandler(enhancement, logger),
		Feedback:    NewFeedbackHandler(processor, logger),
		Metrics:     NewMetricsHandler(metrics),
	}

	router := gin.New()
	router.GET("/health", h.Health.Check)
	router.GET("/metrics", h.Metrics.Prometheus())
	api := router.Group("/api/v1", middleware.Auth(auth, logger))
	api.GET("/profiles", h.Enhancement.ListProfiles)
	api.GET("/profiles/:id", h.Enhancement.GetProfile)
	api.POST("/recommendations", h.Enhancement.Recommend)
	api.POST("/feedback", h.Feedback.Submit)
	api.GET("/users/:userId/learning", h.Enhancement.LearningReport)
	api.GET("/users/:userId/custom-profiles", h.Enhancement.ListCustomProfiles)
	api.POST("/users/:userId/custom-profiles", h.Enhancement.CreateCustomProfile)
	api.GET("/custom-profiles/:profileId", h.Enhancement.GetCustomProfile)
	api.POST("/custom-profiles/:profileId/feedback", h.Feedback.SubmitCustom)

	return &testEnv{router: router, processor: processor, auth: auth}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &resp)
	return resp.Error.Code
}

func portrait() map[string]interface{} {
	return map[string]interface{}{
		"image_quality":    0.9,
		"lighting_quality": 0.6,
		"primary_face":     map[string]interface{}{"quality_score": 0.8},
	}
}

func TestEnhancementHandler_Profiles(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/profiles", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count    int              `json:"count"`
		Profiles []ProfileSummary `json:"profiles"`
	}
	decode(t, w, &list)
	assert.Equal(t, 4, list.Count)
	assert.Equal(t, engine.ProfileNatural, list.Profiles[0].ID)

	w = env.do(t, http.MethodGet, "/api/v1/profiles/glam", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var glam engine.EnhancementProfile
	decode(t, w, &glam)
	assert.Equal(t, engine.ProfileGlam, glam.ID)

	w = env.do(t, http.MethodGet, "/api/v1/profiles/sepia", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PROFILE_NOT_FOUND", errorCode(t, w))
}

func TestEnhancementHandler_Recommend(t *testing.T) {
	env := newTestEnv(t, "", true)

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
		expectedCode   string
		expectedSets   int
	}{
		{
			name:           "single profile",
			body:           map[string]interface{}{"user_id": "alice", "profile_id": "glam", "analysis": portrait()},
			expectedStatus: http.StatusOK,
			expectedSets:   1,
		},
		{
			name:           "whole catalog",
			body:           map[string]interface{}{"user_id": "alice", "analysis": portrait()},
			expectedStatus: http.StatusOK,
			expectedSets:   -1,
		},
		{
			name:           "unknown profile",
			body:           map[string]interface{}{"user_id": "alice", "profile_id": "sepia", "analysis": portrait()},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "PROFILE_NOT_FOUND",
		},
		{
			name: "out of range analysis",
			body: map[string]interface{}{"user_id": "alice", "analysis": map[string]interface{}{
				"image_quality": 2.0, "lighting_quality": 0.5,
			}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:           "missing user",
			body:           map[string]interface{}{"analysis": portrait()},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/recommendations", tt.body, "")
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, w))
				return
			}

			var resp struct {
				UserID  string `json:"user_id"`
				Results []struct {
					ProfileID       string            `json:"profile_id"`
					Recommendations []json.RawMessage `json:"recommendations"`
					Top             []json.RawMessage `json:"top"`
				} `json:"results"`
			}
			decode(t, w, &resp)
			assert.Equal(t, "alice", resp.UserID)
			if tt.expectedSets > 0 {
				require.Len(t, resp.Results, tt.expectedSets)
				assert.Equal(t, engine.ProfileGlam, resp.Results[0].ProfileID)
			} else {
				assert.NotEmpty(t, resp.Results)
			}
			for _, r := range resp.Results {
				assert.LessOrEqual(t, len(r.Top), 3)
				assert.NotEmpty(t, r.Recommendations)
			}
		})
	}
}

func TestEnhancementHandler_RecommendTopQuery(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodPost, "/api/v1/recommendations?top=1", map[string]interface{}{
		"user_id": "alice", "profile_id": "glam", "analysis": portrait(),
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []struct {
			Top []json.RawMessage `json:"top"`
		} `json:"results"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Results, 1)
	assert.Len(t, resp.Results[0].Top, 1)
}

func TestFeedbackHandler_Submit(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"user_id":            "alice",
		"enhancement_type":   "brightness",
		"applied_intensity":  0.4,
		"satisfaction_score": 0.9,
	}, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var applied struct {
		Status  string                       `json:"status"`
		Profile learning.UserLearningProfile `json:"profile"`
	}
	decode(t, w, &applied)
	assert.Equal(t, "applied", applied.Status)
	assert.Equal(t, 1, applied.Profile.UsageCounts["brightness"])

	w = env.do(t, http.MethodGet, "/api/v1/users/alice/learning", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var report services.LearningReport
	decode(t, w, &report)
	assert.Len(t, report.Profile.FeedbackHistory, 1)
	assert.InDelta(t, 0.9, report.Summary.MeanSatisfaction, 1e-9)
}

func TestFeedbackHandler_Rejects(t *testing.T) {
	env := newTestEnv(t, "", true)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "score above one", body: map[string]interface{}{
			"user_id": "alice", "enhancement_type": "brightness", "applied_intensity": 0.4, "satisfaction_score": 1.5,
		}},
		{name: "negative intensity", body: map[string]interface{}{
			"user_id": "alice", "enhancement_type": "brightness", "applied_intensity": -0.1, "satisfaction_score": 0.5,
		}},
		{name: "unknown type", body: map[string]interface{}{
			"user_id": "alice", "enhancement_type": "sepia", "applied_intensity": 0.4, "satisfaction_score": 0.5,
		}},
		{name: "missing user", body: map[string]interface{}{
			"enhancement_type": "brightness", "applied_intensity": 0.4, "satisfaction_score": 0.5,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/feedback", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_FEEDBACK", errorCode(t, w))
		})
	}

	w := env.do(t, http.MethodGet, "/api/v1/users/alice/learning", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var report services.LearningReport
	decode(t, w, &report)
	assert.Empty(t, report.Profile.FeedbackHistory)
}

func TestFeedbackHandler_ProcessorUnavailable(t *testing.T) {
	env := newTestEnv(t, "", false)

	w := env.do(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"user_id": "alice", "enhancement_type": "brightness", "applied_intensity": 0.4, "satisfaction_score": 0.5,
	}, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "FEEDBACK_UNAVAILABLE", errorCode(t, w))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestCustomProfileLifecycle(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodPost, "/api/v1/users/alice/custom-profiles", map[string]interface{}{
		"base_profile_id": "glam", "name": "Evening",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created learning.CustomEnhancementProfile
	decode(t, w, &created)
	assert.Equal(t, "alice", created.UserID)
	assert.Equal(t, engine.ProfileGlam, created.BaseProfileID)
	assert.Equal(t, 1, created.Version)

	path := "/api/v1/custom-profiles/" + created.ID.String()

	w = env.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/alice/custom-profiles", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)

	w = env.do(t, http.MethodPost, path+"/feedback", map[string]interface{}{
		"user_id":        "alice",
		"overall_rating": 0.8,
		"satisfaction":   0.9,
		"naturalness":    0.7,
		"details": []map[string]interface{}{
			{"enhancement_type": "skin_smoothing", "satisfaction": 1.0},
		},
	}, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var applied struct {
		Profile learning.CustomEnhancementProfile `json:"profile"`
	}
	decode(t, w, &applied)
	assert.Equal(t, 2, applied.Profile.Version)
	assert.Equal(t, 1, applied.Profile.UsageCount)

	w = env.do(t, http.MethodPost, path+"/feedback", map[string]interface{}{
		"user_id": "bob", "overall_rating": 0.8, "satisfaction": 0.9, "naturalness": 0.7,
	}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{
		"user_id": "alice", "custom_profile_id": created.ID.String(), "analysis": portrait(),
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Results []struct {
			Mode string `json:"mode"`
		} `json:"results"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "custom", resp.Results[0].Mode)
}

func TestCustomProfile_Lookups(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/api/v1/custom-profiles/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PROFILE_ID", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/api/v1/custom-profiles/5b7d2c34-9c1e-4a57-9c55-1f0c8f3b6a11", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CUSTOM_PROFILE_NOT_FOUND", errorCode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/users/alice/custom-profiles", map[string]interface{}{
		"base_profile_id": "sepia", "name": "Old",
	}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/users/alice/custom-profiles", map[string]interface{}{
		"base_profile_id": "glam",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))
}

func TestHandlers_Ownership(t *testing.T) {
	env := newTestEnv(t, "test-secret", true)

	alice, err := env.auth.GenerateToken("alice", "user")
	require.NoError(t, err)
	bob, err := env.auth.GenerateToken("bob", "user")
	require.NoError(t, err)
	admin, err := env.auth.GenerateToken("ops", middleware.ScopeAdmin)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/users/alice/learning", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/alice/learning", nil, alice)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/alice/learning", nil, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/users/alice/learning", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/feedback", map[string]interface{}{
		"user_id": "alice", "enhancement_type": "brightness", "applied_intensity": 0.4, "satisfaction_score": 0.5,
	}, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/users/alice/custom-profiles", map[string]interface{}{
		"base_profile_id": "natural", "name": "Daily",
	}, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	var created learning.CustomEnhancementProfile
	decode(t, w, &created)

	w = env.do(t, http.MethodGet, "/api/v1/custom-profiles/"+created.ID.String(), nil, bob)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/custom-profiles/"+created.ID.String(), nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "", true)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status services.HealthStatus
	decode(t, w, &status)
	assert.Equal(t, "healthy", status.Status)

	env.do(t, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{
		"user_id": "alice", "profile_id": "natural", "analysis": portrait(),
	}, "")

	w = env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "retouch_recommendation_requests_total")
}
