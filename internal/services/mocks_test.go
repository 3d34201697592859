package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/messaging"
	"github.com/temcen/retouch/internal/store"
	"github.com/temcen/retouch/pkg/models"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, userID, fingerprint string) (*models.RecommendationResponse, bool, error) {
	args := m.Called(ctx, userID, fingerprint)
	resp, _ := args.Get(0).(*models.RecommendationResponse)
	return resp, args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, userID, fingerprint string, resp *models.RecommendationResponse) error {
	return m.Called(ctx, userID, fingerprint, resp).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockGraph struct {
	mock.Mock
}

func (m *mockGraph) RecordFeedback(ctx context.Context, fb models.EnhancementFeedback) error {
	return m.Called(ctx, fb).Error(0)
}

func (m *mockGraph) Affinities(ctx context.Context, userID string) ([]store.Affinity, error) {
	args := m.Called(ctx, userID)
	a, _ := args.Get(0).([]store.Affinity)
	return a, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event messaging.FeedbackEvent) error {
	return m.Called(ctx, event).Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newManager() *learning.Manager {
	return learning.NewManager(learning.NewMemoryRepository(), testLogger())
}
