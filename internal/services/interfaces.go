package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/messaging"
	"github.com/temcen/retouch/internal/store"
	"github.com/temcen/retouch/pkg/models"
)

// LearningStore is the learning.Manager surface the services depend on.
type LearningStore interface {
	Snapshot(ctx context.Context, userID string) (*learning.UserLearningProfile, error)
	ApplyFeedback(ctx context.Context, fb models.EnhancementFeedback) (*learning.UserLearningProfile, error)
	CreateCustomProfile(ctx context.Context, userID, name string, base *engine.EnhancementProfile) (*learning.CustomEnhancementProfile, error)
	CustomProfile(ctx context.Context, id uuid.UUID) (*learning.CustomEnhancementProfile, error)
	CustomProfiles(ctx context.Context, userID string) ([]*learning.CustomEnhancementProfile, error)
	ApplyCustomFeedback(ctx context.Context, fb models.CustomProfileFeedback) (*learning.CustomEnhancementProfile, error)
}

// RecommendationCacher caches recommendation responses per user.
type RecommendationCacher interface {
	Get(ctx context.Context, userID, fingerprint string) (*models.RecommendationResponse, bool, error)
	Set(ctx context.Context, userID, fingerprint string, resp *models.RecommendationResponse) error
	Invalidate(ctx context.Context, userID string) error
}

// FeedbackGraphWriter mirrors feedback into the graph store.
type FeedbackGraphWriter interface {
	RecordFeedback(ctx context.Context, fb models.EnhancementFeedback) error
	Affinities(ctx context.Context, userID string) ([]store.Affinity, error)
}

// EventPublisher emits applied feedback events.
type EventPublisher interface {
	Publish(ctx context.Context, event messaging.FeedbackEvent) error
}

var (
	_ LearningStore        = (*learning.Manager)(nil)
	_ RecommendationCacher = (*store.RecommendationCache)(nil)
	_ FeedbackGraphWriter  = (*store.FeedbackGraph)(nil)
	_ EventPublisher       = (*messaging.FeedbackBus)(nil)
)
