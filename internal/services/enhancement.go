package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/store"
	"github.com/temcen/retouch/pkg/models"
)

const (
	scopeProfile = "profile"
	scopeCustom  = "custom"
	scopeAll     = "all"
)

// EnhancementService answers recommendation requests against the catalog and
// the caller's learned profile. Cache and metrics are optional.
type EnhancementService struct {
	engine      *engine.Engine
	learning    LearningStore
	cache       RecommendationCacher
	graph       FeedbackGraphWriter
	metrics     *MetricsCollector
	defaultTopN int
	logger      *logrus.Logger
	now         func() time.Time
}

func NewEnhancementService(eng *engine.Engine, ls LearningStore, cache RecommendationCacher, metrics *MetricsCollector, defaultTopN int, logger *logrus.Logger) *EnhancementService {
	return &EnhancementService{
		engine:      eng,
		learning:    ls,
		cache:       cache,
		metrics:     metrics,
		defaultTopN: defaultTopN,
		logger:      logger,
		now:         time.Now,
	}
}

// WithGraph adds graph affinities to learning reports.
func (s *EnhancementService) WithGraph(graph FeedbackGraphWriter) *EnhancementService {
	s.graph = graph
	return s
}

func (s *EnhancementService) Profiles() []engine.EnhancementProfile {
	return s.engine.Catalog().Profiles()
}

func (s *EnhancementService) Profile(id string) (engine.EnhancementProfile, error) {
	return s.engine.Catalog().Profile(id)
}

// Recommend evaluates one catalog profile, one custom profile or, when
// neither is named, the whole catalog.
func (s *EnhancementService) Recommend(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error) {
	start := s.now()
	if req.TopN <= 0 {
		req.TopN = s.defaultTopN
	}

	scope := scopeAll
	switch {
	case req.CustomProfileID != nil:
		scope = scopeCustom
	case req.ProfileID != "":
		scope = scopeProfile
	}

	snapshot, err := s.learning.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}

	var custom *learning.CustomEnhancementProfile
	if scope == scopeCustom {
		if custom, err = s.ownedCustom(ctx, req); err != nil {
			return nil, err
		}
	}

	fingerprint := store.Fingerprint(req, cacheRevision(snapshot, custom))
	if cached, ok := s.cached(ctx, req.UserID, fingerprint); ok {
		s.metrics.RecordRecommendation(scope, true, s.now().Sub(start), cached)
		return cached, nil
	}

	var sets []engine.RecommendationSet
	switch scope {
	case scopeCustom:
		set, err := s.recommendCustom(custom, req, snapshot)
		if err != nil {
			return nil, err
		}
		sets = []engine.RecommendationSet{set}
	case scopeProfile:
		set, err := s.engine.RecommendProfile(req.ProfileID, &req.Analysis, snapshot)
		if err != nil {
			return nil, err
		}
		sets = []engine.RecommendationSet{set}
	default:
		sets = s.engine.RecommendAll(&req.Analysis, snapshot)
	}

	resp := &models.RecommendationResponse{
		UserID:      req.UserID,
		Results:     make([]models.ProfileRecommendations, 0, len(sets)),
		GeneratedAt: s.now().UTC(),
	}
	for _, set := range sets {
		resp.Results = append(resp.Results, set.Result(req.TopN))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, req.UserID, fingerprint, resp); err != nil {
			s.logger.WithError(err).WithField("user_id", req.UserID).Warn("Failed to cache recommendations")
		}
	}

	s.metrics.RecordRecommendation(scope, false, s.now().Sub(start), resp)
	s.logger.WithFields(logrus.Fields{
		"user_id":  req.UserID,
		"scope":    scope,
		"profiles": len(resp.Results),
	}).Debug("Generated recommendations")

	return resp, nil
}

func (s *EnhancementService) cached(ctx context.Context, userID, fingerprint string) (*models.RecommendationResponse, bool) {
	if s.cache == nil {
		return nil, false
	}
	resp, ok, err := s.cache.Get(ctx, userID, fingerprint)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Recommendation cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	resp.CacheHit = true
	return resp, true
}

// cacheRevision names the learning state a response depends on.
func cacheRevision(snapshot *learning.UserLearningProfile, custom *learning.CustomEnhancementProfile) string {
	revision := strconv.Itoa(snapshot.Revision())
	if custom != nil {
		revision += "/" + strconv.Itoa(custom.Version)
	}
	return revision
}

func (s *EnhancementService) ownedCustom(ctx context.Context, req *models.RecommendationRequest) (*learning.CustomEnhancementProfile, error) {
	custom, err := s.learning.CustomProfile(ctx, *req.CustomProfileID)
	if err != nil {
		return nil, err
	}
	if custom.UserID != req.UserID {
		return nil, learning.ErrUserMismatch
	}
	return custom, nil
}

func (s *EnhancementService) recommendCustom(custom *learning.CustomEnhancementProfile, req *models.RecommendationRequest, snapshot *learning.UserLearningProfile) (engine.RecommendationSet, error) {
	base, err := s.engine.Catalog().Profile(custom.BaseProfileID)
	if err != nil {
		return engine.RecommendationSet{}, fmt.Errorf("custom profile %s: %w", custom.ID, err)
	}

	profile := custom.ToEnhancementProfile(&base)
	return s.engine.Recommend(&profile, &req.Analysis, snapshot), nil
}

// CreateCustomProfile derives a custom profile from a catalog profile.
func (s *EnhancementService) CreateCustomProfile(ctx context.Context, userID string, req *models.CreateCustomProfileRequest) (*learning.CustomEnhancementProfile, error) {
	base, err := s.engine.Catalog().Profile(req.BaseProfileID)
	if err != nil {
		return nil, err
	}
	return s.learning.CreateCustomProfile(ctx, userID, req.Name, &base)
}

// CustomProfile returns the profile if it belongs to userID. An empty userID
// skips the ownership check.
func (s *EnhancementService) CustomProfile(ctx context.Context, userID string, id string) (*learning.CustomEnhancementProfile, error) {
	profileID, err := ParseProfileID(id)
	if err != nil {
		return nil, err
	}
	custom, err := s.learning.CustomProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if userID != "" && custom.UserID != userID {
		return nil, learning.ErrUserMismatch
	}
	return custom, nil
}

func (s *EnhancementService) CustomProfiles(ctx context.Context, userID string) ([]*learning.CustomEnhancementProfile, error) {
	return s.learning.CustomProfiles(ctx, userID)
}

// LearningReport is the learning snapshot with its effectiveness summary.
type LearningReport struct {
	Profile    *learning.UserLearningProfile `json:"profile"`
	Summary    learning.Summary              `json:"summary"`
	Affinities []store.Affinity              `json:"affinities,omitempty"`
}

func (s *EnhancementService) LearningReport(ctx context.Context, userID string) (*LearningReport, error) {
	snapshot, err := s.learning.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}
	report := &LearningReport{
		Profile: snapshot,
		Summary: learning.Summarize(snapshot),
	}

	if s.graph != nil {
		affinities, err := s.graph.Affinities(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to read graph affinities")
		} else {
			report.Affinities = affinities
		}
	}

	return report, nil
}

// ErrInvalidProfileID is returned for custom profile ids that are not UUIDs.
var ErrInvalidProfileID = errors.New("invalid custom profile id")

// ParseProfileID parses a custom profile id from a request.
func ParseProfileID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidProfileID, id)
	}
	return parsed, nil
}
