package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/config"
	"github.com/temcen/retouch/internal/database"
	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/messaging"
	"github.com/temcen/retouch/internal/store"
)

type Services struct {
	Auth        *AuthService
	Health      *HealthService
	Metrics     *MetricsCollector
	Learning    *learning.Manager
	Enhancement *EnhancementService
	Feedback    *FeedbackProcessor
	Bus         *messaging.FeedbackBus
	RateLimit   *RateLimitService

	learningIdle time.Duration
}

// LoadCatalog returns the configured catalog, or the built-in one when no
// catalog file is set.
func LoadCatalog(cfg *config.EngineConfig) (*engine.Catalog, error) {
	if cfg.CatalogPath == "" {
		return engine.DefaultCatalog(), nil
	}
	catalog, err := engine.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.CatalogPath, err)
	}
	return catalog, nil
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	catalog, err := LoadCatalog(&cfg.Engine)
	if err != nil {
		return nil, err
	}
	if cfg.Engine.DefaultProfile != "" {
		if _, err := catalog.Profile(cfg.Engine.DefaultProfile); err != nil {
			return nil, fmt.Errorf("engine.default_profile: %w", err)
		}
	}

	metrics := NewMetricsCollector()
	health := NewHealthService(logger, metrics)

	var repo learning.Repository
	if db.PG != nil {
		pg := store.NewPostgresRepository(db.PG, logger)
		if cfg.Database.AutoMigrate {
			if err := pg.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		repo = pg
		health.Register("postgresql", true, db.PG.Ping)
	} else {
		repo = learning.NewMemoryRepository()
	}
	manager := learning.NewManager(repo, logger)

	eng := engine.NewEngine(catalog)
	feedback := NewFeedbackProcessor(FeedbackProcessorConfig{
		Workers:   cfg.Engine.FeedbackWorkers,
		QueueSize: cfg.Engine.FeedbackQueueSize,
		Timeout:   cfg.Engine.FeedbackTimeout,
	}, manager, logger).WithMetrics(metrics)

	// Optional collaborators are only assigned when present, so the
	// interface fields stay nil rather than holding typed nils.
	var cache RecommendationCacher
	if db.Redis != nil {
		rc := store.NewRecommendationCache(db.Redis, cfg.Engine.CacheTTL, logger)
		cache = rc
		feedback.WithCache(rc)
		health.Register("redis", false, rc.Ping)
	}

	enhancement := NewEnhancementService(eng, manager, cache, metrics, cfg.Engine.DefaultTopN, logger)

	if db.Neo4j != nil {
		graph := store.NewFeedbackGraph(db.Neo4j, logger)
		feedback.WithGraph(graph)
		enhancement.WithGraph(graph)
		health.Register("neo4j", false, db.Neo4j.VerifyConnectivity)
	}

	var rateLimit *RateLimitService
	if cfg.Security.RateLimit.Enabled {
		if db.Redis == nil {
			logger.Warn("Rate limiting needs redis, requests will not be limited")
		} else {
			rateLimit = NewRateLimitService(&cfg.Security.RateLimit, logger, db.Redis)
		}
	}

	var bus *messaging.FeedbackBus
	if cfg.Kafka.Enabled {
		bus = messaging.NewFeedbackBus(&cfg.Kafka, logger)
		feedback.WithEvents(bus)
	}

	logger.WithFields(logrus.Fields{
		"profiles": catalog.Len(),
		"postgres": db.PG != nil,
		"redis":    db.Redis != nil,
		"neo4j":    db.Neo4j != nil,
		"kafka":    bus != nil,
	}).Info("Services initialized")

	return &Services{
		Auth:        NewAuthService(&cfg.Auth, logger),
		Health:      health,
		Metrics:     metrics,
		Learning:    manager,
		Enhancement: enhancement,
		Feedback:    feedback,
		Bus:         bus,
		RateLimit:   rateLimit,

		learningIdle: cfg.Engine.LearningIdleTTL,
	}, nil
}

// Start launches the feedback workers, the idle learning sweep and, when
// Kafka is enabled, the consumer. Background loops stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context, logger *logrus.Logger) {
	s.Feedback.Start()

	if s.learningIdle > 0 {
		go s.sweepLearning(ctx, logger)
	}

	if s.Bus == nil {
		return
	}
	go func() {
		if err := s.Bus.Consume(ctx, s.Feedback.HandleEvent); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Feedback consumer stopped")
		}
	}()
}

func (s *Services) sweepLearning(ctx context.Context, logger *logrus.Logger) {
	ticker := time.NewTicker(s.learningIdle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Learning.EvictIdle(s.learningIdle); n > 0 {
				logger.WithFields(logrus.Fields{
					"evicted": n,
					"cached":  s.Learning.Cached(),
				}).Debug("Evicted idle learning state")
			}
		}
	}
}

func (s *Services) Stop() error {
	s.Feedback.Stop()
	if s.Bus != nil {
		return s.Bus.Close()
	}
	return nil
}
