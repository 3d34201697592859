package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/config"
	"github.com/temcen/retouch/pkg/models"
)

// RateLimitService is a sliding window limiter over Redis sorted sets. When
// Redis is unreachable requests are let through.
type RateLimitService struct {
	limit       int
	window      time.Duration
	logger      *logrus.Logger
	redisClient *redis.Client
	now         func() time.Time
}

func NewRateLimitService(cfg *config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		limit:       cfg.Requests,
		window:      cfg.Window,
		logger:      logger,
		redisClient: redisClient,
		now:         time.Now,
	}
}

func (s *RateLimitService) key(clientID string) string {
	return "retouch:rate_limit:" + clientID
}

// IsAllowed counts this request against clientID's window and reports
// whether it fits.
func (s *RateLimitService) IsAllowed(ctx context.Context, clientID string) (bool, *models.RateLimitInfo) {
	now := s.now()
	windowStart := now.Add(-s.window)
	key := s.key(clientID)
	info := &models.RateLimitInfo{
		Limit:     s.limit,
		ResetTime: now.Add(s.window).Unix(),
	}

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, s.window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to execute rate limit pipeline")
		info.Remaining = s.limit - 1
		return true, info
	}

	used := int(countCmd.Val()) + 1
	info.Remaining = s.limit - used
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return used <= s.limit, info
}

// Reset clears clientID's window.
func (s *RateLimitService) Reset(ctx context.Context, clientID string) error {
	return s.redisClient.Del(ctx, s.key(clientID)).Err()
}
