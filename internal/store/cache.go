package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/pkg/models"
)

const recommendationKeyPrefix = "retouch:recs:"

// RecommendationCache keeps one Redis hash per user, keyed by request
// fingerprint. Feedback for a user drops the whole hash.
type RecommendationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRecommendationCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RecommendationCache {
	return &RecommendationCache{client: client, ttl: ttl, logger: logger}
}

func userKey(userID string) string {
	return recommendationKeyPrefix + userID
}

// Fingerprint identifies a recommendation request independent of the user.
// revision names the learning state the response was built from, so a
// response computed before a feedback event never answers a request made
// after it.
func Fingerprint(req *models.RecommendationRequest, revision string) string {
	payload := struct {
		ProfileID string                  `json:"p"`
		Custom    string                  `json:"c"`
		Analysis  models.AnalysisSnapshot `json:"a"`
		TopN      int                     `json:"n"`
		Revision  string                  `json:"r"`
	}{ProfileID: req.ProfileID, Analysis: req.Analysis, TopN: req.TopN, Revision: revision}
	if req.CustomProfileID != nil {
		payload.Custom = req.CustomProfileID.String()
	}
	payload.Analysis.ImageID = ""

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached response and whether it was found.
func (c *RecommendationCache) Get(ctx context.Context, userID, fingerprint string) (*models.RecommendationResponse, bool, error) {
	data, err := c.client.HGet(ctx, userKey(userID), fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read recommendation cache: %w", err)
	}

	var resp models.RecommendationResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Dropping undecodable cache entry")
		c.client.HDel(ctx, userKey(userID), fingerprint)
		return nil, false, nil
	}
	return &resp, true, nil
}

func (c *RecommendationCache) Set(ctx context.Context, userID, fingerprint string, resp *models.RecommendationResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode recommendation response: %w", err)
	}

	key := userKey(userID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fingerprint, data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write recommendation cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached response for the user.
func (c *RecommendationCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate recommendation cache: %w", err)
	}
	return nil
}

func (c *RecommendationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
