package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/pkg/models"
)

// FeedbackGraph mirrors feedback as (User)-[:RATED]->(Enhancement) edges with
// running totals. A nil driver disables it.
type FeedbackGraph struct {
	driver neo4j.DriverWithContext
	logger *logrus.Logger
}

// Affinity is a user's aggregate reaction to one enhancement type.
type Affinity struct {
	Type             models.EnhancementType `json:"type"`
	Ratings          int64                  `json:"ratings"`
	MeanSatisfaction float64                `json:"mean_satisfaction"`
	LastIntensity    float64                `json:"last_intensity"`
}

func NewFeedbackGraph(driver neo4j.DriverWithContext, logger *logrus.Logger) *FeedbackGraph {
	return &FeedbackGraph{driver: driver, logger: logger}
}

func (g *FeedbackGraph) Enabled() bool {
	return g != nil && g.driver != nil
}

const recordFeedbackCypher = `
	MERGE (u:User {id: $user_id})
	MERGE (e:Enhancement {type: $enhancement_type})
	MERGE (u)-[r:RATED]->(e)
	ON CREATE SET r.count = 0, r.total_satisfaction = 0.0
	SET r.count = r.count + 1,
	    r.total_satisfaction = r.total_satisfaction + $satisfaction,
	    r.last_intensity = $intensity,
	    r.would_use_again = $would_use_again,
	    r.updated_at = datetime($timestamp)`

func feedbackParams(fb models.EnhancementFeedback) map[string]interface{} {
	return map[string]interface{}{
		"user_id":          fb.UserID,
		"enhancement_type": string(fb.EnhancementType),
		"satisfaction":     fb.SatisfactionScore,
		"intensity":        fb.AppliedIntensity,
		"would_use_again":  fb.WouldUseAgain,
		"timestamp":        fb.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (g *FeedbackGraph) RecordFeedback(ctx context.Context, fb models.EnhancementFeedback) error {
	if !g.Enabled() {
		return nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, recordFeedbackCypher, feedbackParams(fb))
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to record feedback edge: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"user_id":          fb.UserID,
		"enhancement_type": fb.EnhancementType,
	}).Debug("Recorded feedback edge")
	return nil
}

// Affinities returns the user's rated enhancement types, best first.
func (g *FeedbackGraph) Affinities(ctx context.Context, userID string) ([]Affinity, error) {
	if !g.Enabled() {
		return nil, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (:User {id: $user_id})-[r:RATED]->(e:Enhancement)
			RETURN e.type AS type, r.count AS ratings,
			       r.total_satisfaction / r.count AS mean, r.last_intensity AS last_intensity
			ORDER BY mean DESC, type`,
			map[string]interface{}{"user_id": userID})
		if err != nil {
			return nil, err
		}

		var affinities []Affinity
		for result.Next(ctx) {
			record := result.Record()
			t, _, _ := neo4j.GetRecordValue[string](record, "type")
			ratings, _, _ := neo4j.GetRecordValue[int64](record, "ratings")
			mean, _, _ := neo4j.GetRecordValue[float64](record, "mean")
			last, _, _ := neo4j.GetRecordValue[float64](record, "last_intensity")
			affinities = append(affinities, Affinity{
				Type:             models.EnhancementType(t),
				Ratings:          ratings,
				MeanSatisfaction: mean,
				LastIntensity:    last,
			})
		}
		return affinities, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read affinities: %w", err)
	}
	affinities, _ := out.([]Affinity)
	return affinities, nil
}
