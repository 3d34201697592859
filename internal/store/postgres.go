package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/learning"
)

//go:embed schema.sql
var schemaSQL string

// ErrStaleVersion is returned when a custom profile write would overwrite a
// newer version.
var ErrStaleVersion = errors.New("stale custom profile version")

// DatabaseQuerier is satisfied by *pgxpool.Pool and pgxmock pools.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// PostgresRepository stores learning state as JSONB documents.
type PostgresRepository struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

var _ learning.Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db DatabaseQuerier, logger *logrus.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// Migrate creates the tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	r.logger.Info("Learning schema is up to date")
	return nil
}

func (r *PostgresRepository) LoadLearningProfile(ctx context.Context, userID string) (*learning.UserLearningProfile, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT profile FROM user_learning_profiles WHERE user_id = $1`, userID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, learning.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query learning profile: %w", err)
	}

	var profile learning.UserLearningProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode learning profile: %w", err)
	}
	return &profile, nil
}

func (r *PostgresRepository) SaveLearningProfile(ctx context.Context, profile *learning.UserLearningProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode learning profile: %w", err)
	}

	updatedAt := profile.LastUpdated
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO user_learning_profiles (user_id, profile, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = EXCLUDED.updated_at`,
		profile.UserID, data, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert learning profile: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": profile.UserID,
		"history": len(profile.FeedbackHistory),
	}).Debug("Saved learning profile")
	return nil
}

func (r *PostgresRepository) LoadCustomProfile(ctx context.Context, id uuid.UUID) (*learning.CustomEnhancementProfile, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT profile FROM custom_enhancement_profiles WHERE id = $1`, id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, learning.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query custom profile: %w", err)
	}
	return decodeCustom(data)
}

// SaveCustomProfile upserts the profile unless the stored version is already
// at or past the incoming one.
func (r *PostgresRepository) SaveCustomProfile(ctx context.Context, profile *learning.CustomEnhancementProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode custom profile: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO custom_enhancement_profiles
			(id, user_id, base_profile_id, name, version, profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			profile = EXCLUDED.profile,
			updated_at = EXCLUDED.updated_at
		WHERE custom_enhancement_profiles.version < EXCLUDED.version`,
		profile.ID, profile.UserID, profile.BaseProfileID, profile.Name,
		profile.Version, data, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert custom profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s v%d", ErrStaleVersion, profile.ID, profile.Version)
	}
	return nil
}

func (r *PostgresRepository) ListCustomProfiles(ctx context.Context, userID string) ([]*learning.CustomEnhancementProfile, error) {
	rows, err := r.db.Query(ctx,
		`SELECT profile FROM custom_enhancement_profiles WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*learning.CustomEnhancementProfile
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan custom profile: %w", err)
		}
		profile, err := decodeCustom(data)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate custom profiles: %w", err)
	}
	return profiles, nil
}

func decodeCustom(data []byte) (*learning.CustomEnhancementProfile, error) {
	var profile learning.CustomEnhancementProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode custom profile: %w", err)
	}
	return &profile, nil
}
