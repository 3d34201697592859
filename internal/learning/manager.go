package learning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/pkg/models"
)

// Repository persists learning state. Load methods return ErrProfileNotFound
// for unknown keys.
type Repository interface {
	LoadLearningProfile(ctx context.Context, userID string) (*UserLearningProfile, error)
	SaveLearningProfile(ctx context.Context, profile *UserLearningProfile) error
	LoadCustomProfile(ctx context.Context, id uuid.UUID) (*CustomEnhancementProfile, error)
	SaveCustomProfile(ctx context.Context, profile *CustomEnhancementProfile) error
	ListCustomProfiles(ctx context.Context, userID string) ([]*CustomEnhancementProfile, error)
}

type userEntry struct {
	mu      sync.Mutex
	profile *UserLearningProfile
	customs map[uuid.UUID]*CustomEnhancementProfile

	// guarded by Manager.mu
	refs     int
	lastUsed time.Time
}

// Manager serializes writes per user and hands out snapshots.
//
// Every write for a user, learning or custom profile, runs under that user's
// lock and is persisted before the in-memory state is replaced. A failed save
// leaves the previous state in place. Entries of idle users can be dropped
// with EvictIdle and are reloaded from the Repository on next use.
type Manager struct {
	repo   Repository
	logger *logrus.Logger
	now    func() time.Time

	mu    sync.Mutex
	users map[string]*userEntry
	owner map[uuid.UUID]string
}

func NewManager(repo Repository, logger *logrus.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		users:  make(map[string]*userEntry),
		owner:  make(map[uuid.UUID]string),
	}
}

// acquire returns the user's entry and pins it until release.
func (m *Manager) acquire(userID string) *userEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.users[userID]
	if !ok {
		e = &userEntry{customs: make(map[uuid.UUID]*CustomEnhancementProfile)}
		m.users[userID] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(e *userEntry) {
	m.mu.Lock()
	e.refs--
	e.lastUsed = m.now()
	m.mu.Unlock()
}

// EvictIdle drops the cached state of users untouched for at least idle and
// returns how many were dropped. Entries in use are never dropped.
func (m *Manager) EvictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for userID, e := range m.users {
		if e.refs > 0 || e.lastUsed.After(cutoff) {
			continue
		}
		delete(m.users, userID)
		evicted++
	}
	for id, userID := range m.owner {
		if _, ok := m.users[userID]; !ok {
			delete(m.owner, id)
		}
	}
	return evicted
}

// Cached returns the number of users held in memory.
func (m *Manager) Cached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// load must be called with e.mu held.
func (m *Manager) load(ctx context.Context, e *userEntry, userID string) error {
	if e.profile != nil {
		return nil
	}

	profile, err := m.repo.LoadLearningProfile(ctx, userID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		profile = NewUserLearningProfile(userID)
	case err != nil:
		return fmt.Errorf("failed to load learning profile: %w", err)
	}
	profile.ensureMaps()
	e.profile = profile
	return nil
}

// Snapshot returns a deep copy of the user's learning profile. Unknown users
// get an empty profile that is not persisted until their first feedback.
func (m *Manager) Snapshot(ctx context.Context, userID string) (*UserLearningProfile, error) {
	e := m.acquire(userID)
	defer m.release(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.load(ctx, e, userID); err != nil {
		return nil, err
	}
	return e.profile.Clone(), nil
}

// ApplyFeedback validates, applies and persists one feedback event and
// returns the updated snapshot.
func (m *Manager) ApplyFeedback(ctx context.Context, fb models.EnhancementFeedback) (*UserLearningProfile, error) {
	if err := ValidateFeedback(&fb); err != nil {
		return nil, err
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = m.now().UTC()
	}

	e := m.acquire(fb.UserID)
	defer m.release(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.load(ctx, e, fb.UserID); err != nil {
		return nil, err
	}

	if e.profile.HasFeedback(fb.ID) {
		return e.profile.Clone(), nil
	}

	working := e.profile.Clone()
	working.Record(fb)

	if err := m.repo.SaveLearningProfile(ctx, working); err != nil {
		return nil, fmt.Errorf("failed to save learning profile: %w", err)
	}
	e.profile = working

	m.logger.WithFields(logrus.Fields{
		"user_id":          fb.UserID,
		"enhancement_type": fb.EnhancementType,
		"satisfaction":     fb.SatisfactionScore,
		"preference":       working.PreferenceWeights[fb.EnhancementType],
		"history":          len(working.FeedbackHistory),
	}).Debug("Applied enhancement feedback")

	return working.Clone(), nil
}

// CreateCustomProfile derives and stores a new custom profile for the user.
func (m *Manager) CreateCustomProfile(ctx context.Context, userID, name string, base *engine.EnhancementProfile) (*CustomEnhancementProfile, error) {
	custom := BuildCustomProfile(base, userID, name, m.now().UTC())

	e := m.acquire(userID)
	defer m.release(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.repo.SaveCustomProfile(ctx, custom); err != nil {
		return nil, fmt.Errorf("failed to save custom profile: %w", err)
	}
	e.customs[custom.ID] = custom
	m.setOwner(custom.ID, userID)

	m.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"profile_id": custom.ID,
		"base":       base.ID,
	}).Info("Created custom profile")

	return custom.Clone(), nil
}

func (m *Manager) setOwner(id uuid.UUID, userID string) {
	m.mu.Lock()
	m.owner[id] = userID
	m.mu.Unlock()
}

func (m *Manager) ownerOf(id uuid.UUID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.owner[id]
	return userID, ok
}

// customLocked must be called with e.mu held.
func (m *Manager) customLocked(ctx context.Context, e *userEntry, id uuid.UUID) (*CustomEnhancementProfile, error) {
	if c, ok := e.customs[id]; ok {
		return c, nil
	}
	c, err := m.repo.LoadCustomProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	e.customs[id] = c
	return c, nil
}

// CustomProfile returns a copy of a custom profile.
func (m *Manager) CustomProfile(ctx context.Context, id uuid.UUID) (*CustomEnhancementProfile, error) {
	userID, ok := m.ownerOf(id)
	if !ok {
		c, err := m.repo.LoadCustomProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		m.setOwner(id, c.UserID)
		userID = c.UserID
	}

	e := m.acquire(userID)
	defer m.release(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := m.customLocked(ctx, e, id)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (m *Manager) CustomProfiles(ctx context.Context, userID string) ([]*CustomEnhancementProfile, error) {
	profiles, err := m.repo.ListCustomProfiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom profiles: %w", err)
	}
	return profiles, nil
}

// ApplyCustomFeedback applies one rating to a custom profile owned by fb.UserID.
func (m *Manager) ApplyCustomFeedback(ctx context.Context, fb models.CustomProfileFeedback) (*CustomEnhancementProfile, error) {
	if err := ValidateCustomFeedback(&fb); err != nil {
		return nil, err
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = m.now().UTC()
	}

	e := m.acquire(fb.UserID)
	defer m.release(e)
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := m.customLocked(ctx, e, fb.ProfileID)
	if err != nil {
		return nil, err
	}
	if current.UserID != fb.UserID {
		delete(e.customs, fb.ProfileID)
		return nil, fmt.Errorf("%w: %s", ErrUserMismatch, fb.ProfileID)
	}

	if current.LearningData.HasFeedback(fb.ID) {
		return current.Clone(), nil
	}

	working := current.Clone()
	working.UpdateFromFeedback(fb)

	if err := m.repo.SaveCustomProfile(ctx, working); err != nil {
		return nil, fmt.Errorf("failed to save custom profile: %w", err)
	}
	e.customs[working.ID] = working
	m.setOwner(working.ID, working.UserID)

	m.logger.WithFields(logrus.Fields{
		"user_id":    fb.UserID,
		"profile_id": fb.ProfileID,
		"version":    working.Version,
		"confidence": working.Confidence,
	}).Debug("Applied custom profile feedback")

	return working.Clone(), nil
}
