package learning

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps learning state in process. It backs the CLI and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*UserLearningProfile
	customs  map[uuid.UUID]*CustomEnhancementProfile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: make(map[string]*UserLearningProfile),
		customs:  make(map[uuid.UUID]*CustomEnhancementProfile),
	}
}

func (r *MemoryRepository) LoadLearningProfile(_ context.Context, userID string) (*UserLearningProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) SaveLearningProfile(_ context.Context, profile *UserLearningProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (r *MemoryRepository) LoadCustomProfile(_ context.Context, id uuid.UUID) (*CustomEnhancementProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customs[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) SaveCustomProfile(_ context.Context, profile *CustomEnhancementProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customs[profile.ID] = profile.Clone()
	return nil
}

func (r *MemoryRepository) ListCustomProfiles(_ context.Context, userID string) ([]*CustomEnhancementProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*CustomEnhancementProfile
	for _, c := range r.customs {
		if c.UserID == userID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
