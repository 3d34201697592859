package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/temcen/retouch/pkg/models"
)

var (
	ErrUnknownEnhancementType = errors.New("unknown enhancement type")
	ErrPrerequisiteCycle      = errors.New("prerequisite cycle")
	ErrInvalidProfile         = errors.New("invalid profile")
	ErrDuplicateProfile       = errors.New("duplicate profile")
	ErrProfileNotFound        = errors.New("profile not found")
)

// Catalog is an immutable, validated set of enhancement profiles. It is built
// once at startup and shared by every request.
type Catalog struct {
	profiles []EnhancementProfile
	byID     map[string]int
}

// NewCatalog validates and registers the given profiles. Any configuration
// error rejects the whole catalog.
func NewCatalog(profiles ...EnhancementProfile) (*Catalog, error) {
	c := &Catalog{
		profiles: make([]EnhancementProfile, 0, len(profiles)),
		byID:     make(map[string]int, len(profiles)),
	}

	for _, p := range profiles {
		if err := ValidateProfile(&p); err != nil {
			return nil, err
		}
		if _, exists := c.byID[p.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProfile, p.ID)
		}
		c.byID[p.ID] = len(c.profiles)
		c.profiles = append(c.profiles, p.Clone())
	}

	return c, nil
}

// Profile returns a copy of the profile with the given id.
func (c *Catalog) Profile(id string) (EnhancementProfile, error) {
	idx, ok := c.byID[id]
	if !ok {
		return EnhancementProfile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return c.profiles[idx].Clone(), nil
}

// Profiles returns copies of every profile in registration order.
func (c *Catalog) Profiles() []EnhancementProfile {
	out := make([]EnhancementProfile, len(c.profiles))
	for i, p := range c.profiles {
		out[i] = p.Clone()
	}
	return out
}

func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.profiles))
	for i, p := range c.profiles {
		ids[i] = p.ID
	}
	return ids
}

func (c *Catalog) Len() int {
	return len(c.profiles)
}

// ValidateProfile reports configuration errors in a single profile.
func ValidateProfile(p *EnhancementProfile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProfile)
	}
	if !(p.IntensityMultiplier > 0) || math.IsInf(p.IntensityMultiplier, 0) {
		return fmt.Errorf("%w: %s: intensity multiplier must be positive, got %v", ErrInvalidProfile, p.ID, p.IntensityMultiplier)
	}

	lo, hi := p.Bounds()
	if lo < 0 || hi > 1 || lo > hi {
		return fmt.Errorf("%w: %s: intensity bounds [%v, %v] outside [0, 1]", ErrInvalidProfile, p.ID, lo, hi)
	}

	if err := validateConditions(p.ID, p.Conditions); err != nil {
		return err
	}

	seen := make(map[models.EnhancementType]bool, len(p.Configurations))
	for _, cfg := range p.Configurations {
		if !cfg.Type.IsValid() {
			return fmt.Errorf("%w: %q in profile %s", ErrUnknownEnhancementType, cfg.Type, p.ID)
		}
		if seen[cfg.Type] {
			return fmt.Errorf("%w: %s: operation %s declared twice", ErrInvalidProfile, p.ID, cfg.Type)
		}
		seen[cfg.Type] = true

		if cfg.BaseIntensity < 0 || cfg.BaseIntensity > 1 {
			return fmt.Errorf("%w: %s: base intensity of %s is %v", ErrInvalidProfile, p.ID, cfg.Type, cfg.BaseIntensity)
		}
		for _, t := range cfg.Prerequisites {
			if !t.IsValid() {
				return fmt.Errorf("%w: %q as prerequisite of %s in profile %s", ErrUnknownEnhancementType, t, cfg.Type, p.ID)
			}
			if t == cfg.Type {
				return fmt.Errorf("%w: %s requires itself in profile %s", ErrPrerequisiteCycle, cfg.Type, p.ID)
			}
		}
		for _, t := range cfg.ConflictsWith {
			if !t.IsValid() {
				return fmt.Errorf("%w: %q as conflict of %s in profile %s", ErrUnknownEnhancementType, t, cfg.Type, p.ID)
			}
		}
		for _, adj := range cfg.Adjustments {
			if !adj.Factor.IsValid() {
				return fmt.Errorf("%w: %s: unknown factor %q on %s", ErrInvalidProfile, p.ID, adj.Factor, cfg.Type)
			}
			if !(adj.Multiplier >= 0) || math.IsInf(adj.Multiplier, 0) {
				return fmt.Errorf("%w: %s: multiplier of %s must be non-negative", ErrInvalidProfile, p.ID, cfg.Type)
			}
			if adj.Gated() && !adj.Operator.IsValid() {
				return fmt.Errorf("%w: %s: unknown operator %q on %s", ErrInvalidProfile, p.ID, adj.Operator, cfg.Type)
			}
		}
		if err := validateConditions(p.ID, cfg.Conditions); err != nil {
			return err
		}
	}

	return detectPrerequisiteCycle(p)
}

func validateConditions(profileID string, conditions []ApplicabilityCondition) error {
	for _, c := range conditions {
		if !c.Factor.IsValid() {
			return fmt.Errorf("%w: %s: unknown factor %q", ErrInvalidProfile, profileID, c.Factor)
		}
		if !c.Operator.IsValid() {
			return fmt.Errorf("%w: %s: unknown operator %q", ErrInvalidProfile, profileID, c.Operator)
		}
	}
	return nil
}

// detectPrerequisiteCycle walks the prerequisite graph depth-first.
func detectPrerequisiteCycle(p *EnhancementProfile) error {
	edges := make(map[models.EnhancementType][]models.EnhancementType, len(p.Configurations))
	for _, cfg := range p.Configurations {
		edges[cfg.Type] = cfg.Prerequisites
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[models.EnhancementType]int, len(edges))

	var visit func(t models.EnhancementType) error
	visit = func(t models.EnhancementType) error {
		switch state[t] {
		case visiting:
			return fmt.Errorf("%w: through %s in profile %s", ErrPrerequisiteCycle, t, p.ID)
		case done:
			return nil
		}
		state[t] = visiting
		for _, next := range edges[t] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[t] = done
		return nil
	}

	for _, cfg := range p.Configurations {
		if err := visit(cfg.Type); err != nil {
			return err
		}
	}
	return nil
}
