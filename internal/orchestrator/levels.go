package orchestrator

import (
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

// LevelPolicy defines how one rung of the ladder behaves: the attempt
// deadline, the confidence multiplier applied to provider results, and
// whether successful responses may be cached.
type LevelPolicy struct {
	Deadline        time.Duration
	ConfidenceScale float64
	CacheWrites     bool
}

// Policies maps every degradation level to its policy. The ladder is
// walked strictly downward; a level is never revisited in one request.
type Policies map[domain.DegradationLevel]LevelPolicy

func DefaultPolicies() Policies {
	return Policies{
		domain.LevelFull:      {Deadline: 30 * time.Second, ConfidenceScale: 1.0, CacheWrites: true},
		domain.LevelBasic:     {Deadline: 10 * time.Second, ConfidenceScale: 0.8, CacheWrites: true},
		domain.LevelMinimal:   {Deadline: 5 * time.Second, ConfidenceScale: 0.6, CacheWrites: true},
		domain.LevelFallback:  {Deadline: 5 * time.Second, ConfidenceScale: 0.4, CacheWrites: true},
		domain.LevelEmergency: {ConfidenceScale: 0.1, CacheWrites: false},
	}
}

func (p Policies) forLevel(level domain.DegradationLevel) LevelPolicy {
	if policy, ok := p[level]; ok {
		return policy
	}
	return LevelPolicy{Deadline: 5 * time.Second, ConfidenceScale: 0.5}
}
