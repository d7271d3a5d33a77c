// Package health tracks per-provider reachability. Passive updates from
// real traffic dominate; an active prober re-checks providers that have
// been unavailable longer than the cooldown, giving a half-open retry
// without flooding a dead backend.
//
// Status transitions:
//   - Healthy -> Degraded after DegradedAfter consecutive failures
//   - Degraded -> Unavailable after UnavailableAfter consecutive failures
//   - any success -> Healthy
package health

import (
	"context"
	"sync"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/metrics"
)

type Config struct {
	DegradedAfter    uint          // consecutive failures before Degraded
	UnavailableAfter uint          // consecutive failures before Unavailable
	Cooldown         time.Duration // exclusion window before half-open retry
	ProbeTimeout     time.Duration // budget for one active probe
}

func DefaultConfig() Config {
	return Config{
		DegradedAfter:    3,
		UnavailableAfter: 6,
		Cooldown:         2 * time.Minute,
		ProbeTimeout:     5 * time.Second,
	}
}

// TransitionHandler is invoked outside the checker's lock whenever a
// provider's status changes.
type TransitionHandler func(provider string, from, to domain.HealthStatus)

// Checker maintains health records for all providers. Safe for
// concurrent use; updates are simple counter and status writes with no
// cross-provider invariant.
type Checker struct {
	mu       sync.RWMutex
	records  map[string]*domain.HealthRecord
	cfg      Config
	handlers []TransitionHandler
	now      func() time.Time
}

func NewChecker(cfg Config) *Checker {
	if cfg.DegradedAfter == 0 {
		cfg.DegradedAfter = 3
	}
	if cfg.UnavailableAfter < cfg.DegradedAfter {
		cfg.UnavailableAfter = cfg.DegradedAfter * 2
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	return &Checker{
		records: make(map[string]*domain.HealthRecord),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (c *Checker) OnTransition(h TransitionHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Checker) record(provider string) *domain.HealthRecord {
	rec, ok := c.records[provider]
	if !ok {
		rec = &domain.HealthRecord{Provider: provider, Status: domain.StatusHealthy}
		c.records[provider] = rec
	}
	return rec
}

// ReportOutcome is the passive update path, fed by real traffic.
func (c *Checker) ReportOutcome(provider string, outcome domain.Outcome) {
	c.mu.Lock()
	rec := c.record(provider)
	prev := rec.Status

	if outcome == domain.OutcomeSuccess {
		rec.ConsecutiveFailures = 0
		rec.LastSuccessAt = c.now()
		rec.Status = domain.StatusHealthy
	} else {
		rec.ConsecutiveFailures++
		rec.LastFailureAt = c.now()
		switch {
		case rec.ConsecutiveFailures >= c.cfg.UnavailableAfter:
			rec.Status = domain.StatusUnavailable
		case rec.ConsecutiveFailures >= c.cfg.DegradedAfter:
			rec.Status = domain.StatusDegraded
		}
	}

	next := rec.Status
	handlers := c.handlers
	c.mu.Unlock()

	metrics.SetProviderHealth(provider, string(next))

	if prev != next {
		for _, h := range handlers {
			h(provider, prev, next)
		}
	}
}

// IsEligible reports whether a provider may be selected. Unavailable
// providers become eligible again once the cooldown has elapsed; the
// next real call is their half-open trial.
func (c *Checker) IsEligible(provider string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[provider]
	if !ok || rec.Status != domain.StatusUnavailable {
		return true
	}
	return c.now().Sub(rec.LastFailureAt) >= c.cfg.Cooldown
}

// Record returns a copy of the provider's health record.
func (c *Checker) Record(provider string) domain.HealthRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if rec, ok := c.records[provider]; ok {
		return *rec
	}
	return domain.HealthRecord{Provider: provider, Status: domain.StatusHealthy}
}

// Snapshot returns copies of all known records.
func (c *Checker) Snapshot() map[string]domain.HealthRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.HealthRecord, len(c.records))
	for name, rec := range c.records {
		out[name] = *rec
	}
	return out
}

// Reset clears a provider's record, closing any cooldown. Used by the
// admin surface.
func (c *Checker) Reset(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, provider)
	metrics.SetProviderHealth(provider, string(domain.StatusHealthy))
}

// ProbeTarget is anything the active prober can check. Provider
// implementations satisfy it.
type ProbeTarget interface {
	Name() string
	Probe(ctx context.Context) error
}

// Probe runs one active check against the target and folds the result
// into the provider's record.
func (c *Checker) Probe(ctx context.Context, target ProbeTarget) domain.HealthRecord {
	timeout := c.cfg.ProbeTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := target.Probe(probeCtx); err != nil {
		c.ReportOutcome(target.Name(), domain.ClassifyError(err))
	} else {
		c.ReportOutcome(target.Name(), domain.OutcomeSuccess)
	}
	return c.Record(target.Name())
}
