// Package orchestrator drives the degradation ladder: given a user
// message it tries providers level by level, racing each attempt
// against the level's deadline, and degrades through defined quality
// rungs instead of failing. It always returns a terminal result; total
// exhaustion yields a locally computed emergency answer.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/cache"
	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/metrics"
	"github.com/booomerangs/ai-orchestrator/internal/registry"
	"github.com/booomerangs/ai-orchestrator/internal/telemetry"
	"github.com/booomerangs/ai-orchestrator/internal/timeout"
)

// Health is the eligibility and outcome-reporting view of the health
// checker.
type Health interface {
	IsEligible(provider string) bool
	ReportOutcome(provider string, outcome domain.Outcome)
}

// Quota gates providers on their daily call budget. Nil disables
// quota checks.
type Quota interface {
	Allow(ctx context.Context, provider string) bool
	Consume(ctx context.Context, provider string)
}

type Orchestrator struct {
	registry *registry.Registry
	health   Health
	cache    cache.Cache
	quota    Quota
	policies Policies
}

type Config struct {
	Registry *registry.Registry
	Health   Health
	Cache    cache.Cache
	Quota    Quota
	Policies Policies
}

func New(cfg Config) *Orchestrator {
	policies := cfg.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Orchestrator{
		registry: cfg.Registry,
		health:   cfg.Health,
		cache:    cfg.Cache,
		quota:    cfg.Quota,
		policies: policies,
	}
}

// Respond walks the ladder for one request. It never returns an error:
// every input, including one where all providers fail, produces a
// terminal result.
func (o *Orchestrator) Respond(ctx context.Context, req domain.ChatRequest) *domain.Result {
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "orchestrator.respond")
	defer span.End()

	capability := req.Capability
	if capability == "" {
		capability = domain.CapabilityText
	}

	fingerprint := Fingerprint(req)

	if o.cache != nil {
		if entry, ok := o.cache.Get(ctx, fingerprint); ok {
			metrics.RecordCacheHit()
			telemetry.AddCacheAttribute(span, true)
			result := &domain.Result{
				Response:       entry.Response,
				Provider:       entry.Provider,
				Model:          entry.Model,
				Level:          entry.Level,
				Confidence:     entry.Confidence,
				FromCache:      true,
				ProcessingTime: time.Since(start),
			}
			metrics.RecordRequest(entry.Provider, entry.Level.String(), "succeeded", time.Since(start).Seconds())
			return result
		}
		metrics.RecordCacheMiss()
		telemetry.AddCacheAttribute(span, false)
	}

	history := NewHistory()

	for level := domain.LevelFull; level < domain.LevelEmergency; level++ {
		policy := o.policies.forLevel(level)

		if result := o.tryLevel(ctx, req, capability, level, policy, history); result != nil {
			result.ProcessingTime = time.Since(start)
			result.ErrorHistory = history.Snapshot()
			if policy.CacheWrites && o.cache != nil {
				o.cache.Put(ctx, fingerprint, cache.Entry{
					Response:   result.Response,
					Provider:   result.Provider,
					Model:      result.Model,
					Level:      result.Level,
					Confidence: result.Confidence,
				})
			}
			telemetry.AddRequestAttributes(span, result.Provider, int(level))
			metrics.RecordRequest(result.Provider, level.String(), "succeeded", time.Since(start).Seconds())
			return result
		}
	}

	// Emergency: pure local computation, cannot fail, never cached.
	policy := o.policies.forLevel(domain.LevelEmergency)
	result := &domain.Result{
		Response:       EmergencyResponse(req.Message),
		Provider:       EmergencyProvider,
		Model:          emergencyModel,
		Level:          domain.LevelEmergency,
		Confidence:     policy.ConfidenceScale,
		Emergency:      true,
		ProcessingTime: time.Since(start),
		ErrorHistory:   history.Snapshot(),
	}

	metrics.RecordEmergency()
	metrics.RecordRequest(EmergencyProvider, domain.LevelEmergency.String(), "emergency_served", time.Since(start).Seconds())
	slog.Warn("emergency response served",
		"attempts", history.Len(),
		"latency_ms", result.ProcessingTime.Milliseconds(),
	)

	return result
}

// tryLevel attempts every eligible candidate at one level in priority
// order. Returns nil when the level is exhausted.
func (o *Orchestrator) tryLevel(ctx context.Context, req domain.ChatRequest, capability domain.Capability, level domain.DegradationLevel, policy LevelPolicy, history *History) *domain.Result {
	candidates := o.candidates(ctx, req, capability, level)
	if len(candidates) == 0 {
		slog.Debug("no eligible providers at level, escalating", "level", level.String())
		return nil
	}

	if req.MaxRetries != nil && *req.MaxRetries > 0 && len(candidates) > *req.MaxRetries {
		candidates = candidates[:*req.MaxRetries]
	}

	for _, desc := range candidates {
		impl, ok := o.registry.Implementation(desc.Name)
		if !ok {
			continue
		}

		if o.quota != nil {
			o.quota.Consume(ctx, desc.Name)
		}

		attemptStart := time.Now()
		resp, err := timeout.Call(ctx, impl, req, policy.Deadline)
		duration := time.Since(attemptStart)

		if err == nil {
			o.health.ReportOutcome(desc.Name, domain.OutcomeSuccess)
			metrics.RecordAttempt(desc.Name, level.String(), string(domain.OutcomeSuccess), duration.Seconds())
			telemetry.AddAttemptAttributes(ctx, desc.Name, string(domain.OutcomeSuccess), duration.Milliseconds())

			confidence := resp.Confidence
			if confidence <= 0 {
				confidence = 0.9
			}
			model := resp.Model
			if model == "" {
				model = desc.DefaultModel
			}

			return &domain.Result{
				Response:   resp.Text,
				Provider:   desc.Name,
				Model:      model,
				Level:      level,
				Confidence: confidence * policy.ConfidenceScale,
			}
		}

		outcome := domain.ClassifyError(err)
		history.Record(domain.AttemptRecord{
			Level:       level,
			Provider:    desc.Name,
			StartedAt:   attemptStart,
			DurationMs:  duration.Milliseconds(),
			Outcome:     outcome,
			ErrorDetail: err.Error(),
		})
		metrics.RecordAttempt(desc.Name, level.String(), string(outcome), duration.Seconds())
		metrics.RecordProviderError(desc.Name, string(outcome))
		telemetry.AddAttemptAttributes(ctx, desc.Name, string(outcome), duration.Milliseconds())

		slog.Warn("provider attempt failed",
			"provider", desc.Name,
			"level", level.String(),
			"outcome", outcome,
			"duration_ms", duration.Milliseconds(),
		)

		if outcome == domain.OutcomeNonRecoverable {
			// Structural failure; no retry at this level can fix it.
			return nil
		}

		o.health.ReportOutcome(desc.Name, outcome)
	}

	return nil
}

// candidates lists the level's providers in priority order, filtered by
// health eligibility and quota, with an explicit provider pin moved to
// the front.
func (o *Orchestrator) candidates(ctx context.Context, req domain.ChatRequest, capability domain.Capability, level domain.DegradationLevel) []domain.ProviderDescriptor {
	all := o.registry.ListCandidates(level, capability)

	filtered := all[:0:0]
	for _, desc := range all {
		if !o.health.IsEligible(desc.Name) {
			continue
		}
		if o.quota != nil && !o.quota.Allow(ctx, desc.Name) {
			metrics.RecordQuotaExhausted(desc.Name)
			continue
		}
		filtered = append(filtered, desc)
	}

	if req.Provider != "" {
		for i, desc := range filtered {
			if desc.Name == req.Provider && i > 0 {
				pinned := filtered[i]
				copy(filtered[1:i+1], filtered[0:i])
				filtered[0] = pinned
				break
			}
		}
	}

	return filtered
}
