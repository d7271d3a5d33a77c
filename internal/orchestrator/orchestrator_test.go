package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/cache"
	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/health"
	"github.com/booomerangs/ai-orchestrator/internal/registry"
)

// scriptedProvider answers according to its script and counts calls.
type scriptedProvider struct {
	mu    sync.Mutex
	name  string
	calls int
	delay time.Duration
	err   error
	text  string
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Call(ctx context.Context, req domain.ChatRequest) (*domain.ProviderResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &domain.ProviderResponse{Text: p.text, Model: "m-" + p.name, Confidence: 0.9}, nil
}

func (p *scriptedProvider) Probe(ctx context.Context) error { return p.err }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func descriptor(name string, priority int, min, max domain.DegradationLevel) domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Name:         name,
		Capabilities: []domain.Capability{domain.CapabilityText},
		BasePriority: priority,
		DefaultModel: "m-" + name,
		MinLevel:     min,
		MaxLevel:     max,
	}
}

func fastPolicies() Policies {
	return Policies{
		domain.LevelFull:      {Deadline: 200 * time.Millisecond, ConfidenceScale: 1.0, CacheWrites: true},
		domain.LevelBasic:     {Deadline: 200 * time.Millisecond, ConfidenceScale: 0.8, CacheWrites: true},
		domain.LevelMinimal:   {Deadline: 100 * time.Millisecond, ConfidenceScale: 0.6, CacheWrites: true},
		domain.LevelFallback:  {Deadline: 100 * time.Millisecond, ConfidenceScale: 0.4, CacheWrites: true},
		domain.LevelEmergency: {ConfidenceScale: 0.1},
	}
}

type providerReg struct {
	desc domain.ProviderDescriptor
	impl registry.Provider
}

func newOrchestrator(t *testing.T, providers []providerReg) (*Orchestrator, *cache.MemoryCache) {
	t.Helper()

	reg := registry.New(nil)
	for _, p := range providers {
		reg.Register(p.desc, p.impl)
	}

	checker := health.NewChecker(health.Config{DegradedAfter: 3, UnavailableAfter: 6, Cooldown: time.Minute})
	memCache := cache.NewMemoryCache(100, 30*time.Minute)

	return New(Config{
		Registry: reg,
		Health:   checker,
		Cache:    memCache,
		Policies: fastPolicies(),
	}), memCache
}

func TestRespond_FallbackToLowerPriority(t *testing.T) {
	// A(priority 10) fails, B(priority 5) succeeds: result is B's,
	// A's failure is in the history, the cache now holds the mapping.
	failing := &scriptedProvider{name: "A", err: fmt.Errorf("boom: %w", domain.ErrProviderError)}
	working := &scriptedProvider{name: "B", text: "answer from B"}

	o, memCache := newOrchestrator(t, []providerReg{
		{descriptor("A", 10, domain.LevelFull, domain.LevelFallback), failing},
		{descriptor("B", 5, domain.LevelFull, domain.LevelFallback), working},
	})

	req := domain.ChatRequest{Message: "What is a boomerang?"}
	result := o.Respond(context.Background(), req)

	if result.Response != "answer from B" {
		t.Fatalf("response = %q", result.Response)
	}
	if result.Provider != "B" {
		t.Errorf("provider = %s, want B", result.Provider)
	}
	if result.Level != domain.LevelFull {
		t.Errorf("level = %d, want Full", result.Level)
	}
	if result.FromCache {
		t.Error("first request must not come from cache")
	}

	if len(result.ErrorHistory) != 1 {
		t.Fatalf("history = %v, want one record", result.ErrorHistory)
	}
	rec := result.ErrorHistory[0]
	if rec.Provider != "A" || rec.Outcome != domain.OutcomeProviderError {
		t.Errorf("attempt record = %+v", rec)
	}

	if _, ok := memCache.Get(context.Background(), Fingerprint(req)); !ok {
		t.Error("successful response should be cached")
	}
}

func TestRespond_CacheHitMakesZeroProviderCalls(t *testing.T) {
	p := &scriptedProvider{name: "A", text: "cached answer"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("A", 10, domain.LevelFull, domain.LevelFallback), p},
	})

	req := domain.ChatRequest{Message: "  Hello World  "}
	first := o.Respond(context.Background(), req)
	if first.FromCache {
		t.Fatal("first response unexpectedly from cache")
	}

	// Same normalized fingerprint: different whitespace and casing.
	second := o.Respond(context.Background(), domain.ChatRequest{Message: "hello world"})
	if !second.FromCache {
		t.Fatal("second response should come from cache")
	}
	if second.Response != first.Response {
		t.Errorf("cached response = %q, want %q", second.Response, first.Response)
	}
	if p.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (zero on the cached request)", p.callCount())
	}
}

func TestRespond_ProviderOverrideChangesFingerprint(t *testing.T) {
	p := &scriptedProvider{name: "A", text: "answer"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("A", 10, domain.LevelFull, domain.LevelFallback), p},
	})

	o.Respond(context.Background(), domain.ChatRequest{Message: "hi"})
	second := o.Respond(context.Background(), domain.ChatRequest{Message: "hi", Provider: "A"})

	if second.FromCache {
		t.Error("pinned request must not collide with the auto-routed fingerprint")
	}
	if p.callCount() != 2 {
		t.Errorf("provider calls = %d, want 2", p.callCount())
	}
}

func TestRespond_AllProvidersFailServesEmergency(t *testing.T) {
	a := &scriptedProvider{name: "A", err: fmt.Errorf("down: %w", domain.ErrProviderError)}
	b := &scriptedProvider{name: "B", err: fmt.Errorf("down: %w", domain.ErrProviderError)}

	o, memCache := newOrchestrator(t, []providerReg{
		{descriptor("A", 10, domain.LevelFull, domain.LevelFallback), a},
		{descriptor("B", 5, domain.LevelFull, domain.LevelFallback), b},
	})

	req := domain.ChatRequest{Message: "hello friend"}
	result := o.Respond(context.Background(), req)

	if !result.Emergency {
		t.Fatal("expected emergency result")
	}
	if result.Provider != EmergencyProvider {
		t.Errorf("provider = %s, want %s", result.Provider, EmergencyProvider)
	}
	if result.Level != domain.LevelEmergency {
		t.Errorf("level = %d, want Emergency", result.Level)
	}
	if !strings.Contains(strings.ToLower(result.Response), "hello") {
		t.Errorf("greeting rule not applied: %q", result.Response)
	}
	if _, ok := memCache.Get(context.Background(), Fingerprint(req)); ok {
		t.Error("emergency responses must never be cached")
	}
	if memCache.Len() != 0 {
		t.Errorf("cache should be empty, len = %d", memCache.Len())
	}
}

func TestRespond_MonotonicEscalation(t *testing.T) {
	// Provider at Full..Basic always fails; one at Minimal succeeds.
	failing := &scriptedProvider{name: "top", err: fmt.Errorf("down: %w", domain.ErrProviderError)}
	low := &scriptedProvider{name: "low", text: "low answer"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("top", 10, domain.LevelFull, domain.LevelBasic), failing},
		{descriptor("low", 2, domain.LevelMinimal, domain.LevelFallback), low},
	})

	result := o.Respond(context.Background(), domain.ChatRequest{Message: "question"})

	if result.Provider != "low" {
		t.Fatalf("provider = %s, want low", result.Provider)
	}
	if result.Level != domain.LevelMinimal {
		t.Errorf("level = %d, want Minimal", result.Level)
	}

	lastLevel := domain.DegradationLevel(0)
	seen := map[domain.DegradationLevel]int{}
	for _, rec := range result.ErrorHistory {
		if rec.Level < lastLevel {
			t.Errorf("level sequence decreased: %v", result.ErrorHistory)
		}
		lastLevel = rec.Level
		seen[rec.Level]++
	}
	// top attempted once at Full and once at Basic, never twice at one level.
	if seen[domain.LevelFull] != 1 || seen[domain.LevelBasic] != 1 {
		t.Errorf("attempts per level = %v", seen)
	}
}

func TestRespond_ConfidenceScaledByLevel(t *testing.T) {
	low := &scriptedProvider{name: "low", text: "basic answer"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("low", 2, domain.LevelBasic, domain.LevelFallback), low},
	})

	result := o.Respond(context.Background(), domain.ChatRequest{Message: "question"})

	if result.Level != domain.LevelBasic {
		t.Fatalf("level = %d, want Basic", result.Level)
	}
	want := 0.9 * 0.8
	if diff := result.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", result.Confidence, want)
	}
}

func TestRespond_NonRecoverableSkipsRestOfLevel(t *testing.T) {
	broken := &scriptedProvider{name: "broken", err: fmt.Errorf("no key: %w", domain.ErrCredentialMissing)}
	next := &scriptedProvider{name: "next", text: "should not run at Full"}

	reg := registry.New(nil)
	reg.Register(descriptor("broken", 10, domain.LevelFull, domain.LevelFull), broken)
	reg.Register(descriptor("next", 5, domain.LevelFull, domain.LevelFull), next)
	// A second-tier provider that works.
	basic := &scriptedProvider{name: "basic", text: "basic answer"}
	reg.Register(descriptor("basic", 1, domain.LevelBasic, domain.LevelBasic), basic)

	checker := health.NewChecker(health.DefaultConfig())
	o := New(Config{
		Registry: reg,
		Health:   checker,
		Cache:    cache.NewMemoryCache(10, time.Minute),
		Policies: fastPolicies(),
	})

	result := o.Respond(context.Background(), domain.ChatRequest{Message: "question"})

	if next.callCount() != 0 {
		t.Error("non-recoverable failure must short-circuit the remaining candidates at the level")
	}
	if result.Provider != "basic" || result.Level != domain.LevelBasic {
		t.Errorf("result = %s at level %d, want basic at Basic", result.Provider, result.Level)
	}
	if len(result.ErrorHistory) != 1 || result.ErrorHistory[0].Outcome != domain.OutcomeNonRecoverable {
		t.Errorf("history = %+v", result.ErrorHistory)
	}
}

func TestRespond_TimeoutBoundedAttempt(t *testing.T) {
	slow := &scriptedProvider{name: "slow", delay: 5 * time.Second, text: "late"}
	fast := &scriptedProvider{name: "fast", text: "quick"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("slow", 10, domain.LevelFull, domain.LevelFull), slow},
		{descriptor("fast", 5, domain.LevelFull, domain.LevelFull), fast},
	})

	start := time.Now()
	result := o.Respond(context.Background(), domain.ChatRequest{Message: "question"})
	elapsed := time.Since(start)

	if result.Provider != "fast" {
		t.Fatalf("provider = %s, want fast", result.Provider)
	}
	if elapsed > 2*time.Second {
		t.Errorf("request took %v, attempt deadline not enforced", elapsed)
	}
	if len(result.ErrorHistory) != 1 || result.ErrorHistory[0].Outcome != domain.OutcomeTimeout {
		t.Errorf("history = %+v, want one timeout record", result.ErrorHistory)
	}
}

func TestRespond_EmptyMessageStillTerminates(t *testing.T) {
	o, _ := newOrchestrator(t, []providerReg{})

	result := o.Respond(context.Background(), domain.ChatRequest{Message: ""})
	if result == nil {
		t.Fatal("result must never be nil")
	}
	if !result.Emergency {
		t.Error("no providers registered: expected emergency result")
	}
}

func TestRespond_IneligibleProviderSkippedWithoutAttempt(t *testing.T) {
	sick := &scriptedProvider{name: "sick", text: "should not be called"}
	ok := &scriptedProvider{name: "ok", text: "fine"}

	reg := registry.New(nil)
	reg.Register(descriptor("sick", 10, domain.LevelFull, domain.LevelFull), sick)
	reg.Register(descriptor("ok", 5, domain.LevelFull, domain.LevelFull), ok)

	checker := health.NewChecker(health.Config{DegradedAfter: 1, UnavailableAfter: 2, Cooldown: time.Hour})
	checker.ReportOutcome("sick", domain.OutcomeProviderError)
	checker.ReportOutcome("sick", domain.OutcomeProviderError)

	o := New(Config{
		Registry: reg,
		Health:   checker,
		Cache:    cache.NewMemoryCache(10, time.Minute),
		Policies: fastPolicies(),
	})

	result := o.Respond(context.Background(), domain.ChatRequest{Message: "question"})

	if sick.callCount() != 0 {
		t.Error("unavailable provider must be excluded from selection")
	}
	if result.Provider != "ok" {
		t.Errorf("provider = %s, want ok", result.Provider)
	}
}

func TestRespond_ProviderPinMovesToFront(t *testing.T) {
	first := &scriptedProvider{name: "first", text: "first answer"}
	pinned := &scriptedProvider{name: "pinned", text: "pinned answer"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("first", 10, domain.LevelFull, domain.LevelFull), first},
		{descriptor("pinned", 1, domain.LevelFull, domain.LevelFull), pinned},
	})

	result := o.Respond(context.Background(), domain.ChatRequest{Message: "q", Provider: "pinned"})

	if result.Provider != "pinned" {
		t.Fatalf("provider = %s, want pinned", result.Provider)
	}
	if first.callCount() != 0 {
		t.Error("pinned provider should be tried before higher-priority ones")
	}
}

func TestRespond_MaxRetriesCapsAttemptsPerLevel(t *testing.T) {
	a := &scriptedProvider{name: "a", err: fmt.Errorf("down: %w", domain.ErrProviderError)}
	b := &scriptedProvider{name: "b", err: fmt.Errorf("down: %w", domain.ErrProviderError)}
	c := &scriptedProvider{name: "c", text: "never reached at Full"}

	o, _ := newOrchestrator(t, []providerReg{
		{descriptor("a", 10, domain.LevelFull, domain.LevelFull), a},
		{descriptor("b", 8, domain.LevelFull, domain.LevelFull), b},
		{descriptor("c", 6, domain.LevelFull, domain.LevelFull), c},
	})

	two := 2
	result := o.Respond(context.Background(), domain.ChatRequest{Message: "q", MaxRetries: &two})

	if c.callCount() != 0 {
		t.Error("max_retries should cap candidates per level")
	}
	if !result.Emergency {
		t.Errorf("expected emergency after capped level exhausted, got %s", result.Provider)
	}
}

func TestEmergencyResponse_KeywordRules(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"greeting", "Hello there!", "Hello"},
		{"greeting russian", "Привет, как дела?", "Hello"},
		{"capabilities", "what can you do for me?", "assistant"},
		{"generic", "please translate this text", "try again"},
		{"empty", "", "try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EmergencyResponse(tt.message)
			if got == "" {
				t.Fatal("emergency response must never be empty")
			}
			if !strings.Contains(strings.ToLower(got), strings.ToLower(tt.want)) {
				t.Errorf("EmergencyResponse(%q) = %q, want substring %q", tt.message, got, tt.want)
			}
			if again := EmergencyResponse(tt.message); again != got {
				t.Error("emergency response must be deterministic")
			}
		})
	}
}

func TestFingerprint_NormalizesMessage(t *testing.T) {
	a := Fingerprint(domain.ChatRequest{Message: "  Hello World "})
	b := Fingerprint(domain.ChatRequest{Message: "hello world"})
	if a != b {
		t.Error("fingerprint should normalize case and whitespace")
	}

	c := Fingerprint(domain.ChatRequest{Message: "hello world", Model: "qwen-max"})
	if a == c {
		t.Error("model override must change the fingerprint")
	}
}

func TestHistory_OrderedSnapshot(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 3; i++ {
		h.Record(domain.AttemptRecord{Provider: fmt.Sprintf("p%d", i)})
	}

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d", len(snap))
	}
	for i, rec := range snap {
		if rec.Provider != fmt.Sprintf("p%d", i) {
			t.Errorf("snapshot[%d] = %s", i, rec.Provider)
		}
	}

	// Snapshot is a copy.
	snap[0].Provider = "mutated"
	if h.Snapshot()[0].Provider != "p0" {
		t.Error("snapshot must not alias internal storage")
	}
}
