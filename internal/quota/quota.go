// Package quota enforces a daily per-provider call budget. Free
// backends tolerate only so much traffic per day; once a provider's
// budget is spent it is excluded from selection until the next UTC
// day. Threshold crossings raise alerts, deduplicated so each level
// fires once per day.
package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type AlertLevel string

const (
	AlertLevelWarning   AlertLevel = "warning"
	AlertLevelCritical  AlertLevel = "critical"
	AlertLevelExhausted AlertLevel = "exhausted"
)

type Alert struct {
	Provider   string
	Level      AlertLevel
	Limit      int
	Used       int
	Percentage float64
	Timestamp  time.Time
}

type AlertHandler func(alert Alert)

type Thresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:  0.8,
		Critical: 0.95,
	}
}

// Tracker counts provider calls against the daily limit. A limit of
// zero disables enforcement entirely.
type Tracker struct {
	mu         sync.Mutex
	counts     map[string]int
	day        string
	limit      int
	thresholds Thresholds
	dedup      Deduplicator
	handlers   []AlertHandler
	now        func() time.Time
}

func NewTracker(limit int, dedup Deduplicator) *Tracker {
	if dedup == nil {
		dedup = NewInMemoryDeduplicator()
	}
	return &Tracker{
		counts:     make(map[string]int),
		limit:      limit,
		thresholds: DefaultThresholds(),
		dedup:      dedup,
		now:        time.Now,
	}
}

func (t *Tracker) OnAlert(handler AlertHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
}

// Allow reports whether the provider still has budget today.
func (t *Tracker) Allow(ctx context.Context, provider string) bool {
	if t.limit <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(ctx)

	return t.counts[provider] < t.limit
}

// Consume records one call and fires any newly crossed threshold
// alert. Called for every attempt, including ones that later fail; a
// failed call still spent the provider's goodwill.
func (t *Tracker) Consume(ctx context.Context, provider string) {
	if t.limit <= 0 {
		return
	}

	t.mu.Lock()
	t.rolloverLocked(ctx)
	t.counts[provider]++
	used := t.counts[provider]
	handlers := make([]AlertHandler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.Unlock()

	percentage := float64(used) / float64(t.limit)

	var level AlertLevel
	switch {
	case percentage >= 1.0:
		level = AlertLevelExhausted
	case percentage >= t.thresholds.Critical:
		level = AlertLevelCritical
	case percentage >= t.thresholds.Warning:
		level = AlertLevelWarning
	default:
		return
	}

	if !t.dedup.ShouldAlert(ctx, provider, level) {
		return
	}

	alert := Alert{
		Provider:   provider,
		Level:      level,
		Limit:      t.limit,
		Used:       used,
		Percentage: percentage * 100,
		Timestamp:  t.now(),
	}
	for _, handler := range handlers {
		handler(alert)
	}
}

// Used returns today's call count for a provider.
func (t *Tracker) Used(provider string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(context.Background())
	return t.counts[provider]
}

func (t *Tracker) rolloverLocked(ctx context.Context) {
	today := t.now().UTC().Format("2006-01-02")
	if t.day == today {
		return
	}
	for provider := range t.counts {
		t.dedup.Clear(ctx, provider)
	}
	t.counts = make(map[string]int)
	t.day = today
}

func LogAlertHandler(alert Alert) {
	slog.Warn("provider quota alert",
		"provider", alert.Provider,
		"level", alert.Level,
		"used", alert.Used,
		"limit", alert.Limit,
		"percentage", alert.Percentage,
	)
}
