package quota

import (
	"context"
	"testing"
	"time"
)

func TestTracker_AllowUntilLimit(t *testing.T) {
	tr := NewTracker(3, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !tr.Allow(ctx, "qwen-max") {
			t.Fatalf("call %d should be allowed", i)
		}
		tr.Consume(ctx, "qwen-max")
	}

	if tr.Allow(ctx, "qwen-max") {
		t.Error("provider with spent budget must be excluded")
	}
	if !tr.Allow(ctx, "ollama") {
		t.Error("other providers keep their own budget")
	}
}

func TestTracker_ZeroLimitDisables(t *testing.T) {
	tr := NewTracker(0, nil)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		tr.Consume(ctx, "qwen-max")
	}
	if !tr.Allow(ctx, "qwen-max") {
		t.Error("zero limit must mean unlimited")
	}
}

func TestTracker_ThresholdAlertsFireOnce(t *testing.T) {
	tr := NewTracker(10, nil)
	ctx := context.Background()

	var alerts []Alert
	tr.OnAlert(func(a Alert) { alerts = append(alerts, a) })

	for i := 0; i < 10; i++ {
		tr.Consume(ctx, "qwen-max")
	}

	// 8 calls crosses warning, 10 crosses critical (9.5) and exhausted.
	var levels []AlertLevel
	for _, a := range alerts {
		levels = append(levels, a.Level)
	}
	want := []AlertLevel{AlertLevelWarning, AlertLevelCritical, AlertLevelExhausted}
	if len(levels) != len(want) {
		t.Fatalf("alerts = %v, want %v", levels, want)
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Errorf("alert[%d] = %s, want %s", i, levels[i], want[i])
		}
	}

	// More calls past the limit do not re-fire.
	tr.Consume(ctx, "qwen-max")
	if len(alerts) != len(want) {
		t.Errorf("exhausted alert fired again: %v", alerts)
	}
}

func TestTracker_DailyRollover(t *testing.T) {
	tr := NewTracker(1, nil)
	current := time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return current }
	ctx := context.Background()

	tr.Consume(ctx, "qwen-max")
	if tr.Allow(ctx, "qwen-max") {
		t.Fatal("budget should be spent")
	}

	current = current.Add(2 * time.Hour) // past midnight UTC
	if !tr.Allow(ctx, "qwen-max") {
		t.Error("budget should reset at the new UTC day")
	}
	if tr.Used("qwen-max") != 0 {
		t.Errorf("used = %d after rollover", tr.Used("qwen-max"))
	}
}

func TestInMemoryDeduplicator(t *testing.T) {
	d := NewInMemoryDeduplicator()
	ctx := context.Background()

	if !d.ShouldAlert(ctx, "qwen-max", AlertLevelWarning) {
		t.Error("first warning should fire")
	}
	if d.ShouldAlert(ctx, "qwen-max", AlertLevelWarning) {
		t.Error("repeated warning must be suppressed")
	}
	if !d.ShouldAlert(ctx, "qwen-max", AlertLevelCritical) {
		t.Error("escalation to critical should fire")
	}

	d.Clear(ctx, "qwen-max")
	if !d.ShouldAlert(ctx, "qwen-max", AlertLevelCritical) {
		t.Error("cleared provider should alert again")
	}
}
