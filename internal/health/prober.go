package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

// Prober periodically re-checks providers that have been unavailable
// longer than the cooldown. Healthy providers are never actively
// probed; real traffic keeps their records fresh.
type Prober struct {
	checker  *Checker
	targets  []ProbeTarget
	interval time.Duration
}

func NewProber(checker *Checker, targets []ProbeTarget, interval time.Duration) *Prober {
	if interval == 0 {
		interval = time.Minute
	}
	return &Prober{
		checker:  checker,
		targets:  targets,
		interval: interval,
	}
}

// Run blocks until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Prober) sweep(ctx context.Context) {
	for _, target := range p.targets {
		rec := p.checker.Record(target.Name())
		if rec.Status != domain.StatusUnavailable {
			continue
		}
		if !p.checker.IsEligible(target.Name()) {
			continue
		}

		after := p.checker.Probe(ctx, target)
		slog.Info("half-open probe",
			"provider", target.Name(),
			"status", after.Status,
		)
	}
}
