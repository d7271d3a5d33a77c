// Package timeout wraps a single provider call in a deadline race.
package timeout

import (
	"context"
	"fmt"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/registry"
)

type callResult struct {
	resp *domain.ProviderResponse
	err  error
}

// Call invokes the provider and returns whichever settles first: the
// provider's answer or the deadline. The deadline is a parameter, not a
// constant, because heavier multimodal providers legitimately need
// longer budgets.
//
// The attempt context is detached from the caller's cancellation so a
// client disconnect never aborts an in-flight call before it can update
// shared health and cache state; only the deadline bounds it. A result
// arriving after the deadline is discarded.
func Call(ctx context.Context, provider registry.Provider, req domain.ChatRequest, deadline time.Duration) (*domain.ProviderResponse, error) {
	if deadline <= 0 {
		deadline = 5 * time.Second
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadline)
	defer cancel()

	// Buffered so the losing branch can still complete and be dropped.
	results := make(chan callResult, 1)

	go func() {
		resp, err := provider.Call(callCtx, req)
		results <- callResult{resp: resp, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp == nil || r.resp.Text == "" {
			return nil, fmt.Errorf("%s: %w", provider.Name(), domain.ErrInvalidResponse)
		}
		return r.resp, nil
	case <-callCtx.Done():
		return nil, fmt.Errorf("%s after %s: %w", provider.Name(), deadline, domain.ErrTimeout)
	}
}
