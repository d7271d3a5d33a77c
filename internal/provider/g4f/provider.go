package g4f

import (
	"context"
	"time"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

// Provider adapts one named bridge backend to the registry's provider
// interface. Several Provider values share one Client; the bridge
// multiplexes them.
type Provider struct {
	name       string
	bridgeName string
	model      string
	client     *Client
}

// NewProvider maps a registry name to a bridge backend. bridgeName is
// the identifier the bridge itself understands (its upstream pool
// naming), model the default model passed through when the request
// does not override it.
func NewProvider(name, bridgeName, model string, client *Client) *Provider {
	return &Provider{
		name:       name,
		bridgeName: bridgeName,
		model:      model,
		client:     client,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Call(ctx context.Context, req domain.ChatRequest) (*domain.ProviderResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	direct := DirectRequest{
		Message:  req.Message,
		Provider: p.bridgeName,
		Model:    model,
	}
	if deadline, ok := ctx.Deadline(); ok {
		if secs := int(time.Until(deadline).Seconds()); secs > 0 {
			direct.TimeoutSec = secs
		}
	}

	resp, err := p.client.ChatDirect(ctx, direct)
	if err != nil {
		return nil, err
	}

	return &domain.ProviderResponse{
		Text:  resp.Response,
		Model: model,
	}, nil
}

func (p *Provider) Probe(ctx context.Context) error {
	return p.client.Health(ctx)
}
