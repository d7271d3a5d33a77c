// Package bedrock calls Amazon Bedrock's InvokeModel API. This is the
// one credentialed backend on the ladder; registration is gated on AWS
// credentials being resolvable at startup.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

type Provider struct {
	client *bedrockruntime.Client
	model  string
	region string
}

func New(ctx context.Context, region, defaultModel string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithConfig(cfg, defaultModel), nil
}

func NewWithConfig(cfg aws.Config, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "claude-3-5-haiku"
	}
	return &Provider{
		client: bedrockruntime.NewFromConfig(cfg),
		model:  defaultModel,
		region: cfg.Region,
	}
}

func (p *Provider) Name() string { return "bedrock" }

func (p *Provider) Call(ctx context.Context, req domain.ChatRequest) (*domain.ProviderResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(toInvokeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	input := &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(mapModelID(model)),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	}

	output, err := p.client.InvokeModel(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w: %w", domain.ErrProviderError, err)
	}

	var invokeResp invokeResponse
	if err := json.Unmarshal(output.Body, &invokeResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w: %w", domain.ErrInvalidResponse, err)
	}

	var text string
	for _, block := range invokeResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("bedrock returned no text blocks: %w", domain.ErrInvalidResponse)
	}

	return &domain.ProviderResponse{
		Text:  text,
		Model: model,
	}, nil
}

// Probe is a no-op: Bedrock has no cheap unauthenticated liveness
// endpoint and a real InvokeModel costs money. Health is driven by the
// passive path.
func (p *Provider) Probe(ctx context.Context) error {
	return nil
}

type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version,omitempty"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []invokeMessage `json:"messages"`
	System           string          `json:"system,omitempty"`
}

type invokeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mapModelID(model string) string {
	modelMap := map[string]string{
		"claude-3-5-sonnet": "anthropic.claude-3-5-sonnet-20241022-v2:0",
		"claude-3-5-haiku":  "anthropic.claude-3-5-haiku-20241022-v1:0",
		"claude-3-haiku":    "anthropic.claude-3-haiku-20240307-v1:0",
		"titan-text":        "amazon.titan-text-express-v1",
		"llama3-70b":        "meta.llama3-70b-instruct-v1:0",
		"llama3-8b":         "meta.llama3-8b-instruct-v1:0",
	}
	if mapped, ok := modelMap[model]; ok {
		return mapped
	}
	return model
}

func toInvokeRequest(req domain.ChatRequest) invokeRequest {
	var systemPrompt string
	var messages []invokeMessage

	for _, m := range req.Messages {
		if m.Role == "system" {
			systemPrompt = m.Content
			continue
		}
		messages = append(messages, invokeMessage{Role: m.Role, Content: m.Content})
	}
	if len(messages) == 0 {
		messages = append(messages, invokeMessage{Role: "user", Content: req.Message})
	}

	maxTokens := 4096
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return invokeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         messages,
		System:           systemPrompt,
	}
}
