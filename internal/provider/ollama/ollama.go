// Package ollama calls a local Ollama daemon.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/httputil"
)

type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

func New(baseURL, defaultModel string, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = httputil.DefaultClient()
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   defaultModel,
		client:  httpClient,
	}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) Call(ctx context.Context, req domain.ChatRequest) (*domain.ProviderResponse, error) {
	ollamaReq := toChatRequest(req, p.model)

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w: %w", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama status=%d body=%s: %w", resp.StatusCode, string(bodyBytes), domain.ErrProviderError)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w", domain.ErrInvalidResponse, err)
	}

	return &domain.ProviderResponse{
		Text:  chatResp.Message.Content,
		Model: chatResp.Model,
	}, nil
}

func (p *Provider) Probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama unhealthy: status=%d", resp.StatusCode)
	}
	return nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *options  `json:"options,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string  `json:"model"`
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

func toChatRequest(req domain.ChatRequest, defaultModel string) chatRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	messages := make([]message, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		messages = append(messages, message{Role: m.Role, Content: m.Content})
	}
	if len(messages) == 0 {
		messages = append(messages, message{Role: "user", Content: req.Message})
	}

	out := chatRequest{
		Model:    model,
		Messages: messages,
	}

	if req.Temperature != nil || req.MaxTokens != nil {
		out.Options = &options{}
		if req.Temperature != nil {
			out.Options.Temperature = *req.Temperature
		}
		if req.MaxTokens != nil {
			out.Options.NumPredict = *req.MaxTokens
		}
	}

	return out
}
