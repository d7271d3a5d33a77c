// Package g4f talks to the local free-provider bridge, a sidecar that
// fronts a rotating pool of no-cost chat backends. The bridge speaks a
// small JSON protocol; this package wraps it and normalizes its
// failure modes into the orchestrator's error taxonomy.
package g4f

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

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httputil.DefaultClient()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// DirectRequest targets one named bridge backend, bypassing the
// bridge's own fallback sweep.
type DirectRequest struct {
	Message    string `json:"message"`
	Provider   string `json:"provider"`
	Model      string `json:"model,omitempty"`
	TimeoutSec int    `json:"timeout,omitempty"`
}

type DirectResponse struct {
	Success  bool    `json:"success"`
	Response string  `json:"response"`
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Elapsed  float64 `json:"elapsed"`
	Error    string  `json:"error,omitempty"`
}

// ChatDirect calls one specific bridge backend. Free backends
// sometimes answer with an HTML block page instead of text; that is
// reported as an invalid response so the caller retries elsewhere
// rather than serving markup to the user.
func (c *Client) ChatDirect(ctx context.Context, req DirectRequest) (*DirectResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/python/chat/direct", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge request: %w: %w", domain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("bridge backend %q: %w", req.Provider, domain.ErrProviderNotFound)
	case resp.StatusCode != http.StatusOK:
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("bridge status=%d body=%s: %w", resp.StatusCode, string(bodyBytes), domain.ErrProviderError)
	}

	var direct DirectResponse
	if err := json.NewDecoder(resp.Body).Decode(&direct); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w: %w", domain.ErrInvalidResponse, err)
	}

	if !direct.Success || direct.Response == "" {
		return nil, fmt.Errorf("bridge backend %q failed: %s: %w", req.Provider, direct.Error, domain.ErrProviderError)
	}

	if looksLikeHTML(direct.Response) {
		return nil, fmt.Errorf("bridge backend %q returned HTML: %w", req.Provider, domain.ErrInvalidResponse)
	}

	return &direct, nil
}

// Health checks bridge reachability.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge unhealthy: status=%d", resp.StatusCode)
	}
	return nil
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.Contains(lower, "<html") || strings.HasPrefix(lower, "<!doctype")
}
