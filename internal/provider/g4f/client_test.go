package g4f

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

func TestChatDirect_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/python/chat/direct" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req DirectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Provider != "Qwen_Qwen_2_72B" {
			t.Errorf("provider = %s", req.Provider)
		}
		json.NewEncoder(w).Encode(DirectResponse{
			Success:  true,
			Response: "a boomerang comes back",
			Provider: req.Provider,
			Model:    req.Model,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	resp, err := client.ChatDirect(context.Background(), DirectRequest{
		Message:  "what is a boomerang",
		Provider: "Qwen_Qwen_2_72B",
		Model:    "qwen-2.5-72b",
	})
	if err != nil {
		t.Fatalf("ChatDirect: %v", err)
	}
	if resp.Response != "a boomerang comes back" {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestChatDirect_HTMLBlockPageIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(DirectResponse{
			Success:  true,
			Response: "<!DOCTYPE html><html><body>Access denied</body></html>",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.ChatDirect(context.Background(), DirectRequest{Message: "hi", Provider: "FreeGpt"})
	if !errors.Is(err, domain.ErrInvalidResponse) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
	if domain.ClassifyError(err) != domain.OutcomeInvalidResponse {
		t.Errorf("outcome = %s", domain.ClassifyError(err))
	}
}

func TestChatDirect_UnknownBackendIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "provider not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.ChatDirect(context.Background(), DirectRequest{Message: "hi", Provider: "Nope"})
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("err = %v, want ErrProviderNotFound", err)
	}
}

func TestChatDirect_BridgeFailureIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream blew up"})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.ChatDirect(context.Background(), DirectRequest{Message: "hi", Provider: "FreeGpt"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("err = %v, want ErrProviderError", err)
	}
}

func TestChatDirect_SuccessFalseIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(DirectResponse{Success: false, Error: "rate limited"})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.ChatDirect(context.Background(), DirectRequest{Message: "hi", Provider: "FreeGpt"})
	if !errors.Is(err, domain.ErrProviderError) {
		t.Fatalf("err = %v, want ErrProviderError", err)
	}
}

func TestProvider_CallAndProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/python/chat/direct":
			var req DirectRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(DirectResponse{
				Success:  true,
				Response: "answer",
				Provider: req.Provider,
				Model:    req.Model,
			})
		case "/health":
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewProvider("qwen-2.5-72b", "Qwen_Qwen_2_72B", "qwen-2.5-72b", NewClient(server.URL, server.Client()))

	if p.Name() != "qwen-2.5-72b" {
		t.Errorf("name = %s", p.Name())
	}

	resp, err := p.Call(context.Background(), domain.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Text != "answer" || resp.Model != "qwen-2.5-72b" {
		t.Errorf("resp = %+v", resp)
	}

	if err := p.Probe(context.Background()); err != nil {
		t.Errorf("Probe: %v", err)
	}
}
