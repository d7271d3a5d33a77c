// Package api is the HTTP surface: the chat endpoints backed by the
// degradation ladder, live provider checks, health, metrics, and the
// admin surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/booomerangs/ai-orchestrator/internal/archive"
	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/health"
	"github.com/booomerangs/ai-orchestrator/internal/metrics"
	"github.com/booomerangs/ai-orchestrator/internal/provider/g4f"
	"github.com/booomerangs/ai-orchestrator/internal/quota"
	"github.com/booomerangs/ai-orchestrator/internal/ratelimit"
	"github.com/booomerangs/ai-orchestrator/internal/registry"
)

// Responder is the orchestrator as the handler sees it.
type Responder interface {
	Respond(ctx context.Context, req domain.ChatRequest) *domain.Result
}

type HandlerConfig struct {
	Orchestrator Responder
	Registry     *registry.Registry
	Health       *health.Checker
	RateLimiter  ratelimit.Limiter
	RateLimitRPM int
	Quota        *quota.Tracker
	Archive      *archive.Worker
	Bridge       *g4f.Client
	Admin        *AdminHandler
	Ready        []HealthChecker
	ReadyTimeout time.Duration
}

type Handler struct {
	orchestrator Responder
	registry     *registry.Registry
	health       *health.Checker
	rateLimiter  ratelimit.Limiter
	rateLimitRPM int
	archive      *archive.Worker
	bridge       *g4f.Client
	mux          *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		orchestrator: cfg.Orchestrator,
		registry:     cfg.Registry,
		health:       cfg.Health,
		rateLimiter:  cfg.RateLimiter,
		rateLimitRPM: cfg.RateLimitRPM,
		archive:      cfg.Archive,
		bridge:       cfg.Bridge,
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /api/ai/chat", h.handleChat)
	h.mux.HandleFunc("POST /api/g4f/chat", h.handleSimpleChat)
	h.mux.HandleFunc("POST /api/g4f/direct", h.handleDirect)
	h.mux.HandleFunc("GET /api/g4f/providers", h.handleListProviders)
	h.mux.HandleFunc("GET /api/g4f/check/{provider}", h.handleCheckProvider)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	readyTimeout := cfg.ReadyTimeout
	if readyTimeout == 0 {
		readyTimeout = 5 * time.Second
	}
	h.mux.HandleFunc("GET /health/ready", handleHealthReady(cfg.Ready, readyTimeout))
	h.mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.Admin != nil {
		h.mux.Handle("/admin/", cfg.Admin)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// chatResponse is the rich contract: the caller sees which rung served
// it and the trail of failed attempts.
type chatResponse struct {
	Success        bool         `json:"success"`
	Response       string       `json:"response"`
	Provider       string       `json:"provider"`
	Model          string       `json:"model"`
	Confidence     float64      `json:"confidence"`
	Quality        string       `json:"quality"`
	Level          int          `json:"level"`
	FromCache      bool         `json:"fromCache"`
	ProcessingTime int64        `json:"processingTime"`
	Metadata       chatMetadata `json:"metadata"`
}

type chatMetadata struct {
	RequestID    string                 `json:"requestId"`
	ErrorHistory []domain.AttemptRecord `json:"errorHistory"`
	SystemLevel  string                 `json:"systemLevel"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID, req, ok := h.acceptChat(w, r)
	if !ok {
		return
	}

	result := h.orchestrator.Respond(r.Context(), *req)
	h.archiveResult(requestID, req.Message, result)

	history := result.ErrorHistory
	if history == nil {
		history = []domain.AttemptRecord{}
	}

	resp := chatResponse{
		Success:        !result.Emergency,
		Response:       result.Response,
		Provider:       result.Provider,
		Model:          result.Model,
		Confidence:     result.Confidence,
		Quality:        result.Level.String(),
		Level:          int(result.Level),
		FromCache:      result.FromCache,
		ProcessingTime: result.ProcessingTime.Milliseconds(),
		Metadata: chatMetadata{
			RequestID:    requestID,
			ErrorHistory: history,
			SystemLevel:  result.Level.String(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	json.NewEncoder(w).Encode(resp)
}

// handleSimpleChat is the compatibility contract: a plain
// {response, provider, model} body, HTTP 200 even when the answer is
// an emergency fallback. Clients on this endpoint only distinguish
// outcomes by the provider name.
func (h *Handler) handleSimpleChat(w http.ResponseWriter, r *http.Request) {
	requestID, req, ok := h.acceptChat(w, r)
	if !ok {
		return
	}

	result := h.orchestrator.Respond(r.Context(), *req)
	h.archiveResult(requestID, req.Message, result)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	json.NewEncoder(w).Encode(map[string]string{
		"response": result.Response,
		"provider": result.Provider,
		"model":    result.Model,
	})
}

// acceptChat runs the shared admission path: rate limiting, body
// decoding, message validation.
func (h *Handler) acceptChat(w http.ResponseWriter, r *http.Request) (string, *domain.ChatRequest, bool) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if h.rateLimiter != nil && h.rateLimitRPM > 0 {
		client := clientKey(r)
		allowed, remaining, resetAt, err := h.rateLimiter.Allow(r.Context(), client, h.rateLimitRPM)
		if err != nil {
			slog.Error("rate limiter error", "error", err, "request_id", requestID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return "", nil, false
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.rateLimitRPM))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetAt.Format(time.RFC3339))

		if !allowed {
			metrics.RecordRateLimitHit(client)
			slog.Warn("rate limit exceeded", "client", client, "request_id", requestID)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return "", nil, false
		}
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", nil, false
	}

	if req.Message == "" && len(req.Messages) > 0 {
		req.Message = req.Messages[len(req.Messages)-1].Content
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return "", nil, false
	}

	return requestID, &req, true
}

func (h *Handler) archiveResult(requestID, message string, result *domain.Result) {
	if h.archive == nil {
		return
	}
	h.archive.Enqueue(domain.ArchiveRecord{
		RequestID:   requestID,
		Message:     message,
		Response:    result.Response,
		Provider:    result.Provider,
		Model:       result.Model,
		Level:       result.Level,
		Confidence:  result.Confidence,
		FromCache:   result.FromCache,
		Emergency:   result.Emergency,
		LatencyMs:   result.ProcessingTime.Milliseconds(),
		Attempts:    result.ErrorHistory,
		CompletedAt: time.Now(),
	})
}

// handleDirect proxies a single named bridge backend, no ladder, no
// cache. Useful for comparing backends by hand.
func (h *Handler) handleDirect(w http.ResponseWriter, r *http.Request) {
	if h.bridge == nil {
		writeError(w, http.StatusNotImplemented, "bridge not configured")
		return
	}

	var req g4f.DirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	resp, err := h.bridge.ChatDirect(r.Context(), req)
	if err != nil {
		slog.Warn("direct bridge call failed", "provider", req.Provider, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type providerStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Status    string `json:"status"`
	Priority  int    `json:"priority"`
}

// handleListProviders live-probes every registered provider. Slow by
// design; the passive health snapshot is on the admin surface.
func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var statuses []providerStatus
	for _, name := range h.registry.Names() {
		desc, _ := h.registry.Descriptor(name)
		impl, ok := h.registry.Implementation(name)
		if !ok {
			continue
		}

		rec := h.health.Probe(ctx, impl)
		statuses = append(statuses, providerStatus{
			Name:      name,
			Available: rec.Status != domain.StatusUnavailable,
			Status:    string(rec.Status),
			Priority:  desc.BasePriority,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"providers": statuses,
		"count":     len(statuses),
	})
}

func (h *Handler) handleCheckProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")

	impl, ok := h.registry.Implementation(name)
	if !ok {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	rec := h.health.Probe(r.Context(), impl)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(providerStatus{
		Name:      name,
		Available: rec.Status != domain.StatusUnavailable,
		Status:    string(rec.Status),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.health.Snapshot()

	providers := make(map[string]string, len(snapshot))
	degraded := 0
	for name, rec := range snapshot {
		providers[name] = string(rec.Status)
		if rec.Status != domain.StatusHealthy {
			degraded++
		}
	}

	status := "ok"
	if len(snapshot) > 0 && degraded == len(snapshot) {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"providers": providers,
	})
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// clientKey identifies the caller for rate limiting: the first
// X-Forwarded-For hop when present, the remote address otherwise.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
