package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/booomerangs/ai-orchestrator/internal/archive"
	"github.com/booomerangs/ai-orchestrator/internal/auth"
	"github.com/booomerangs/ai-orchestrator/internal/domain"
	"github.com/booomerangs/ai-orchestrator/internal/health"
	"github.com/booomerangs/ai-orchestrator/internal/quota"
	"github.com/booomerangs/ai-orchestrator/internal/registry"
)

// AdminHandler exposes operator endpoints: health snapshots, quota
// usage, record resets, and the archive tail. Everything behind the
// bearer token.
type AdminHandler struct {
	registry *registry.Registry
	health   *health.Checker
	quota    *quota.Tracker
	archive  archive.Repository
	mux      *http.ServeMux
	handler  http.Handler
}

func NewAdminHandler(reg *registry.Registry, checker *health.Checker, tracker *quota.Tracker, repo archive.Repository, verifier *auth.TokenVerifier) *AdminHandler {
	h := &AdminHandler{
		registry: reg,
		health:   checker,
		quota:    tracker,
		archive:  repo,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /admin/providers", h.listProviders)
	h.mux.HandleFunc("POST /admin/providers/{name}/reset", h.resetProvider)
	h.mux.HandleFunc("GET /admin/archive", h.recentArchive)

	h.handler = verifier.Middleware(h.mux)
	return h
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

type adminProvider struct {
	Name                string              `json:"name"`
	Status              domain.HealthStatus `json:"status"`
	ConsecutiveFailures uint                `json:"consecutiveFailures"`
	Priority            int                 `json:"priority"`
	MinLevel            string              `json:"minLevel"`
	MaxLevel            string              `json:"maxLevel"`
	QuotaUsed           int                 `json:"quotaUsed"`
}

// listProviders returns the passive health view, no probing.
func (h *AdminHandler) listProviders(w http.ResponseWriter, r *http.Request) {
	var providers []adminProvider
	for _, name := range h.registry.Names() {
		desc, _ := h.registry.Descriptor(name)
		rec := h.health.Record(name)

		p := adminProvider{
			Name:                name,
			Status:              rec.Status,
			ConsecutiveFailures: rec.ConsecutiveFailures,
			Priority:            desc.BasePriority,
			MinLevel:            desc.MinLevel.String(),
			MaxLevel:            desc.MaxLevel.String(),
		}
		if h.quota != nil {
			p.QuotaUsed = h.quota.Used(name)
		}
		providers = append(providers, p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"providers": providers,
		"count":     len(providers),
	})
}

// resetProvider clears a provider's health record, ending any
// cooldown immediately.
func (h *AdminHandler) resetProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if _, ok := h.registry.Descriptor(name); !ok {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}

	h.health.Reset(name)
	slog.Info("provider health reset", "provider", name)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"provider": name,
		"status":   string(domain.StatusHealthy),
	})
}

func (h *AdminHandler) recentArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "archive not configured")
		return
	}

	records, err := h.archive.Recent(r.Context(), 50)
	if err != nil {
		slog.Error("archive query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"records": records,
		"count":   len(records),
	})
}
