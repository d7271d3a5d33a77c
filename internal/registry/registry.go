// Package registry holds the static provider descriptors and their
// implementations. Descriptors are created at startup and never mutated;
// the registry itself is read-only after New, so no locking is needed.
package registry

import (
	"context"
	"sort"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

// Provider is a single remote backend. Implementations live under
// internal/provider.
type Provider interface {
	Name() string
	Call(ctx context.Context, req domain.ChatRequest) (*domain.ProviderResponse, error)
	// Probe is a cheap reachability check with its own short timeout,
	// used by the health checker's active path.
	Probe(ctx context.Context) error
}

// CredentialChecker reports whether a credential is available for a
// provider that requires one.
type CredentialChecker interface {
	Has(providerName string) bool
}

type entry struct {
	desc domain.ProviderDescriptor
	impl Provider
}

type Registry struct {
	entries map[string]entry
	creds   CredentialChecker
}

func New(creds CredentialChecker) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		creds:   creds,
	}
}

// Register adds a provider. Must only be called during startup wiring.
func (r *Registry) Register(desc domain.ProviderDescriptor, impl Provider) {
	r.entries[desc.Name] = entry{desc: desc, impl: impl}
}

// ListCandidates returns the descriptors eligible at the given level with
// the given capability, ordered by base priority descending. An empty
// result is not an error; callers escalate on it.
func (r *Registry) ListCandidates(level domain.DegradationLevel, capability domain.Capability) []domain.ProviderDescriptor {
	var out []domain.ProviderDescriptor
	for _, e := range r.entries {
		if !e.desc.EligibleAt(level) {
			continue
		}
		if capability != "" && !e.desc.HasCapability(capability) {
			continue
		}
		if e.desc.RequiresCredential && (r.creds == nil || !r.creds.Has(e.desc.Name)) {
			continue
		}
		out = append(out, e.desc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BasePriority != out[j].BasePriority {
			return out[i].BasePriority > out[j].BasePriority
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// Descriptor looks up a provider descriptor by name.
func (r *Registry) Descriptor(name string) (domain.ProviderDescriptor, bool) {
	e, ok := r.entries[name]
	return e.desc, ok
}

// Implementation looks up the callable backend by name.
func (r *Registry) Implementation(name string) (Provider, bool) {
	e, ok := r.entries[name]
	if !ok || e.impl == nil {
		return nil, false
	}
	return e.impl, true
}

// Names returns all registered provider names, priority order.
func (r *Registry) Names() []string {
	descs := make([]domain.ProviderDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		descs = append(descs, e.desc)
	}
	sort.SliceStable(descs, func(i, j int) bool {
		if descs[i].BasePriority != descs[j].BasePriority {
			return descs[i].BasePriority > descs[j].BasePriority
		}
		return descs[i].Name < descs[j].Name
	})

	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}
