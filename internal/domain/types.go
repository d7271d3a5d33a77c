package domain

import "time"

// Capability tags a provider with the kinds of requests it can serve.
type Capability string

const (
	CapabilityText   Capability = "text"
	CapabilityVision Capability = "vision"
	CapabilityCode   Capability = "code"
)

// DegradationLevel is one rung of the fallback ladder. Lower values mean
// higher answer quality; the orchestrator only ever moves downward.
type DegradationLevel int

const (
	LevelFull      DegradationLevel = 1
	LevelBasic     DegradationLevel = 2
	LevelMinimal   DegradationLevel = 3
	LevelFallback  DegradationLevel = 4
	LevelEmergency DegradationLevel = 5
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelFull:
		return "FULL_SEMANTIC"
	case LevelBasic:
		return "BASIC_SEMANTIC"
	case LevelMinimal:
		return "MINIMAL_SEMANTIC"
	case LevelFallback:
		return "FALLBACK"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// ProviderDescriptor is the immutable registry entry for one backend.
// Built from static configuration at startup and never mutated.
type ProviderDescriptor struct {
	Name               string
	Capabilities       []Capability
	RequiresCredential bool
	BasePriority       int
	DefaultModel       string
	// MinLevel and MaxLevel bound the degradation levels at which this
	// provider may be selected.
	MinLevel DegradationLevel
	MaxLevel DegradationLevel
}

func (d ProviderDescriptor) HasCapability(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func (d ProviderDescriptor) EligibleAt(level DegradationLevel) bool {
	return level >= d.MinLevel && level <= d.MaxLevel
}

// ChatRequest is the normalized request the orchestrator works with.
type ChatRequest struct {
	Message     string     `json:"message"`
	Messages    []Message  `json:"messages,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	Model       string     `json:"model,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	MaxTokens   *int       `json:"maxTokens,omitempty"`
	MaxRetries  *int       `json:"max_retries,omitempty"`
	Capability  Capability `json:"-"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProviderResponse is what a single backend call yields.
type ProviderResponse struct {
	Text       string
	Model      string
	Confidence float64
}

// Outcome classifies how a single provider attempt ended.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeProviderError   Outcome = "provider_error"
	OutcomeInvalidResponse Outcome = "invalid_response"
	OutcomeNonRecoverable  Outcome = "non_recoverable"
)

// AttemptRecord captures one provider call for diagnostics. Records are
// request-scoped and discarded once the request completes.
type AttemptRecord struct {
	Level       DegradationLevel `json:"level"`
	Provider    string           `json:"provider"`
	StartedAt   time.Time        `json:"startedAt"`
	DurationMs  int64            `json:"durationMs"`
	Outcome     Outcome          `json:"outcome"`
	ErrorDetail string           `json:"errorDetail,omitempty"`
}

// Result is the orchestrator's terminal output. It is always produced;
// total exhaustion yields an emergency result, never an error.
type Result struct {
	Response       string           `json:"response"`
	Provider       string           `json:"provider"`
	Model          string           `json:"model"`
	Level          DegradationLevel `json:"level"`
	Confidence     float64          `json:"confidence"`
	FromCache      bool             `json:"fromCache"`
	Emergency      bool             `json:"emergency"`
	ProcessingTime time.Duration    `json:"-"`
	ErrorHistory   []AttemptRecord  `json:"-"`
}

// HealthStatus is the three-way provider health classification.
type HealthStatus string

const (
	StatusHealthy     HealthStatus = "healthy"
	StatusDegraded    HealthStatus = "degraded"
	StatusUnavailable HealthStatus = "unavailable"
)

// HealthRecord is the mutable per-provider health state.
type HealthRecord struct {
	Provider            string       `json:"provider"`
	ConsecutiveFailures uint         `json:"consecutiveFailures"`
	LastSuccessAt       time.Time    `json:"lastSuccessAt,omitempty"`
	LastFailureAt       time.Time    `json:"lastFailureAt,omitempty"`
	Status              HealthStatus `json:"status"`
}

// ArchiveRecord is the persisted summary of one completed request.
// Written only after the orchestrator has returned a terminal result.
type ArchiveRecord struct {
	RequestID   string           `json:"request_id"`
	Message     string           `json:"message"`
	Response    string           `json:"response"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Level       DegradationLevel `json:"level"`
	Confidence  float64          `json:"confidence"`
	FromCache   bool             `json:"from_cache"`
	Emergency   bool             `json:"emergency"`
	LatencyMs   int64            `json:"latency_ms"`
	Attempts    []AttemptRecord  `json:"attempts,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
}
