package orchestrator

import "github.com/booomerangs/ai-orchestrator/internal/domain"

// History accumulates attempt records for a single request. It is
// request-scoped, never shared across requests, and only surfaced to
// the caller as diagnostic metadata.
type History struct {
	records []domain.AttemptRecord
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Record(rec domain.AttemptRecord) {
	h.records = append(h.records, rec)
}

// Snapshot returns the records in arrival order.
func (h *History) Snapshot() []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, len(h.records))
	copy(out, h.records)
	return out
}

func (h *History) Len() int {
	return len(h.records)
}

// LastOutcome returns the outcome of the most recent attempt, or empty
// when no attempt has been made yet.
func (h *History) LastOutcome() domain.Outcome {
	if len(h.records) == 0 {
		return ""
	}
	return h.records[len(h.records)-1].Outcome
}
