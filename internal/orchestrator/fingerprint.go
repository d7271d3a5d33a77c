package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/booomerangs/ai-orchestrator/internal/domain"
)

// Fingerprint derives the cache key for a request: the lower-cased,
// trimmed message text plus a stable hash of any explicit provider or
// model override, so pinned requests never collide with auto-routed
// ones.
func Fingerprint(req domain.ChatRequest) string {
	normalized := strings.ToLower(strings.TrimSpace(req.Message))

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(req.Provider))
	h.Write([]byte{0})
	h.Write([]byte(req.Model))

	return hex.EncodeToString(h.Sum(nil))
}
