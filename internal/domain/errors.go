package domain

import (
	"context"
	"errors"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderUnavailable   = errors.New("no eligible provider")
	ErrProviderError         = errors.New("provider error")
	ErrInvalidResponse       = errors.New("invalid provider response")
	ErrTimeout               = errors.New("provider call timed out")
	ErrCredentialMissing     = errors.New("provider credential missing")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrQuotaExhausted        = errors.New("provider quota exhausted")
)

// ClassifyError maps a provider call error to an attempt outcome.
// Classification is typed at the throw site; no message inspection.
// Non-recoverable outcomes (bad credentials, structural misconfiguration)
// skip the remaining candidates at the current level.
func ClassifyError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCredentialMissing), errors.Is(err, ErrProviderNotConfigured):
		return OutcomeNonRecoverable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, ErrInvalidResponse):
		return OutcomeInvalidResponse
	default:
		return OutcomeProviderError
	}
}
