package secrets

import (
	"context"
	"time"
)

// Checker maps provider names to secret names and answers the
// registry's "is this provider's credential satisfiable" question.
// Lookups are bounded so a slow secrets backend cannot stall provider
// selection.
type Checker struct {
	store   Store
	names   map[string]string
	timeout time.Duration
}

func NewChecker(store Store, names map[string]string) *Checker {
	return &Checker{
		store:   store,
		names:   names,
		timeout: 2 * time.Second,
	}
}

func (c *Checker) Has(providerName string) bool {
	secretName, ok := c.names[providerName]
	if !ok {
		// No mapping means the provider declared a credential
		// requirement nobody wired up.
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	value, err := c.store.Get(ctx, secretName)
	return err == nil && value != ""
}
