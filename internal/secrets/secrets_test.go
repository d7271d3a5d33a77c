package secrets

import (
	"context"
	"testing"
)

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	s.Set("freegpt-api-key", "sk-test")

	value, err := s.Get(context.Background(), "freegpt-api-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "sk-test" {
		t.Errorf("value = %q", value)
	}

	if _, err := s.Get(context.Background(), "missing"); err == nil {
		t.Error("missing secret should error")
	}
}

func TestEnvStore(t *testing.T) {
	t.Setenv("FREEGPT_API_KEY", "sk-env")

	s := NewEnvStore()
	value, err := s.Get(context.Background(), "freegpt-api-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "sk-env" {
		t.Errorf("value = %q", value)
	}

	if _, err := s.Get(context.Background(), "never-set-secret"); err == nil {
		t.Error("unset env secret should error")
	}
}

func TestChecker(t *testing.T) {
	store := NewInMemoryStore()
	store.Set("bedrock-credentials", "present")
	store.Set("empty-secret", "")

	c := NewChecker(store, map[string]string{
		"bedrock": "bedrock-credentials",
		"freegpt": "freegpt-api-key", // not in store
		"hollow":  "empty-secret",
	})

	if !c.Has("bedrock") {
		t.Error("bedrock credential is resolvable")
	}
	if c.Has("freegpt") {
		t.Error("unresolvable secret must report false")
	}
	if c.Has("hollow") {
		t.Error("empty secret value must report false")
	}
	if c.Has("unmapped") {
		t.Error("provider without a mapping must report false")
	}
}
