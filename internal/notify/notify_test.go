package notify

import (
	"context"
	"testing"
)

func TestInMemoryNotifier_RecordsEvents(t *testing.T) {
	n := NewInMemoryNotifier()
	ctx := context.Background()

	err := n.Send(ctx, Event{
		Type:     EventProviderDown,
		Provider: "qwen-max",
		Message:  "6 consecutive failures",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	n.Send(ctx, Event{Type: EventProviderUp, Provider: "qwen-max", Message: "recovered"})

	events := n.Events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != EventProviderDown || events[1].Type != EventProviderUp {
		t.Errorf("event order = %s, %s", events[0].Type, events[1].Type)
	}

	// Events() returns a copy.
	events[0].Provider = "mutated"
	if n.Events()[0].Provider != "qwen-max" {
		t.Error("Events must not alias internal storage")
	}
}
