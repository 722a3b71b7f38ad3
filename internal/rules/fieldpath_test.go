// internal/rules/fieldpath_test.go
package rules

import (
	"testing"

	"github.com/GoatGit/semibot/internal/types"
)

// Test normal path resolution cases
func TestResolveField_Normal(t *testing.T) {
	ev := &types.Event{
		EventType: "cli.session.idle",
		Source:    "watchdog",
		Subject:   "session-7",
		RiskHint:  "low",
		Payload: map[string]any{
			"user":         map[string]any{"name": "Alice"},
			"idle_minutes": float64(45),
			"tags":         []any{"tmux", "remote"},
		},
	}

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{"event_type attribute", "event_type", "cli.session.idle"},
		{"source attribute", "source", "watchdog"},
		{"subject attribute", "subject", "session-7"},
		{"risk_hint attribute", "risk_hint", "low"},
		{"top-level payload key", "payload.idle_minutes", float64(45)},
		{"nested object traversal", "payload.user.name", "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := ResolveField(ev, tt.path)
			if !found {
				t.Fatalf("ResolveField(%q) found = false, want true", tt.path)
			}
			if value != tt.expected {
				t.Errorf("ResolveField(%q) = %v, want %v", tt.path, value, tt.expected)
			}
		})
	}

	t.Run("whole payload", func(t *testing.T) {
		value, found := ResolveField(ev, "payload")
		if !found {
			t.Fatalf("ResolveField(payload) found = false, want true")
		}
		if _, isMap := value.(map[string]any); !isMap {
			t.Errorf("ResolveField(payload) = %T, want map", value)
		}
	})

	t.Run("list value", func(t *testing.T) {
		value, found := ResolveField(ev, "payload.tags")
		if !found {
			t.Fatalf("ResolveField(payload.tags) found = false, want true")
		}
		if _, isList := value.([]any); !isList {
			t.Errorf("ResolveField(payload.tags) = %T, want list", value)
		}
	})
}

// Test absence cases
func TestResolveField_Absent(t *testing.T) {
	ev := &types.Event{
		EventType: "cli.session.idle",
		Source:    "watchdog",
		Payload: map[string]any{
			"status": "idle",
			"error":  nil,
			"meta":   map[string]any{"depth": float64(1)},
		},
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"unknown root", "severity"},
		{"empty optional subject", "subject"},
		{"empty optional risk_hint", "risk_hint"},
		{"missing payload key", "payload.missing"},
		{"missing nested key", "payload.meta.missing"},
		{"scalar mid-path", "payload.status.deeper"},
		{"explicit null leaf", "payload.error"},
		{"traversal through null", "payload.error.code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, found := ResolveField(ev, tt.path)
			if found {
				t.Errorf("ResolveField(%q) found = true (%v), want false", tt.path, value)
			}
			if value != nil {
				t.Errorf("ResolveField(%q) = %v, want nil", tt.path, value)
			}
		})
	}
}

func TestResolveField_NilCases(t *testing.T) {
	if _, found := ResolveField(nil, "event_type"); found {
		t.Errorf("ResolveField(nil event) found = true, want false")
	}

	ev := &types.Event{EventType: "a.b"}
	if _, found := ResolveField(ev, "payload"); found {
		t.Errorf("ResolveField(payload) on nil payload found = true, want false")
	}
	if _, found := ResolveField(ev, "payload.anything"); found {
		t.Errorf("ResolveField(payload.anything) on nil payload found = true, want false")
	}
}
