// internal/rules/evaluate_test.go
package rules

import (
	"encoding/json"
	"testing"

	"github.com/GoatGit/semibot/internal/types"
)

func testEvent() *types.Event {
	return &types.Event{
		EventID:   "evt-001",
		EventType: "agent.task.completed",
		Source:    "orchestrator",
		Subject:   "task-42",
		RiskHint:  "low",
		Payload: map[string]any{
			"status":   "ok",
			"attempts": float64(2),
			"labels":   []any{"batch", "nightly"},
			"result": map[string]any{
				"exit_code": float64(0),
				"error":     nil,
			},
		},
	}
}

func cond(t *testing.T, raw string) *types.Condition {
	t.Helper()
	var c types.Condition
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v, want nil", raw, err)
	}
	return &c
}

func TestEvaluate_NilAndEmptyConditions(t *testing.T) {
	ev := testEvent()

	if !Evaluate(nil, ev) {
		t.Errorf("Evaluate(nil) = false, want true")
	}
	if !Evaluate(&types.Condition{}, ev) {
		t.Errorf("Evaluate(empty condition) = false, want true")
	}
}

func TestEvaluate_SimpleLeaf(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"status_eq", `{"field": "payload.status", "op": "==", "value": "ok"}`, true},
		{"status_neq", `{"field": "payload.status", "op": "!=", "value": "failed"}`, true},
		{"attempts_gt", `{"field": "payload.attempts", "op": ">", "value": 1}`, true},
		{"attempts_gte_exact", `{"field": "payload.attempts", "op": ">=", "value": 2}`, true},
		{"attempts_lt_false", `{"field": "payload.attempts", "op": "<", "value": 2}`, false},
		{"nested_exit_code", `{"field": "payload.result.exit_code", "op": "==", "value": 0}`, true},
		{"event_type_attr", `{"field": "event_type", "op": "==", "value": "agent.task.completed"}`, true},
		{"source_attr", `{"field": "source", "op": "==", "value": "orchestrator"}`, true},
		{"risk_hint_in", `{"field": "risk_hint", "op": "in", "value": ["low", "medium"]}`, true},
		{"label_membership", `{"field": "payload.labels", "op": "contains", "value": "nightly"}`, true},
		{"substring", `{"field": "event_type", "op": "contains", "value": "task"}`, true},
		{"unknown_op", `{"field": "payload.status", "op": "~=", "value": "ok"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(cond(t, tt.cond), ev); got != tt.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Combinators(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{
			"all_both_hold",
			`{"all": [
				{"field": "payload.status", "op": "==", "value": "ok"},
				{"field": "payload.attempts", "op": "<=", "value": 3}
			]}`,
			true,
		},
		{
			"all_one_fails",
			`{"all": [
				{"field": "payload.status", "op": "==", "value": "ok"},
				{"field": "payload.attempts", "op": ">", "value": 10}
			]}`,
			false,
		},
		{"all_empty", `{"all": []}`, true},
		{
			"any_second_holds",
			`{"any": [
				{"field": "payload.status", "op": "==", "value": "failed"},
				{"field": "payload.attempts", "op": ">=", "value": 2}
			]}`,
			true,
		},
		{
			"any_none_hold",
			`{"any": [
				{"field": "payload.status", "op": "==", "value": "failed"},
				{"field": "payload.attempts", "op": ">", "value": 10}
			]}`,
			false,
		},
		{"any_empty", `{"any": []}`, false},
		{"not_inverts", `{"not": {"field": "payload.status", "op": "==", "value": "failed"}}`, true},
		{
			"nested_tree",
			`{"all": [
				{"field": "event_type", "op": "==", "value": "agent.task.completed"},
				{"any": [
					{"field": "payload.result.exit_code", "op": "!=", "value": 0},
					{"not": {"field": "payload.status", "op": "==", "value": "failed"}}
				]}
			]}`,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(cond(t, tt.cond), ev); got != tt.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluate_MissingFieldsNeverPanic(t *testing.T) {
	ev := testEvent()

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"missing_leaf", `{"field": "payload.no.such.path", "op": "==", "value": 1}`, false},
		{"scalar_mid_path", `{"field": "payload.status.deeper", "op": "==", "value": 1}`, false},
		{"null_is_absent", `{"field": "payload.result.error", "op": "exists", "value": true}`, false},
		{"null_absent_inverted", `{"field": "payload.result.error", "op": "exists", "value": false}`, true},
		{"exists_present", `{"field": "payload.status", "op": "exists", "value": true}`, true},
		{"exists_missing_false_operand", `{"field": "payload.nope", "op": "exists", "value": false}`, true},
		{"missing_numeric_cmp", `{"field": "payload.nope", "op": ">", "value": 1}`, false},
		{"missing_eq_null", `{"field": "payload.nope", "op": "==", "value": null}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(cond(t, tt.cond), ev); got != tt.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestMatchRule(t *testing.T) {
	ev := testEvent()

	base := types.Rule{
		Name:      "completed-tasks",
		EventType: "agent.task.completed",
		IsActive:  true,
	}

	t.Run("matches_on_type", func(t *testing.T) {
		rule := base
		if !MatchRule(&rule, ev) {
			t.Errorf("MatchRule() = false, want true")
		}
	})

	t.Run("inactive_never_matches", func(t *testing.T) {
		rule := base
		rule.IsActive = false
		if MatchRule(&rule, ev) {
			t.Errorf("MatchRule() = true for inactive rule, want false")
		}
	})

	t.Run("event_type_mismatch", func(t *testing.T) {
		rule := base
		rule.EventType = "agent.task.failed"
		if MatchRule(&rule, ev) {
			t.Errorf("MatchRule() = true for mismatched type, want false")
		}
	})

	t.Run("condition_applies", func(t *testing.T) {
		rule := base
		rule.Condition = &types.Condition{Field: "payload.status", Op: "==", Value: "failed"}
		if MatchRule(&rule, ev) {
			t.Errorf("MatchRule() = true with non-matching condition, want false")
		}
	})
}
