// internal/types/rules.go
package types

/*
 * Domain types for rule definitions.
 *
 * Provides Rule, Condition, ActionSpec, and the ActionType/ActionMode enums
 * consumed by internal/rules for loading and evaluation and by
 * internal/dispatch for action execution. These types carry their own JSON
 * shape: rule files on disk decode directly into []Rule.
 *
 * Key types:
 *   - Rule: Complete rule definition (match criteria + actions + mode)
 *   - Condition: Recursive boolean tree (all / any / not / leaf comparison)
 *   - ActionSpec: One action with its type tag and free-form parameters
 *
 * Dependencies: None (standard library only)
 */

import (
	"encoding/json"
	"fmt"
)

// ActionMode controls whether a rule's actions run unattended.
type ActionMode string

const (
	// ModeAuto dispatches actions immediately on match.
	ModeAuto ActionMode = "auto"
	// ModeSuggest dispatches like auto but marks the rule advisory; the
	// mode itself never forces approval, a registered risk level still can.
	ModeSuggest ActionMode = "suggest"
	// ModeAsk creates an approval request and defers all actions until a
	// human resolves it.
	ModeAsk ActionMode = "ask"
)

// ActionType tags one executable action kind. Unknown tags survive decoding
// so that a rule file written for a newer engine still loads; the dispatcher
// rejects them at execution time with ErrUnknownAction.
type ActionType string

const (
	ActionNotify      ActionType = "notify"
	ActionRunAgent    ActionType = "run_agent"
	ActionExecutePlan ActionType = "execute_plan"
	ActionCallWebhook ActionType = "call_webhook"
	ActionLogOnly     ActionType = "log_only"
)

// Known reports whether t is one of the built-in action kinds.
func (t ActionType) Known() bool {
	switch t {
	case ActionNotify, ActionRunAgent, ActionExecutePlan, ActionCallWebhook, ActionLogOnly:
		return true
	}
	return false
}

// Condition is one node of a rule's boolean match tree. Exactly one of the
// combinator fields (All, Any, Not) or the leaf triple (Field, Op, Value) is
// populated; a node mixing both is invalid. A nil *Condition matches every
// event.
type Condition struct {
	All []*Condition `json:"all,omitempty"` // conjunction; empty list matches
	Any []*Condition `json:"any,omitempty"` // disjunction; empty list does not match
	Not *Condition   `json:"not,omitempty"`

	Field string `json:"field,omitempty"` // dotted path into the evaluation document
	Op    string `json:"op,omitempty"`
	Value any    `json:"value"` // comparison operand; nil for presence-style ops
}

// Leaf reports whether the node carries a field comparison rather than a
// combinator.
func (c *Condition) Leaf() bool {
	return c != nil && len(c.All) == 0 && len(c.Any) == 0 && c.Not == nil
}

// ActionSpec is a single action attached to a rule. The wire format is flat:
// the object's "action_type" key selects the handler and every remaining key
// is a handler parameter, e.g.
//
//	{"action_type": "notify", "channel": "ops", "message": "disk almost full"}
type ActionSpec struct {
	Type   ActionType
	Params map[string]any
}

// UnmarshalJSON decodes the flat wire object, splitting the type tag from
// the parameter map.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tag, ok := raw["action_type"].(string)
	if !ok {
		return fmt.Errorf("action missing string action_type: %w", ErrRuleInvalid)
	}
	delete(raw, "action_type")
	a.Type = ActionType(tag)
	a.Params = raw
	return nil
}

// MarshalJSON re-flattens the action into its wire shape. Params named
// "action_type" cannot occur; UnmarshalJSON strips the tag on the way in.
func (a ActionSpec) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(a.Params)+1)
	for k, v := range a.Params {
		flat[k] = v
	}
	flat["action_type"] = string(a.Type)
	return json.Marshal(flat)
}

// Param returns the named string parameter, or def when absent or not a
// string.
func (a ActionSpec) Param(name, def string) string {
	if s, ok := a.Params[name].(string); ok && s != "" {
		return s
	}
	return def
}

// Rule is a complete automation rule: match criteria plus the actions to run
// when an event matches. Rules are identified by Name within a rule set; ID
// is optional provenance from the authoring side.
type Rule struct {
	ID         string       `json:"id,omitempty"`
	Name       string       `json:"name"`
	EventType  string       `json:"event_type"` // exact match against incoming events
	Condition  *Condition   `json:"condition,omitempty"`
	ActionMode ActionMode   `json:"action_mode,omitempty"`
	RiskLevel  string       `json:"risk_level,omitempty"`
	Actions    []ActionSpec `json:"actions,omitempty"`
	Priority   int          `json:"priority,omitempty"` // higher runs first; ties break by name
	IsActive   bool         `json:"is_active"`
}

// UnmarshalJSON applies defaults before decoding: a rule that does not spell
// out is_active or action_mode is active and auto.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	tmp := plain{IsActive: true, ActionMode: ModeAuto}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*r = Rule(tmp)
	return nil
}

// Validate checks the structural invariants a loaded rule must satisfy.
// Violations wrap ErrRuleInvalid.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule missing name: %w", ErrRuleInvalid)
	}
	if r.EventType == "" {
		return fmt.Errorf("rule %q missing event_type: %w", r.Name, ErrRuleInvalid)
	}
	switch r.ActionMode {
	case ModeAuto, ModeSuggest, ModeAsk:
	default:
		return fmt.Errorf("rule %q has unknown action_mode %q: %w", r.Name, r.ActionMode, ErrRuleInvalid)
	}
	return nil
}
