// internal/rules/evaluate.go
package rules

import (
	"github.com/GoatGit/semibot/internal/types"
)

/*
 * Condition evaluation.
 *
 * Evaluates a rule's boolean condition tree against one event. Combinators:
 * all (AND, empty matches), any (OR, empty does not match), not (negation).
 * Leaves resolve a field path and apply an operator (operators.go).
 *
 * The evaluator is pure and total: no side effects, no errors, no panics.
 * It runs on the hot event path and from background replay, so every
 * anomaly (unknown operator, type mismatch, absent field) folds into a
 * non-match instead of propagating.
 */

// Evaluate reports whether the event satisfies the condition. A nil
// condition, or one with no populated branch, matches every event.
func Evaluate(cond *types.Condition, ev *types.Event) bool {
	if cond == nil {
		return true
	}

	switch {
	case cond.All != nil:
		for _, sub := range cond.All {
			if !Evaluate(sub, ev) {
				return false
			}
		}
		return true

	case cond.Any != nil:
		for _, sub := range cond.Any {
			if Evaluate(sub, ev) {
				return true
			}
		}
		return false

	case cond.Not != nil:
		return !Evaluate(cond.Not, ev)

	case cond.Field != "":
		value, _ := ResolveField(ev, cond.Field)
		return Compare(cond.Op, value, cond.Value)

	default:
		// Empty condition object.
		return true
	}
}

// MatchRule reports whether the rule applies to the event: the rule is
// active, its event type equals the event's, and its condition holds.
func MatchRule(rule *types.Rule, ev *types.Event) bool {
	if rule == nil || ev == nil || !rule.IsActive {
		return false
	}
	if rule.EventType != ev.EventType {
		return false
	}
	return Evaluate(rule.Condition, ev)
}
