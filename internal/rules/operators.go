// internal/rules/operators.go
package rules

import (
	"strings"
)

/*
 * Operator comparison logic.
 *
 * Implements the leaf operators of the condition tree with type-aware
 * comparison rules. Values arrive as decoded JSON (string, float64, bool,
 * []any, map[string]any, nil); no coercion pass runs first.
 *
 * Operators:
 *   - ==/!=: Equality with numeric tolerance
 *   - >/>=/</<=: Numeric comparison only; type mismatch never matches
 *   - in/not_in: Membership against a list-valued operand
 *   - contains/not_contains: Substring on strings, membership on lists
 *   - exists: Presence of the resolved field compared against a boolean
 *
 * Negated operators are not the complement of their positive form on
 * malformed operands: not_in against a non-list and not_contains against
 * mismatched types both yield false, same as in/contains.
 */

// Leaf operators recognised in rule condition trees.
const (
	OpEq          = "=="
	OpNeq         = "!="
	OpGt          = ">"
	OpGte         = ">="
	OpLt          = "<"
	OpLte         = "<="
	OpIn          = "in"
	OpNotIn       = "not_in"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpExists      = "exists"
)

// Compare applies op to the resolved field value and the rule operand.
// A nil value means the field was absent. Unknown operators never match.
func Compare(op string, value, operand any) bool {
	switch op {
	case OpEq:
		return compareEqual(value, operand)
	case OpNeq:
		return !compareEqual(value, operand)
	case OpGt:
		cmp, ok := compareNumeric(value, operand)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compareNumeric(value, operand)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareNumeric(value, operand)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareNumeric(value, operand)
		return ok && cmp <= 0
	case OpIn:
		member, ok := compareIn(value, operand)
		return ok && member
	case OpNotIn:
		member, ok := compareIn(value, operand)
		return ok && !member
	case OpContains:
		member, ok := compareContains(value, operand)
		return ok && member
	case OpNotContains:
		member, ok := compareContains(value, operand)
		return ok && !member
	case OpExists:
		return compareExists(value, operand)
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric type mixing
// (float64/int/int64 from different JSON decoders compare equal by value).
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	// Composite values (maps, slices) are not comparable with ==; they
	// never compare equal here.
	if !scalar(a) || !scalar(b) {
		return false
	}
	return a == b
}

func scalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// ok is false when either side is not numeric.
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles float64, int, int64 from JSON unmarshaling and Go literals.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareIn tests membership of value in a list-valued operand.
// ok is false when the operand is not a list.
func compareIn(value, operand any) (bool, bool) {
	arr, isList := operand.([]any)
	if !isList {
		return false, false
	}
	for _, elem := range arr {
		if compareEqual(value, elem) {
			return true, true
		}
	}
	return false, true
}

// compareContains tests substring containment when both sides are strings,
// or membership when the field value is a list. ok is false for any other
// type pairing.
func compareContains(value, operand any) (bool, bool) {
	switch v := value.(type) {
	case string:
		s, isString := operand.(string)
		if !isString {
			return false, false
		}
		return strings.Contains(v, s), true
	case []any:
		for _, elem := range v {
			if compareEqual(elem, operand) {
				return true, true
			}
		}
		return false, true
	default:
		return false, false
	}
}

// compareExists matches the field's presence against a boolean operand.
// A non-boolean operand tests for presence.
func compareExists(value, operand any) bool {
	want, isBool := operand.(bool)
	if !isBool {
		want = true
	}
	return (value != nil) == want
}
