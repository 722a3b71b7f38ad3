// internal/rules/property_test.go
package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/GoatGit/semibot/internal/types"
)

// buildTree derives a deterministic condition tree from integer seeds so
// the shrinker stays meaningful.
func buildTree(depth, shape int) *types.Condition {
	if depth <= 0 {
		switch shape % 5 {
		case 0:
			return &types.Condition{Field: "payload.status", Op: OpEq, Value: "ok"}
		case 1:
			return &types.Condition{Field: "payload.count", Op: OpGt, Value: float64(shape)}
		case 2:
			return &types.Condition{Field: "risk_hint", Op: OpIn, Value: []any{"low", "high"}}
		case 3:
			return &types.Condition{Field: "payload.missing.deep", Op: OpExists, Value: shape%2 == 0}
		default:
			return &types.Condition{Field: "event_type", Op: "bogus_op", Value: 1}
		}
	}
	child := buildTree(depth-1, shape/2)
	switch shape % 3 {
	case 0:
		return &types.Condition{All: []*types.Condition{child, buildTree(depth-1, shape/3)}}
	case 1:
		return &types.Condition{Any: []*types.Condition{child}}
	default:
		return &types.Condition{Not: child}
	}
}

func propertyEvent(seed int) *types.Event {
	ev := &types.Event{
		EventType: "agent.task.completed",
		Source:    "orchestrator",
	}
	if seed%2 == 0 {
		ev.RiskHint = "low"
	}
	switch seed % 4 {
	case 0:
		ev.Payload = map[string]any{"status": "ok", "count": float64(seed % 100)}
	case 1:
		ev.Payload = map[string]any{"status": nil, "count": "not-a-number"}
	case 2:
		ev.Payload = map[string]any{}
	default:
		ev.Payload = nil
	}
	return ev
}

// Property-based test: evaluation never panics regardless of tree shape
func TestEvaluate_PropertyNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("evaluation never panics", prop.ForAll(
		func(depth, shape, seed int) bool {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Evaluate() panicked: %v", r)
				}
			}()
			_ = Evaluate(buildTree(depth, shape), propertyEvent(seed))
			return true
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 1<<16),
		gen.Int(),
	))

	properties.TestingRun(t)
}

// Property-based test: negation is an involution
func TestEvaluate_PropertyNotInvolutive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("not(not(c)) == c", prop.ForAll(
		func(depth, shape, seed int) bool {
			c := buildTree(depth, shape)
			ev := propertyEvent(seed)
			direct := Evaluate(c, ev)
			doubled := Evaluate(&types.Condition{
				Not: &types.Condition{Not: c},
			}, ev)
			return direct == doubled
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 1<<16),
		gen.Int(),
	))

	properties.TestingRun(t)
}

// Property-based test: all distributes as logical AND over children
func TestEvaluate_PropertyAllIsConjunction(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("all == AND of children", prop.ForAll(
		func(shapeA, shapeB, seed int) bool {
			a := buildTree(1, shapeA)
			b := buildTree(1, shapeB)
			ev := propertyEvent(seed)
			combined := Evaluate(&types.Condition{All: []*types.Condition{a, b}}, ev)
			return combined == (Evaluate(a, ev) && Evaluate(b, ev))
		},
		gen.IntRange(0, 1<<16),
		gen.IntRange(0, 1<<16),
		gen.Int(),
	))

	properties.TestingRun(t)
}

// Property-based test: evaluation is deterministic
func TestEvaluate_PropertyDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("same condition and event always agree", prop.ForAll(
		func(depth, shape, seed int) bool {
			c := buildTree(depth, shape)
			ev := propertyEvent(seed)
			return Evaluate(c, ev) == Evaluate(c, ev)
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 1<<16),
		gen.Int(),
	))

	properties.TestingRun(t)
}
