// internal/rules/fieldpath.go
package rules

import (
	"strings"

	"github.com/GoatGit/semibot/internal/types"
)

/*
 * Field path resolution for rule conditions.
 *
 * Resolves a leaf condition's dotted field path against one event. Event
 * attributes (event_type, source, subject, risk_hint) map directly;
 * "payload.<a>.<b>..." walks the nested payload mapping one segment at a
 * time.
 *
 * Absence semantics: a missing segment, a non-mapping intermediate value,
 * an explicit JSON null, and an empty optional attribute all resolve to
 * (nil, false). Resolution never panics and never errors; the evaluator
 * folds absence into operator semantics (exists, nil comparisons).
 */

// Event attributes addressable directly by a condition field.
const (
	fieldEventType = "event_type"
	fieldSource    = "source"
	fieldSubject   = "subject"
	fieldRiskHint  = "risk_hint"

	payloadRoot = "payload"
)

// ResolveField resolves path against the event. found is false when the
// path does not lead to a present, non-null value.
func ResolveField(ev *types.Event, path string) (value any, found bool) {
	if ev == nil || path == "" {
		return nil, false
	}

	switch path {
	case fieldEventType:
		return attr(ev.EventType)
	case fieldSource:
		return attr(ev.Source)
	case fieldSubject:
		return attr(ev.Subject)
	case fieldRiskHint:
		return attr(ev.RiskHint)
	case payloadRoot:
		if ev.Payload == nil {
			return nil, false
		}
		return ev.Payload, true
	}

	if rest, ok := strings.CutPrefix(path, payloadRoot+"."); ok {
		return walkPayload(ev.Payload, rest)
	}
	return nil, false
}

// attr treats an empty optional attribute as absent.
func attr(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

// walkPayload descends the nested payload mapping segment by segment.
func walkPayload(payload map[string]any, rest string) (any, bool) {
	var current any = payload
	for rest != "" {
		seg, tail, _ := strings.Cut(rest, ".")
		m, isMap := current.(map[string]any)
		if !isMap {
			return nil, false
		}
		next, present := m[seg]
		if !present {
			return nil, false
		}
		current = next
		rest = tail
	}
	if current == nil {
		return nil, false
	}
	return current, true
}
