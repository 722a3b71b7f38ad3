// Package types provides domain models shared across semibot's automation
// core: events, rules, approval requests, and per-rule execution results.
//
// Zero-dependency design: types.go, rules.go, results.go and errors.go use
// only the standard library so that evaluator and dispatcher code can embed
// these models without pulling in storage or transport packages. ID helpers
// in ids.go import uuid but are isolated for selective inclusion.
package types

import "time"

// Event is an immutable fact ingested by the engine. Events are created by
// external producers or by the trigger scheduler, persisted exactly once,
// and never mutated. Replay re-processes a stored event without writing a
// second copy.
type Event struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"` // dot-namespaced, e.g. "agent.task.completed"
	Source         string         `json:"source"`
	Subject        string         `json:"subject,omitempty"` // optional correlation key
	Payload        map[string]any `json:"payload,omitempty"`
	RiskHint       string         `json:"risk_hint,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ApprovalStatus is the lifecycle state of an ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRequest is a durable human-in-the-loop gate blocking a rule's
// actions until resolved. Requests are created in ApprovalPending state,
// transition exactly once to ApprovalApproved or ApprovalRejected, and are
// immutable afterward.
type ApprovalRequest struct {
	ApprovalID string         `json:"approval_id"`
	RuleID     string         `json:"rule_id"`
	EventID    string         `json:"event_id"`
	RiskLevel  string         `json:"risk_level,omitempty"`
	Context    map[string]any `json:"context"` // never nil; normalized to an empty map
	Status     ApprovalStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// Resolved reports whether the request has left the pending state.
func (a *ApprovalRequest) Resolved() bool {
	return a.Status != ApprovalPending
}

// Event types synthesized by the engine itself rather than ingested from
// external producers.
const (
	// EventTypeHeartbeat is emitted by the heartbeat trigger loop.
	EventTypeHeartbeat = "health.heartbeat.tick"

	// Approval lifecycle events appended to the event log as a side effect
	// of creating and resolving approval requests.
	EventTypeApprovalRequested = "approval.requested"
	EventTypeApprovalApproved  = "approval.approved"
	EventTypeApprovalRejected  = "approval.rejected"
)

// Resource limits enforced by the rule loader.
const (
	// MaxRuleSourceBytes caps a single rule file. Oversized files are
	// skipped during load instead of being read into memory.
	MaxRuleSourceBytes = 4 * 1024 * 1024
)
