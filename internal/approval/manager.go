// Package approval manages the lifecycle of human approval requests raised
// by risk-gated rules. Requests are created pending, resolved exactly once,
// and announced through the event log so downstream rules can react.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/metrics"
	"github.com/GoatGit/semibot/internal/types"
)

// Store is the approval persistence surface the manager depends on.
type Store interface {
	InsertApproval(ctx context.Context, a *types.ApprovalRequest) error
	GetApproval(ctx context.Context, approvalID string) (*types.ApprovalRequest, error)
	UpdateApprovalStatus(ctx context.Context, approvalID string, status types.ApprovalStatus, resolvedAt time.Time) error
	ListPendingApprovals(ctx context.Context) ([]types.ApprovalRequest, error)
}

// EmitFunc publishes a lifecycle event into the event log. Emission is
// best-effort: a failure is logged and never fails the approval operation.
type EmitFunc func(ctx context.Context, ev *types.Event) error

// Manager creates, resolves and lists approval requests.
type Manager struct {
	store  Store
	emit   EmitFunc
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Manager. emit may be nil, which disables lifecycle events.
func New(store Store, emit EmitFunc) *Manager {
	return &Manager{
		store:  store,
		emit:   emit,
		logger: log.WithComponent("approval"),
		now:    time.Now,
	}
}

// Request persists a new pending approval and announces approval.requested.
// A nil context map is normalized to an empty one.
func (m *Manager) Request(ctx context.Context, ruleID, eventID, riskLevel string, contextData map[string]any) (*types.ApprovalRequest, error) {
	if contextData == nil {
		contextData = map[string]any{}
	}

	a := &types.ApprovalRequest{
		ApprovalID: types.NewApprovalID(),
		RuleID:     ruleID,
		EventID:    eventID,
		RiskLevel:  riskLevel,
		Context:    contextData,
		Status:     types.ApprovalPending,
		CreatedAt:  m.now().UTC(),
	}

	if err := m.store.InsertApproval(ctx, a); err != nil {
		return nil, fmt.Errorf("persist approval request: %w", err)
	}
	metrics.ApprovalsPending.Inc()

	m.logger.Info().
		Str("event", "approval.requested").
		Str("approval_id", a.ApprovalID).
		Str("rule_id", ruleID).
		Str("risk_level", riskLevel).
		Msg("approval request created")

	m.announce(ctx, types.EventTypeApprovalRequested, a, "")
	return a, nil
}

// Resolve transitions a pending approval to its final status. Any decision
// other than "approved" is recorded as rejected. Unknown ids yield
// types.ErrApprovalNotFound; repeat resolutions types.ErrApprovalResolved.
func (m *Manager) Resolve(ctx context.Context, approvalID, decision string) (*types.ApprovalRequest, error) {
	status := types.ApprovalRejected
	if decision == string(types.ApprovalApproved) {
		status = types.ApprovalApproved
	}

	if err := m.store.UpdateApprovalStatus(ctx, approvalID, status, m.now().UTC()); err != nil {
		return nil, err
	}

	a, err := m.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("read back resolved approval: %w", err)
	}

	metrics.ApprovalsPending.Dec()
	metrics.ApprovalsResolved.WithLabelValues(string(status)).Inc()

	m.logger.Info().
		Str("event", "approval.resolved").
		Str("approval_id", approvalID).
		Str("decision", decision).
		Str("status", string(status)).
		Msg("approval request resolved")

	eventType := types.EventTypeApprovalRejected
	if status == types.ApprovalApproved {
		eventType = types.EventTypeApprovalApproved
	}
	m.announce(ctx, eventType, a, decision)
	return a, nil
}

// ListPending returns all unresolved approval requests, oldest first.
func (m *Manager) ListPending(ctx context.Context) ([]types.ApprovalRequest, error) {
	return m.store.ListPendingApprovals(ctx)
}

// announce emits a lifecycle event, swallowing failures.
func (m *Manager) announce(ctx context.Context, eventType string, a *types.ApprovalRequest, decision string) {
	if m.emit == nil {
		return
	}

	payload := map[string]any{
		"approval_id": a.ApprovalID,
		"rule_id":     a.RuleID,
		"event_id":    a.EventID,
		"risk_level":  a.RiskLevel,
		"status":      string(a.Status),
	}
	if decision != "" {
		payload["decision"] = decision
	}

	ev := &types.Event{
		EventType: eventType,
		Source:    "approval-manager",
		Subject:   a.ApprovalID,
		Payload:   payload,
	}
	if err := m.emit(ctx, ev); err != nil {
		m.logger.Warn().
			Str("event", "approval.announce_failed").
			Str("approval_id", a.ApprovalID).
			Str("event_type", eventType).
			Err(err).
			Msg("lifecycle event emission failed")
	}
}
