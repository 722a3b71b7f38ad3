// Package engine ties the automation core together: it matches incoming
// events against the active rule set, gates risky matches behind approval,
// dispatches actions, replays history, and runs the periodic trigger and
// rule-watch loops. The facade type Engine is the single entry point the
// surrounding runtime talks to.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoatGit/semibot/internal/approval"
	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/dispatch"
	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/metrics"
	"github.com/GoatGit/semibot/internal/rules"
	"github.com/GoatGit/semibot/internal/store"
	"github.com/GoatGit/semibot/internal/types"
)

// RulesEngine evaluates events against the active rule set. The set is held
// behind an atomic pointer and swapped wholesale on reload, so evaluation
// never observes a partially built set.
type RulesEngine struct {
	store      *store.Store
	loader     *rules.Loader
	cfg        *config.EngineConfig
	dispatcher *dispatch.Dispatcher
	approvals  *approval.Manager
	logger     zerolog.Logger

	ruleSet  atomic.Pointer[rules.RuleSet]
	reloadMu sync.Mutex // serializes lazy check and watch-loop reloads
}

func newRulesEngine(st *store.Store, loader *rules.Loader, cfg *config.EngineConfig, d *dispatch.Dispatcher, approvals *approval.Manager) (*RulesEngine, error) {
	e := &RulesEngine{
		store:      st,
		loader:     loader,
		cfg:        cfg,
		dispatcher: d,
		approvals:  approvals,
		logger:     log.WithComponent("engine"),
	}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload rebuilds the rule set from its sources and swaps it in atomically.
// Serialized so the lazy staleness check and the watch loop cannot produce a
// torn set. A snapshot of the loaded set is appended to the store for audit.
func (e *RulesEngine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	set, err := e.loader.Load()
	if err != nil {
		metrics.RuleReloads.WithLabelValues("failure").Inc()
		return fmt.Errorf("load rules: %w", err)
	}
	e.ruleSet.Store(set)
	metrics.RuleReloads.WithLabelValues("success").Inc()

	e.logger.Info().
		Str("event", "rules.reloaded").
		Str("source", e.loader.Source()).
		Int("rule_count", len(set.Rules)).
		Msg("rule set swapped")

	// The snapshot is supplementary audit trail; failing it must not block
	// rule processing against the freshly loaded set.
	if err := e.store.InsertRuleSnapshot(ctx, e.loader.Source(), set.Fingerprint(), set.Rules); err != nil {
		e.logger.Warn().
			Str("event", "rules.snapshot_failed").
			Err(err).
			Msg("rule snapshot not recorded")
	}
	return nil
}

// Rules returns the currently active rule set's rules, priority order.
func (e *RulesEngine) Rules() []types.Rule {
	set := e.ruleSet.Load()
	if set == nil {
		return nil
	}
	return set.Rules
}

// HandleEvent runs one event through the engine: persist (optional), lazy
// rule reload when sources changed, then per-rule evaluation and dispatch.
// Individual rule failures are folded into their results; only persistence
// failures propagate.
func (e *RulesEngine) HandleEvent(ctx context.Context, ev *types.Event, persist bool) ([]types.RuleExecutionResult, error) {
	start := time.Now()

	if persist {
		if err := e.store.InsertEvent(ctx, ev); err != nil {
			return nil, fmt.Errorf("persist event %s: %w", ev.EventID, err)
		}
		metrics.EventsIngested.WithLabelValues(ev.EventType).Inc()
	}

	if e.loader.Stale() {
		if err := e.Reload(ctx); err != nil {
			// Keep processing against the previous set rather than dropping
			// the event.
			e.logger.Error().
				Str("event", "rules.reload_failed").
				Err(err).
				Msg("lazy reload failed, using previous rule set")
		}
	}

	set := e.ruleSet.Load()
	results := make([]types.RuleExecutionResult, 0, 4)
	for i := range set.Rules {
		rule := &set.Rules[i]
		if !rule.IsActive || rule.EventType != ev.EventType {
			continue
		}
		res, err := e.executeRule(ctx, rule, ev)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	metrics.EventProcessingDuration.Observe(float64(time.Since(start).Milliseconds()))
	return results, nil
}

// executeRule evaluates one rule against one event and either requests
// approval or dispatches its actions. The returned error is reserved for
// persistence failures; everything else lands in the result.
func (e *RulesEngine) executeRule(ctx context.Context, rule *types.Rule, ev *types.Event) (result types.RuleExecutionResult, err error) {
	result = types.RuleExecutionResult{RuleID: rule.ID, RuleName: rule.Name}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Sprintf("rule panicked: %v", r)
			err = nil
			metrics.RuleErrors.WithLabelValues(rule.Name).Inc()
			e.logger.Error().
				Str("event", "rule.panic").
				Str("rule", rule.Name).
				Interface("panic", r).
				Msg("rule execution panicked")
		}
	}()

	if !rules.Evaluate(rule.Condition, ev) {
		return result, nil
	}
	result.Matched = true
	metrics.RulesMatched.WithLabelValues(rule.Name).Inc()

	if e.cfg.RequiresApproval(string(rule.ActionMode), rule.RiskLevel) {
		result.ApprovalRequired = true
		a, reqErr := e.approvals.Request(ctx, ruleIdent(rule), ev.EventID, rule.RiskLevel, approvalContext(rule, ev))
		if reqErr != nil {
			return result, fmt.Errorf("rule %q: %w", rule.Name, reqErr)
		}
		result.ApprovalID = a.ApprovalID
		e.logger.Info().
			Str("event", "rule.awaiting_approval").
			Str("rule", rule.Name).
			Str("approval_id", a.ApprovalID).
			Msg("actions deferred until approval")
		return result, nil
	}

	result.Actions = e.dispatcher.Dispatch(ctx, rule, ev)
	return result, nil
}

// ruleIdent prefers the authored rule id and falls back to the name.
func ruleIdent(rule *types.Rule) string {
	if rule.ID != "" {
		return rule.ID
	}
	return rule.Name
}

// approvalContext captures what a human needs to judge the request.
func approvalContext(rule *types.Rule, ev *types.Event) map[string]any {
	actionTypes := make([]string, 0, len(rule.Actions))
	for _, a := range rule.Actions {
		actionTypes = append(actionTypes, string(a.Type))
	}
	return map[string]any{
		"rule_name":    rule.Name,
		"action_mode":  string(rule.ActionMode),
		"action_types": actionTypes,
		"event_type":   ev.EventType,
		"subject":      ev.Subject,
	}
}
