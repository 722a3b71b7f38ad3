// Package dispatch executes the actions of matched rules. Each action kind
// has one handler; handler failures and panics are folded into per-action
// results so a misbehaving action never takes down event processing.
package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/GoatGit/semibot/internal/budget"
	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/metrics"
	"github.com/GoatGit/semibot/internal/types"
)

// OrchestratorBridge hands matched work to the surrounding agent runtime.
// Both capabilities receive the triggering event id as trace id so that
// downstream work can be correlated back to the event log.
type OrchestratorBridge interface {
	RunAgent(ctx context.Context, agentID string, payload map[string]any, traceID string) error
	ExecutePlan(ctx context.Context, plan map[string]any, traceID string) error
}

// EventSink receives side-channel runtime events (notifications, audit
// marks, unfulfilled intents) for notifier integrations. Delivery is
// fire-and-forget; the dispatcher shields itself from sink panics.
type EventSink func(eventType string, payload map[string]any)

// AgentHook runs an agent request in-process when no bridge is bound.
type AgentHook func(ctx context.Context, agentID string, payload map[string]any, traceID string) error

// PlanHook executes a plan in-process when no bridge is bound.
type PlanHook func(ctx context.Context, plan map[string]any, traceID string) error

// Options bind the dispatcher's optional collaborators.
type Options struct {
	Bridge    OrchestratorBridge
	Sink      EventSink
	AgentHook AgentHook
	PlanHook  PlanHook

	// WebhookSecret enables HMAC signing of outbound webhook payloads.
	WebhookSecret []byte
	// Client overrides the outbound HTTP client (tests).
	Client *http.Client
}

type handlerFunc func(ctx context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) types.ActionResult

// Dispatcher routes rule actions to their handlers.
type Dispatcher struct {
	cfg       *config.EngineConfig
	budget    *budget.Budget
	bridge    OrchestratorBridge
	sink      EventSink
	agentHook AgentHook
	planHook  PlanHook
	client    *http.Client
	secret    []byte
	logger    zerolog.Logger
	handlers  map[types.ActionType]handlerFunc
}

// New constructs a Dispatcher for the given configuration and budget.
func New(cfg *config.EngineConfig, bud *budget.Budget, opts Options) *Dispatcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.WebhookTimeout}
	}

	d := &Dispatcher{
		cfg:       cfg,
		budget:    bud,
		bridge:    opts.Bridge,
		sink:      opts.Sink,
		agentHook: opts.AgentHook,
		planHook:  opts.PlanHook,
		client:    client,
		secret:    opts.WebhookSecret,
		logger:    log.WithComponent("dispatch"),
	}
	d.handlers = map[types.ActionType]handlerFunc{
		types.ActionNotify:      d.notify,
		types.ActionRunAgent:    d.runAgent,
		types.ActionExecutePlan: d.executePlan,
		types.ActionCallWebhook: d.callWebhook,
		types.ActionLogOnly:     d.logOnly,
	}
	return d
}

// Dispatch runs the rule's actions in order against the triggering event.
// Every action yields exactly one result; failures never abort the sequence.
func (d *Dispatcher) Dispatch(ctx context.Context, rule *types.Rule, ev *types.Event) []types.ActionResult {
	results := make([]types.ActionResult, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		results = append(results, d.runAction(ctx, rule, ev, action))
	}
	return results
}

// runAction resolves and invokes one handler, converting panics and unknown
// action types into failed results.
func (d *Dispatcher) runAction(ctx context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) (result types.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("event", "action.panic").
				Str("rule", rule.Name).
				Str("action_type", string(action.Type)).
				Interface("panic", r).
				Msg("action handler panicked")
			result = types.ActionResult{
				Type:    action.Type,
				Success: false,
				Message: fmt.Sprintf("action panicked: %v", r),
			}
			metrics.ActionsDispatched.WithLabelValues(string(action.Type), "failure").Inc()
		}
	}()

	handler, ok := d.handlers[action.Type]
	if !ok {
		err := fmt.Errorf("action %q: %w", action.Type, types.ErrUnknownAction)
		d.logger.Warn().
			Str("event", "action.unknown_type").
			Str("rule", rule.Name).
			Str("action_type", string(action.Type)).
			Msg("no handler registered")
		metrics.ActionsDispatched.WithLabelValues(string(action.Type), "failure").Inc()
		return types.ActionResult{Type: action.Type, Success: false, Message: err.Error()}
	}

	result = handler(ctx, rule, ev, action)

	status := "success"
	if !result.Success {
		status = "failure"
	}
	metrics.ActionsDispatched.WithLabelValues(string(action.Type), status).Inc()
	return result
}

// notify pushes a notification event to the sink, subject to the attention
// budget. Scope defaults to the rule's risk level, falling back to its name.
func (d *Dispatcher) notify(_ context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) types.ActionResult {
	scope := rule.RiskLevel
	if scope == "" {
		scope = rule.Name
	}
	limit := intParam(action, "limit_per_day", d.cfg.NotifyLimitPerDay)

	if !d.budget.Allow(scope, limit) {
		metrics.BudgetDenied.WithLabelValues(scope).Inc()
		d.logger.Info().
			Str("event", "notify.suppressed").
			Str("rule", rule.Name).
			Str("scope", scope).
			Int("limit_per_day", limit).
			Msg("notification suppressed by attention budget")
		return types.ActionResult{
			Type:    types.ActionNotify,
			Success: false,
			Message: fmt.Sprintf("notification suppressed by attention budget (scope %q)", scope),
		}
	}

	payload := sinkPayload(rule, ev, action)
	d.pushSink("notify.message", payload)
	return types.ActionResult{
		Type:      types.ActionNotify,
		Success:   true,
		SinkEvent: "notify.message",
	}
}

// runAgent delegates to the bridge, then a local hook, then falls back to an
// unfulfilled-intent sink event.
func (d *Dispatcher) runAgent(ctx context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) types.ActionResult {
	agentID := action.Param("agent_id", rule.Name)
	payload := sinkPayload(rule, ev, action)

	switch {
	case d.bridge != nil:
		if err := d.bridge.RunAgent(ctx, agentID, payload, ev.EventID); err != nil {
			return types.ActionResult{
				Type:    types.ActionRunAgent,
				Success: false,
				Message: fmt.Sprintf("bridge run_agent %q: %v", agentID, err),
			}
		}
		return types.ActionResult{
			Type:    types.ActionRunAgent,
			Success: true,
			Message: fmt.Sprintf("agent %q delegated to bridge", agentID),
		}
	case d.agentHook != nil:
		if err := d.agentHook(ctx, agentID, payload, ev.EventID); err != nil {
			return types.ActionResult{
				Type:    types.ActionRunAgent,
				Success: false,
				Message: fmt.Sprintf("local agent hook %q: %v", agentID, err),
			}
		}
		return types.ActionResult{
			Type:    types.ActionRunAgent,
			Success: true,
			Message: fmt.Sprintf("agent %q ran via local hook", agentID),
		}
	default:
		payload["unfulfilled"] = true
		d.pushSink("agent.request", payload)
		return types.ActionResult{
			Type:      types.ActionRunAgent,
			Success:   true,
			Message:   fmt.Sprintf("agent %q request recorded, no executor bound", agentID),
			SinkEvent: "agent.request",
		}
	}
}

// executePlan mirrors runAgent for plan execution.
func (d *Dispatcher) executePlan(ctx context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) types.ActionResult {
	plan, _ := action.Params["plan"].(map[string]any)
	if plan == nil {
		plan = action.Params
	}

	switch {
	case d.bridge != nil:
		if err := d.bridge.ExecutePlan(ctx, plan, ev.EventID); err != nil {
			return types.ActionResult{
				Type:    types.ActionExecutePlan,
				Success: false,
				Message: fmt.Sprintf("bridge execute_plan: %v", err),
			}
		}
		return types.ActionResult{
			Type:    types.ActionExecutePlan,
			Success: true,
			Message: "plan delegated to bridge",
		}
	case d.planHook != nil:
		if err := d.planHook(ctx, plan, ev.EventID); err != nil {
			return types.ActionResult{
				Type:    types.ActionExecutePlan,
				Success: false,
				Message: fmt.Sprintf("local plan hook: %v", err),
			}
		}
		return types.ActionResult{
			Type:    types.ActionExecutePlan,
			Success: true,
			Message: "plan ran via local hook",
		}
	default:
		payload := sinkPayload(rule, ev, action)
		payload["unfulfilled"] = true
		d.pushSink("plan.request", payload)
		return types.ActionResult{
			Type:      types.ActionExecutePlan,
			Success:   true,
			Message:   "plan request recorded, no executor bound",
			SinkEvent: "plan.request",
		}
	}
}

// logOnly emits an audit mark and nothing else.
func (d *Dispatcher) logOnly(_ context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) types.ActionResult {
	d.logger.Info().
		Str("event", "rule.audit").
		Str("rule", rule.Name).
		Str("event_id", ev.EventID).
		Str("event_type", ev.EventType).
		Msg("rule matched")

	d.pushSink("rule.audit", sinkPayload(rule, ev, action))
	return types.ActionResult{
		Type:      types.ActionLogOnly,
		Success:   true,
		SinkEvent: "rule.audit",
	}
}

// pushSink delivers a side-channel event. The sink must never raise back
// into the dispatch path, so panics are swallowed here.
func (d *Dispatcher) pushSink(eventType string, payload map[string]any) {
	if d.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn().
				Str("event", "sink.panic").
				Str("sink_event", eventType).
				Interface("panic", r).
				Msg("event sink panicked")
		}
	}()
	d.sink(eventType, payload)
}

// sinkPayload builds the standard side-channel payload: the action's own
// params plus rule and event correlation fields.
func sinkPayload(rule *types.Rule, ev *types.Event, action types.ActionSpec) map[string]any {
	payload := make(map[string]any, len(action.Params)+4)
	for k, v := range action.Params {
		payload[k] = v
	}
	payload["rule_name"] = rule.Name
	payload["event_id"] = ev.EventID
	payload["event_type"] = ev.EventType
	if ev.Subject != "" {
		payload["subject"] = ev.Subject
	}
	return payload
}

// intParam returns the named numeric parameter, or def when absent. JSON
// numbers decode as float64.
func intParam(action types.ActionSpec, name string, def int) int {
	switch v := action.Params[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
