package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoatGit/semibot/internal/approval"
	"github.com/GoatGit/semibot/internal/budget"
	"github.com/GoatGit/semibot/internal/config"
	"github.com/GoatGit/semibot/internal/dispatch"
	"github.com/GoatGit/semibot/internal/log"
	"github.com/GoatGit/semibot/internal/rules"
	"github.com/GoatGit/semibot/internal/store"
	"github.com/GoatGit/semibot/internal/types"
)

// Engine is the facade the surrounding runtime talks to. It owns the event
// store, the rule engine, the approval manager, the action dispatcher, and
// the trigger and watch loops, and exposes them as one surface.
type Engine struct {
	store     *store.Store
	cfg       *config.EngineConfig
	rules     *RulesEngine
	replay    *ReplayManager
	approvals *approval.Manager
	scheduler *Scheduler
	logger    zerolog.Logger
	now       func() time.Time

	watchMu sync.Mutex
	watch   *ruleWatch
}

type options struct {
	bridge        dispatch.OrchestratorBridge
	sink          dispatch.EventSink
	agentHook     dispatch.AgentHook
	planHook      dispatch.PlanHook
	webhookSecret []byte
	httpClient    *http.Client
	now           func() time.Time
}

// Option customizes engine construction.
type Option func(*options)

// WithBridge binds the orchestrator bridge that run_agent and execute_plan
// actions hand off to.
func WithBridge(bridge dispatch.OrchestratorBridge) Option {
	return func(o *options) { o.bridge = bridge }
}

// WithSink binds the side-channel sink that receives notifications, audit
// records, and unfulfilled intents.
func WithSink(sink dispatch.EventSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithAgentHook binds an in-process agent runner used when no bridge is
// bound.
func WithAgentHook(hook dispatch.AgentHook) Option {
	return func(o *options) { o.agentHook = hook }
}

// WithPlanHook binds an in-process plan runner used when no bridge is
// bound.
func WithPlanHook(hook dispatch.PlanHook) Option {
	return func(o *options) { o.planHook = hook }
}

// WithWebhookSecret enables HMAC signing of call_webhook payloads.
func WithWebhookSecret(secret []byte) Option {
	return func(o *options) { o.webhookSecret = secret }
}

// WithHTTPClient overrides the webhook client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithClock overrides wall-clock time for event timestamps and the
// attention budget.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires a complete engine over the given store, rule loader, and
// configuration. Rules are loaded before New returns; a broken rule source
// is a construction error.
func New(st *store.Store, loader *rules.Loader, cfg *config.EngineConfig, opts ...Option) (*Engine, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		store:  st,
		cfg:    cfg,
		logger: log.WithComponent("engine"),
		now:    o.now,
	}

	// Approval announcements and trigger ticks re-enter through Emit so
	// they are persisted and rule-matched like any external event.
	emit := func(ctx context.Context, ev *types.Event) error {
		_, err := e.Emit(ctx, ev)
		return err
	}

	e.approvals = approval.New(st, emit)

	dispatcher := dispatch.New(cfg, budget.NewWithClock(o.now), dispatch.Options{
		Bridge:        o.bridge,
		Sink:          o.sink,
		AgentHook:     o.agentHook,
		PlanHook:      o.planHook,
		WebhookSecret: o.webhookSecret,
		Client:        o.httpClient,
	})

	re, err := newRulesEngine(st, loader, cfg, dispatcher, e.approvals)
	if err != nil {
		return nil, err
	}
	e.rules = re
	e.replay = newReplayManager(st, re)
	e.scheduler = NewScheduler(emit)

	return e, nil
}

// Emit ingests one event: a missing id, timestamp, or payload is defaulted,
// the event is persisted, and every active rule bound to its type runs. The
// returned slice holds one result per considered rule in priority order.
func (e *Engine) Emit(ctx context.Context, ev *types.Event) ([]types.RuleExecutionResult, error) {
	if ev.EventID == "" {
		ev.EventID = types.NewEventID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = e.now().UTC()
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	return e.rules.HandleEvent(ctx, ev, true)
}

// ListEvents returns stored events newest-first. Zero values disable the
// type, since, and limit filters.
func (e *Engine) ListEvents(ctx context.Context, limit int, eventType string, since time.Time) ([]types.Event, error) {
	return e.store.ListEvents(ctx, limit, eventType, since)
}

// GetEvent fetches one stored event by id.
func (e *Engine) GetEvent(ctx context.Context, eventID string) (*types.Event, error) {
	return e.store.GetEvent(ctx, eventID)
}

// ListRules returns the currently loaded rule set in evaluation order.
func (e *Engine) ListRules() []types.Rule {
	return e.rules.Rules()
}

// Reload forces a synchronous rule reload regardless of staleness.
func (e *Engine) Reload(ctx context.Context) error {
	return e.rules.Reload(ctx)
}

// SetRuleActive flips is_active inside the rule's originating file. The
// change takes effect on the next load, via the lazy staleness check or the
// watch loop.
func (e *Engine) SetRuleActive(name string, active bool) (bool, error) {
	return e.rules.loader.SetActive(name, active)
}

// ListPendingApprovals returns unresolved approval requests, oldest first.
func (e *Engine) ListPendingApprovals(ctx context.Context) ([]types.ApprovalRequest, error) {
	return e.approvals.ListPending(ctx)
}

// ResolveApproval records a human decision on a pending approval request.
func (e *Engine) ResolveApproval(ctx context.Context, approvalID, decision string) (*types.ApprovalRequest, error) {
	return e.approvals.Resolve(ctx, approvalID, decision)
}

// ReplayEvent re-runs rule evaluation for one stored event without
// re-persisting it.
func (e *Engine) ReplayEvent(ctx context.Context, eventID string) ([]types.RuleExecutionResult, error) {
	return e.replay.ReplayEvent(ctx, eventID)
}

// ReplayByType replays every stored event of the given type since a cutoff
// and returns how many were processed.
func (e *Engine) ReplayByType(ctx context.Context, eventType string, since time.Time) (int, error) {
	return e.replay.ReplayByType(ctx, eventType, since)
}

// StartHeartbeat starts the periodic heartbeat trigger. A zero interval
// uses the configured default. Returns false when a heartbeat already
// runs.
func (e *Engine) StartHeartbeat(interval time.Duration, payload map[string]any) bool {
	if interval <= 0 {
		interval = e.cfg.HeartbeatInterval
	}
	if payload == nil {
		payload = e.cfg.HeartbeatPayload
	}
	return e.scheduler.StartHeartbeat(interval, payload)
}

// StartCronJobs starts one trigger loop per job and returns how many were
// accepted.
func (e *Engine) StartCronJobs(jobs []config.CronJob) int {
	return e.scheduler.StartCronJobs(jobs)
}

// StopTriggers stops the heartbeat and all cron loops and waits for them.
func (e *Engine) StopTriggers() {
	e.scheduler.StopTriggers()
}

// Close stops every background loop, then closes the store. The engine
// must not be used afterward.
func (e *Engine) Close() error {
	e.StopTriggers()
	e.StopRuleWatch()
	return e.store.Close()
}
