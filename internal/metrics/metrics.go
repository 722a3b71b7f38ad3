package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_events_ingested_total",
		Help: "Total number of events persisted and processed, labelled by event type.",
	}, []string{"event_type"})

	EventsReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semibot_events_replayed_total",
		Help: "Total number of stored events re-processed through replay.",
	})

	RulesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_rules_matched_total",
		Help: "Total number of rule matches, labelled by rule name.",
	}, []string{"rule"})

	RuleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_rule_errors_total",
		Help: "Total number of rules that errored during execution, labelled by rule name.",
	}, []string{"rule"})

	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_actions_dispatched_total",
		Help: "Total number of actions dispatched, labelled by type and status.",
	}, []string{"action_type", "status"})

	ApprovalsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "semibot_approvals_pending",
		Help: "Current number of unresolved approval requests.",
	})

	ApprovalsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_approvals_resolved_total",
		Help: "Total number of approval requests resolved, labelled by outcome.",
	}, []string{"outcome"})

	BudgetDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_budget_denied_total",
		Help: "Total number of notifications suppressed by the attention budget, labelled by scope.",
	}, []string{"scope"})

	RuleReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_rule_reloads_total",
		Help: "Total number of rule set reloads, labelled by outcome.",
	}, []string{"status"})

	TriggerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semibot_trigger_ticks_total",
		Help: "Total number of trigger loop firings, labelled by trigger name.",
	}, []string{"trigger"})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semibot_event_processing_duration_ms",
		Help:    "End-to-end event processing latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
