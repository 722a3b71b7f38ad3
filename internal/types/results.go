package types

// ActionResult is the outcome of one dispatched action. A failed action
// carries its error text in Message; SinkEvent names the event type the
// action emitted, when it emitted one.
type ActionResult struct {
	Type      ActionType `json:"action_type"`
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	SinkEvent string     `json:"sink_event,omitempty"`
}

// RuleExecutionResult records what one rule did with one event. The engine
// returns one result per considered rule, in execution order; a rule that
// did not match carries Matched=false and nothing else.
type RuleExecutionResult struct {
	RuleID           string         `json:"rule_id,omitempty"`
	RuleName         string         `json:"rule_name"`
	Matched          bool           `json:"matched"`
	ApprovalRequired bool           `json:"approval_required,omitempty"`
	ApprovalID       string         `json:"approval_id,omitempty"`
	Actions          []ActionResult `json:"actions,omitempty"`
	Err              string         `json:"error,omitempty"`
}

// Failed reports whether the rule itself errored, as opposed to individual
// actions failing.
func (r *RuleExecutionResult) Failed() bool {
	return r.Err != ""
}
