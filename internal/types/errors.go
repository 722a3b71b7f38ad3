package types

import "errors"

// Sentinel errors for semibot operations. Callers classify failures with
// errors.Is; wrapped variants carry the offending name or identifier.
var (
	// ErrRuleInvalid indicates a rule definition failed structural validation.
	ErrRuleInvalid = errors.New("rule definition is invalid")

	// ErrRuleNotFound indicates no rule with the requested name exists in
	// the active set.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleSourceTooLarge indicates a rule file exceeds MaxRuleSourceBytes.
	ErrRuleSourceTooLarge = errors.New("rule source exceeds maximum size")

	// ErrScheduleUnsupported indicates a trigger schedule expression outside
	// the supported forms.
	ErrScheduleUnsupported = errors.New("schedule expression not supported")

	// ErrEventNotFound indicates no stored event with the requested ID.
	ErrEventNotFound = errors.New("event not found")

	// ErrApprovalNotFound indicates no approval request with the requested ID.
	ErrApprovalNotFound = errors.New("approval request not found")

	// ErrApprovalResolved indicates an attempt to resolve an approval request
	// a second time.
	ErrApprovalResolved = errors.New("approval request already resolved")

	// ErrUnknownAction indicates an action type with no registered handler.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrWebhookTarget indicates a call_webhook action without a usable URL.
	ErrWebhookTarget = errors.New("webhook action has no target url")

	// ErrWatchRunning indicates the rule watch loop was started twice.
	ErrWatchRunning = errors.New("rule watch already running")
)
