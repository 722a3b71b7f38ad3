package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/GoatGit/semibot/internal/types"
)

// callWebhook POSTs a JSON envelope describing the match to the action's
// target URL. The request carries the configured timeout and, when a signing
// secret is set, an HMAC signature header the receiver can verify.
func (d *Dispatcher) callWebhook(ctx context.Context, rule *types.Rule, ev *types.Event, action types.ActionSpec) types.ActionResult {
	target := action.Param("target", action.Param("url", ""))
	if target == "" {
		err := fmt.Errorf("rule %q: %w", rule.Name, types.ErrWebhookTarget)
		return types.ActionResult{Type: types.ActionCallWebhook, Success: false, Message: err.Error()}
	}

	envelope := map[string]any{
		"rule_id":   rule.ID,
		"rule_name": rule.Name,
		"trace_id":  ev.EventID,
		"event":     ev,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return types.ActionResult{
			Type:    types.ActionCallWebhook,
			Success: false,
			Message: fmt.Sprintf("encode webhook body: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return types.ActionResult{
			Type:    types.ActionCallWebhook,
			Success: false,
			Message: fmt.Sprintf("build webhook request: %v", err),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if len(d.secret) > 0 {
		req.Header.Set(SignatureHeader, SignBody(d.secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn().
			Str("event", "webhook.failed").
			Str("rule", rule.Name).
			Str("target", target).
			Err(err).
			Msg("webhook post failed")
		return types.ActionResult{
			Type:    types.ActionCallWebhook,
			Success: false,
			Message: fmt.Sprintf("webhook post: %v", err),
		}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; responses are not interpreted.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.Warn().
			Str("event", "webhook.rejected").
			Str("rule", rule.Name).
			Str("target", target).
			Int("status", resp.StatusCode).
			Msg("webhook returned non-2xx status")
		return types.ActionResult{
			Type:    types.ActionCallWebhook,
			Success: false,
			Message: fmt.Sprintf("webhook %s returned %s", target, resp.Status),
		}
	}

	return types.ActionResult{
		Type:    types.ActionCallWebhook,
		Success: true,
		Message: fmt.Sprintf("webhook %s accepted (%s)", target, resp.Status),
	}
}
