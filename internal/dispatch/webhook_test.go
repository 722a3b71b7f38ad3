package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCallWebhook_PostsEnvelope(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newDispatcher(Options{})
	ev := testEvent()
	rule := testRule(action(t, `{"action_type":"call_webhook","target":"`+srv.URL+`"}`))

	results := d.Dispatch(context.Background(), rule, ev)
	if !results[0].Success {
		t.Fatalf("result = %+v, want success", results[0])
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", gotContentType)
	}

	var envelope map[string]any
	if err := json.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if envelope["rule_name"] != "disk-alert" || envelope["trace_id"] != ev.EventID {
		t.Errorf("envelope = %v, want rule_name and trace_id", envelope)
	}
	event, _ := envelope["event"].(map[string]any)
	if event["event_type"] != "infra.disk.full" {
		t.Errorf("envelope event = %v, want full event carried", event)
	}
}

func TestCallWebhook_SignsWhenSecretConfigured(t *testing.T) {
	secret := []byte("shared-webhook-secret")

	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	d := newDispatcher(Options{WebhookSecret: secret})
	rule := testRule(action(t, `{"action_type":"call_webhook","target":"`+srv.URL+`"}`))

	if results := d.Dispatch(context.Background(), rule, testEvent()); !results[0].Success {
		t.Fatalf("result = %+v, want success", results[0])
	}

	if gotSignature == "" {
		t.Fatalf("no %s header sent", SignatureHeader)
	}
	if !VerifySignature(secret, gotBody, gotSignature) {
		t.Errorf("signature %q does not verify against body", gotSignature)
	}
}

func TestCallWebhook_UnsignedWithoutSecret(t *testing.T) {
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
	}))
	defer srv.Close()

	d := newDispatcher(Options{})
	rule := testRule(action(t, `{"action_type":"call_webhook","target":"`+srv.URL+`"}`))
	d.Dispatch(context.Background(), rule, testEvent())

	if gotSignature != "" {
		t.Errorf("signature header = %q, want unsigned request", gotSignature)
	}
}

func TestCallWebhook_URLParamAccepted(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	d := newDispatcher(Options{})
	rule := testRule(action(t, `{"action_type":"call_webhook","url":"`+srv.URL+`"}`))

	if results := d.Dispatch(context.Background(), rule, testEvent()); !results[0].Success {
		t.Fatalf("result = %+v, want success via url param", results[0])
	}
	if !hit {
		t.Errorf("server not hit")
	}
}

func TestCallWebhook_MissingTarget(t *testing.T) {
	d := newDispatcher(Options{})
	rule := testRule(action(t, `{"action_type":"call_webhook"}`))

	results := d.Dispatch(context.Background(), rule, testEvent())
	if results[0].Success {
		t.Fatalf("result = %+v, want failure", results[0])
	}
	if !strings.Contains(results[0].Message, "no target url") {
		t.Errorf("message = %q, want missing-target error", results[0].Message)
	}
}

func TestCallWebhook_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := newDispatcher(Options{})
	rule := testRule(action(t, `{"action_type":"call_webhook","target":"`+srv.URL+`"}`))

	results := d.Dispatch(context.Background(), rule, testEvent())
	if results[0].Success {
		t.Fatalf("result = %+v, want failure for 502", results[0])
	}
	if !strings.Contains(results[0].Message, "502") {
		t.Errorf("message = %q, want status carried", results[0].Message)
	}
}

func TestCallWebhook_TimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := newDispatcher(Options{Client: &http.Client{Timeout: 50 * time.Millisecond}})
	rule := testRule(action(t, `{"action_type":"call_webhook","target":"`+srv.URL+`"}`))

	results := d.Dispatch(context.Background(), rule, testEvent())
	if results[0].Success {
		t.Errorf("result = %+v, want failure on timeout", results[0])
	}
}
