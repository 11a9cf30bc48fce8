package sink

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testSecret = "s3cret"

const runPayload = `{
	"action": "completed",
	"workflow_run": {"id": 42, "name": "Smoke", "status": "completed", "conclusion": "success", "head_branch": "main"},
	"repository": {"full_name": "octo/hello"}
}`

func deliver(t *testing.T, h http.Handler, event, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"zen":"Design for failure."}`)
	sig := Sign([]byte(testSecret), body)

	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("unexpected signature format: %q", sig)
	}
	if err := VerifySignature([]byte(testSecret), body, sig); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := VerifySignature([]byte("other"), body, sig); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for wrong secret, got %v", err)
	}
	if err := VerifySignature([]byte(testSecret), body, ""); err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if err := VerifySignature([]byte(testSecret), body, "sha1=abc"); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for sha1 header, got %v", err)
	}
	if err := VerifySignature([]byte(testSecret), body, "sha256=zz"); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for non-hex, got %v", err)
	}
}

func TestEvents_RecordsWorkflowRun(t *testing.T) {
	m := NewMetrics()
	r := NewRouter(testSecret, m)

	rec := deliver(t, r, "workflow_run", runPayload, Sign([]byte(testSecret), []byte(runPayload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}

	got := testutil.ToFloat64(m.WorkflowRuns.WithLabelValues("octo/hello", "Smoke", "completed", "success"))
	if got != 1 {
		t.Fatalf("expected counter 1, got %v", got)
	}
}

func TestEvents_RejectsBadSignature(t *testing.T) {
	m := NewMetrics()
	r := NewRouter(testSecret, m)

	rec := deliver(t, r, "workflow_run", runPayload, Sign([]byte("wrong"), []byte(runPayload)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if n := testutil.CollectAndCount(m.WorkflowRuns); n != 0 {
		t.Fatalf("expected no workflow run series, got %d", n)
	}
	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("workflow_run", "unauthorized")); got != 1 {
		t.Fatalf("expected one unauthorized delivery, got %v", got)
	}
}

func TestEvents_WithoutSecretSkipsVerification(t *testing.T) {
	m := NewMetrics()
	r := NewRouter("", m)

	rec := deliver(t, r, "workflow_run", runPayload, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEvents_PingAndOtherEvents(t *testing.T) {
	m := NewMetrics()
	r := NewRouter(testSecret, m)

	ping := `{"zen":"Keep it logically awesome."}`
	if rec := deliver(t, r, "ping", ping, Sign([]byte(testSecret), []byte(ping))); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ping, got %d", rec.Code)
	}

	push := `{"ref":"refs/heads/main"}`
	if rec := deliver(t, r, "push", push, Sign([]byte(testSecret), []byte(push))); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for push, got %d", rec.Code)
	}

	if rec := deliver(t, r, "", push, Sign([]byte(testSecret), []byte(push))); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without event header, got %d", rec.Code)
	}

	if n := testutil.CollectAndCount(m.WorkflowRuns); n != 0 {
		t.Fatalf("non workflow_run events must not be counted, got %d series", n)
	}
}

func TestEvents_InvalidPayload(t *testing.T) {
	r := NewRouter(testSecret, NewMetrics())

	body := `{"action":`
	if rec := deliver(t, r, "workflow_run", body, Sign([]byte(testSecret), []byte(body))); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsEndpoint_ExposesCounter(t *testing.T) {
	m := NewMetrics()
	r := NewRouter("", m)
	deliver(t, r, "workflow_run", runPayload, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `github_actions_workflow_runs_total{action="completed",conclusion="success",repository="octo/hello",workflow="Smoke"} 1`
	if !bytes.Contains(rec.Body.Bytes(), []byte(want)) {
		t.Fatalf("metrics output missing %q:\n%s", want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	r := NewRouter("", NewMetrics())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
