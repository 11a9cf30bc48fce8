package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/atakanatali/pipecheck/internal/github"
	"github.com/atakanatali/pipecheck/internal/github/githubtest"
	"github.com/atakanatali/pipecheck/internal/probe"
	"github.com/atakanatali/pipecheck/internal/sink"
)

const (
	token  = "ghp_test"
	secret = "s3cret"
	metric = "github_actions_workflow_runs_total"
)

var repo = github.Repository{Owner: "octo", Name: "hello"}

// actionsGitHub behaves like GitHub Actions: a successful dispatch results
// in a signed workflow_run delivery to the webhook target.
type actionsGitHub struct {
	*github.Client
	sinkURL string
	deliver bool
}

func (g *actionsGitHub) DispatchWorkflow(ctx context.Context, r github.Repository, id int64, ref string, inputs map[string]string) error {
	if err := g.Client.DispatchWorkflow(ctx, r, id, ref, inputs); err != nil {
		return err
	}
	if !g.deliver {
		return nil
	}
	body := []byte(fmt.Sprintf(`{"action":"completed","workflow_run":{"id":1,"name":"Smoke","conclusion":"success"},"repository":{"full_name":%q}}`, r.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sinkURL+"/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-GitHub-Event", "workflow_run")
	req.Header.Set(sink.SignatureHeader, sink.Sign([]byte(secret), body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// prometheusFor answers instant queries with what the sink currently exposes.
func prometheusFor(t *testing.T, sinkURL string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		v, found, err := probe.NewCollectorProbe(sinkURL+"/metrics", r.FormValue("query"), 0).Value(r.Context())
		if err != nil || !found {
			fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
			return
		}
		fmt.Fprintf(w, `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[%d,"%g"]}]}}`, time.Now().Unix(), v)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	gh     *githubtest.Server
	runner *Runner
	rep    *recordingReporter
}

func newHarness(t *testing.T, deliver bool) *harness {
	t.Helper()

	gh := githubtest.NewServer(token)
	t.Cleanup(gh.Close)
	gh.AddWorkflow(repo.String(), github.Workflow{ID: 11, Name: "Smoke", Path: ".github/workflows/smoke.yml"})

	sinkSrv := httptest.NewServer(sink.NewRouter(secret, sink.NewMetrics()))
	t.Cleanup(sinkSrv.Close)

	prom, err := probe.NewPrometheusProbe(prometheusFor(t, sinkSrv.URL).URL, metric)
	if err != nil {
		t.Fatalf("NewPrometheusProbe: %v", err)
	}

	rep := &recordingReporter{}
	return &harness{
		gh:  gh,
		rep: rep,
		runner: &Runner{
			GitHub:     &actionsGitHub{Client: github.New(gh.URL, token), sinkURL: sinkSrv.URL, deliver: deliver},
			Collector:  probe.NewCollectorProbe(sinkSrv.URL+"/metrics", metric, 1),
			Prometheus: prom,
			Reporter:   rep,
			Options: Options{
				Repo:      repo,
				TunnelURL: sinkSrv.URL,
				Secret:    secret,
				Events:    []string{"workflow_run"},
				Ref:       "main",
				Interval:  10 * time.Millisecond,
				Timeout:   300 * time.Millisecond,
			},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, true)

	res, err := h.runner.Run(context.Background(), "smoke.yml")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.HookCreated || res.Hook == nil {
		t.Fatalf("expected webhook to be created: %+v", res)
	}
	if res.Workflow == nil || res.Workflow.ID != 11 {
		t.Fatalf("unexpected workflow: %+v", res.Workflow)
	}
	if res.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if d := h.gh.Dispatches(); len(d) != 1 || d[0].Request.Ref != "main" {
		t.Fatalf("unexpected dispatches: %+v", d)
	}
}

func TestRun_SecondRunReusesWebhook(t *testing.T) {
	h := newHarness(t, true)

	if _, err := h.runner.Run(context.Background(), "Smoke"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := h.runner.Run(context.Background(), "Smoke")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.HookCreated {
		t.Fatalf("expected existing webhook to be reused")
	}
	if n := len(h.gh.Hooks(repo.String())); n != 1 {
		t.Fatalf("expected exactly one webhook, got %d", n)
	}
}

func TestRun_WorkflowNotFound(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.runner.Run(context.Background(), "deploy.yml")
	if !errors.Is(err, github.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
	if len(h.gh.Dispatches()) != 0 {
		t.Fatalf("nothing should be dispatched")
	}
}

func TestRun_GitHubErrorAborts(t *testing.T) {
	h := newHarness(t, true)
	h.gh.FailWith(http.MethodPost, "/hooks", http.StatusUnprocessableEntity)

	_, err := h.runner.Run(context.Background(), "Smoke")
	var apiErr *github.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(h.gh.Dispatches()) != 0 {
		t.Fatalf("nothing should be dispatched after a webhook failure")
	}
}

func TestRun_CollectorTimeoutCollectsLogs(t *testing.T) {
	h := newHarness(t, false)
	logs := &fakeLogs{out: "collector: exporter failed"}
	h.runner.Logs = logs
	h.runner.Options.Containers = []string{"otel-collector"}
	h.runner.Options.LogTail = 20

	res, err := h.runner.Run(context.Background(), "Smoke")
	if !errors.Is(err, ErrCollectorTimeout) {
		t.Fatalf("expected ErrCollectorTimeout, got %v", err)
	}
	if res.Logs["otel-collector"] != "collector: exporter failed" {
		t.Fatalf("expected collector logs, got %+v", res.Logs)
	}
	if logs.tail != 20 {
		t.Fatalf("expected tail 20, got %d", logs.tail)
	}
}

func TestRun_PrometheusTimeout(t *testing.T) {
	h := newHarness(t, true)
	h.runner.Prometheus = checkerFunc(func(ctx context.Context) (bool, error) { return false, nil })

	_, err := h.runner.Run(context.Background(), "Smoke")
	if !errors.Is(err, ErrPrometheusTimeout) {
		t.Fatalf("expected ErrPrometheusTimeout, got %v", err)
	}
}

func TestRun_SkipWebhook(t *testing.T) {
	h := newHarness(t, true)
	h.runner.Options.SkipWebhook = true

	res, err := h.runner.Run(context.Background(), "Smoke")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Hook != nil || len(h.gh.Hooks(repo.String())) != 0 {
		t.Fatalf("webhook must not be touched when skipped")
	}
	if len(h.rep.warns) != 1 {
		t.Fatalf("expected a skip warning, got %v", h.rep.warns)
	}
}

type checkerFunc func(ctx context.Context) (bool, error)

func (f checkerFunc) Check(ctx context.Context) (bool, error) { return f(ctx) }

type fakeLogs struct {
	out  string
	tail int
}

func (f *fakeLogs) TailLogs(ctx context.Context, name string, n int) (string, error) {
	f.tail = n
	return f.out, nil
}

type recordingReporter struct {
	mu    sync.Mutex
	steps []string
	oks   []string
	warns []string
}

func (r *recordingReporter) Step(msg string) { r.mu.Lock(); r.steps = append(r.steps, msg); r.mu.Unlock() }
func (r *recordingReporter) OK(msg string)   { r.mu.Lock(); r.oks = append(r.oks, msg); r.mu.Unlock() }
func (r *recordingReporter) Warn(msg string) { r.mu.Lock(); r.warns = append(r.warns, msg); r.mu.Unlock() }
