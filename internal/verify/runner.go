// Package verify drives the end-to-end pipeline check: webhook, workflow
// dispatch, then the collector and Prometheus polls.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atakanatali/pipecheck/internal/config"
	"github.com/atakanatali/pipecheck/internal/github"
	"github.com/atakanatali/pipecheck/internal/probe"
)

var (
	ErrCollectorTimeout  = errors.New("collector did not record workflow metric in time")
	ErrPrometheusTimeout = errors.New("prometheus did not scrape metric in time")
)

type GitHub interface {
	EnsureWebhook(ctx context.Context, repo github.Repository, tunnelURL, secret string, events []string) (*github.Hook, bool, error)
	FindWorkflow(ctx context.Context, repo github.Repository, name string) (*github.Workflow, error)
	DispatchWorkflow(ctx context.Context, repo github.Repository, workflowID int64, ref string, inputs map[string]string) error
}

type Checker interface {
	Check(ctx context.Context) (bool, error)
}

type LogSource interface {
	TailLogs(ctx context.Context, name string, n int) (string, error)
}

type Reporter interface {
	Step(msg string)
	OK(msg string)
	Warn(msg string)
}

type Options struct {
	Repo        github.Repository
	TunnelURL   string
	Secret      string
	Events      []string
	Ref         string
	Inputs      map[string]string
	SkipWebhook bool

	Interval time.Duration
	Timeout  time.Duration

	// Containers whose logs are collected when a poll times out.
	Containers []string
	LogTail    int
}

func OptionsFromConfig(cfg *config.Config) Options {
	var containers []string
	for _, c := range []string{cfg.Diagnostics.CollectorContainer, cfg.Diagnostics.PrometheusContainer} {
		if c != "" {
			containers = append(containers, c)
		}
	}
	return Options{
		Repo:       github.Repository{Owner: cfg.GitHub.Owner, Name: cfg.GitHub.Repo},
		TunnelURL:  cfg.Tunnel.URL,
		Secret:     cfg.GitHub.WebhookSecret,
		Events:     cfg.GitHub.Events,
		Ref:        cfg.GitHub.Ref,
		Interval:   cfg.Poll.Interval,
		Timeout:    cfg.Poll.Timeout,
		Containers: containers,
		LogTail:    cfg.Diagnostics.LogTail,
	}
}

type Runner struct {
	GitHub     GitHub
	Collector  Checker
	Prometheus Checker
	Logs       LogSource
	Reporter   Reporter
	Options    Options
}

type Result struct {
	RunID       string
	Hook        *github.Hook
	HookCreated bool
	Workflow    *github.Workflow
	// Logs holds container output collected after a poll timeout, keyed by
	// container name.
	Logs map[string]string
}

// Run executes the full check for the named workflow. GitHub errors abort
// immediately; poll timeouts return ErrCollectorTimeout or
// ErrPrometheusTimeout together with any diagnostics collected.
func (r *Runner) Run(ctx context.Context, workflowName string) (*Result, error) {
	res := &Result{RunID: uuid.New().String()[:8]}
	log := slog.With("run_id", res.RunID, "repo", r.Options.Repo.String(), "workflow", workflowName)
	rep := r.reporter()
	start := time.Now()

	if !r.Options.SkipWebhook {
		hook, created, err := r.GitHub.EnsureWebhook(ctx, r.Options.Repo, r.Options.TunnelURL, r.Options.Secret, r.Options.Events)
		if err != nil {
			return res, fmt.Errorf("ensure webhook: %w", err)
		}
		res.Hook, res.HookCreated = hook, created
		if created {
			rep.OK(fmt.Sprintf("Webhook created: %d -> %s", hook.ID, hook.Config.URL))
		} else {
			rep.OK(fmt.Sprintf("Found existing webhook (id=%d) pointing to %s", hook.ID, hook.Config.URL))
		}
		log.Info("webhook ready", "hook_id", hook.ID, "created", created)
	} else {
		rep.Warn("Skipping webhook check")
	}

	wf, err := r.GitHub.FindWorkflow(ctx, r.Options.Repo, workflowName)
	if err != nil {
		return res, err
	}
	res.Workflow = wf

	if err := r.GitHub.DispatchWorkflow(ctx, r.Options.Repo, wf.ID, r.Options.Ref, r.Options.Inputs); err != nil {
		return res, err
	}
	rep.OK(fmt.Sprintf("Workflow dispatch triggered: %s (%s) on %s", wf.Name, wf.Path, r.Options.Ref))
	log.Info("workflow dispatched", "workflow_id", wf.ID, "ref", r.Options.Ref)

	rep.Step("Waiting for collector metric...")
	ok, err := probe.Poll(ctx, r.Options.Interval, r.Options.Timeout, r.Collector.Check)
	if err != nil {
		return res, err
	}
	if !ok {
		log.Warn("collector poll timed out", "timeout", r.Options.Timeout)
		res.Logs = r.collectLogs(ctx)
		return res, ErrCollectorTimeout
	}

	rep.Step("Waiting for Prometheus scrape...")
	ok, err = probe.Poll(ctx, r.Options.Interval, r.Options.Timeout, r.Prometheus.Check)
	if err != nil {
		return res, err
	}
	if !ok {
		log.Warn("prometheus poll timed out", "timeout", r.Options.Timeout)
		res.Logs = r.collectLogs(ctx)
		return res, ErrPrometheusTimeout
	}

	log.Info("pipeline verified", "duration", time.Since(start).Round(time.Millisecond).String())
	return res, nil
}

func (r *Runner) collectLogs(ctx context.Context) map[string]string {
	if r.Logs == nil || len(r.Options.Containers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	out := make(map[string]string, len(r.Options.Containers))
	for _, name := range r.Options.Containers {
		logs, err := r.Logs.TailLogs(ctx, name, r.Options.LogTail)
		if err != nil {
			slog.Debug("could not collect container logs", "container", name, "error", err)
			continue
		}
		out[name] = logs
	}
	return out
}

func (r *Runner) reporter() Reporter {
	if r.Reporter == nil {
		return nopReporter{}
	}
	return r.Reporter
}

type nopReporter struct{}

func (nopReporter) Step(string) {}
func (nopReporter) OK(string)   {}
func (nopReporter) Warn(string) {}
