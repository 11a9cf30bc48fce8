package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/atakanatali/pipecheck/internal/config"
	"github.com/atakanatali/pipecheck/internal/docker"
	"github.com/atakanatali/pipecheck/internal/github"
	"github.com/atakanatali/pipecheck/internal/probe"
	"github.com/atakanatali/pipecheck/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify WORKFLOW",
		Short: "Run the end-to-end pipeline check for a workflow",
		Long: `Ensure the repository webhook points at TUNNEL_URL/events, dispatch WORKFLOW
(matched by name or by path suffix), then wait for the workflow run counter to
appear in the collector and in Prometheus.

Requires GITHUB_TOKEN, GITHUB_WEBHOOK_SECRET and TUNNEL_URL (or GITHUB_WEBHOOK_URL).
With --skip-webhook only GITHUB_TOKEN is required.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	}
	addPollFlags(cmd)
	addDispatchFlags(cmd)
	cmd.Flags().Bool("skip-webhook", false, "Do not check or create the repository webhook")
	return cmd
}

func addPollFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 0, "Per-poll timeout (default from config, 60s)")
	cmd.Flags().Duration("interval", 0, "Poll interval (default from config, 5s)")
	cmd.Flags().Float64("threshold", 0, "Minimum collector value (default from config, 1)")
}

func addDispatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("ref", "", "Git ref to run the workflow on (default GITHUB_REF or main)")
	cmd.Flags().StringToString("input", nil, "Workflow input as key=value (repeatable)")
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Poll.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("interval") {
		cfg.Poll.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("threshold") {
		cfg.Collector.Threshold, _ = flags.GetFloat64("threshold")
	}
	if flags.Changed("ref") {
		cfg.GitHub.Ref, _ = flags.GetString("ref")
	}
	return cfg.Validate()
}

func newGitHubClient(cfg *config.Config) (*github.Client, github.Repository, error) {
	repo := github.Repository{Owner: cfg.GitHub.Owner, Name: cfg.GitHub.Repo}
	if cfg.GitHub.Token == "" {
		return nil, repo, fmt.Errorf("%w: set GITHUB_TOKEN in your environment", config.ErrMissingCredentials)
	}
	return github.New(cfg.GitHub.APIURL, cfg.GitHub.Token), repo, nil
}

func newCollectorProbe(cfg *config.Config) *probe.CollectorProbe {
	p := probe.NewCollectorProbe(cfg.Collector.MetricsURL, cfg.Collector.Metric, cfg.Collector.Threshold)
	p.OnValue = func(v float64) {
		printInfo(fmt.Sprintf("Collector metric value: %s", formatValue(v)))
	}
	return p
}

func newPrometheusProbe(cfg *config.Config) (*probe.PrometheusProbe, error) {
	p, err := probe.NewPrometheusProbe(cfg.Prometheus.URL, cfg.Prometheus.Query)
	if err != nil {
		return nil, err
	}
	p.OnValue = func(v float64) {
		printInfo(fmt.Sprintf("Prometheus metric '%s' value: %s", cfg.Prometheus.Query, formatValue(v)))
	}
	return p, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	skipWebhook, _ := cmd.Flags().GetBool("skip-webhook")
	// Without the webhook step only the token is needed, which
	// newGitHubClient checks.
	if !skipWebhook {
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}
	}

	gh, repo, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}
	prom, err := newPrometheusProbe(cfg)
	if err != nil {
		return err
	}

	opts := verify.OptionsFromConfig(cfg)
	opts.Inputs, _ = cmd.Flags().GetStringToString("input")
	opts.SkipWebhook = skipWebhook

	printHeader(fmt.Sprintf("Verifying %s on %s", args[0], repo))

	runner := &verify.Runner{
		GitHub:     gh,
		Collector:  newCollectorProbe(cfg),
		Prometheus: prom,
		Logs:       docker.NewManager(),
		Reporter:   stepReporter{},
		Options:    opts,
	}

	start := time.Now()
	res, err := runner.Run(cmd.Context(), args[0])
	if res != nil && len(res.Logs) > 0 {
		names := make([]string, 0, len(res.Logs))
		for name := range res.Logs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			printHeader("Logs: " + name)
			printBlock(res.Logs[name])
		}
	}
	if err != nil {
		return err
	}

	printOK(fmt.Sprintf("SUCCESS: end-to-end pipeline verified in %s", time.Since(start).Round(time.Second)))
	return nil
}
