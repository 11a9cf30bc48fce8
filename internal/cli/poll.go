package cli

import (
	"github.com/spf13/cobra"

	"github.com/atakanatali/pipecheck/internal/probe"
	"github.com/atakanatali/pipecheck/internal/verify"
)

func newPollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Wait for the workflow run metric without triggering anything",
	}

	collector := &cobra.Command{
		Use:   "collector",
		Short: "Poll the collector's /metrics endpoint until the counter reaches the threshold",
		Args:  cobra.NoArgs,
		RunE:  runPollCollector,
	}
	addPollFlags(collector)

	prometheus := &cobra.Command{
		Use:   "prometheus",
		Short: "Poll the Prometheus query API until the counter is positive",
		Args:  cobra.NoArgs,
		RunE:  runPollPrometheus,
	}
	addPollFlags(prometheus)

	cmd.AddCommand(collector, prometheus)
	return cmd
}

func runPollCollector(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	printStep("Waiting for collector metric...")
	ok, err := probe.Poll(cmd.Context(), cfg.Poll.Interval, cfg.Poll.Timeout, newCollectorProbe(cfg).Check)
	if err != nil {
		return err
	}
	if !ok {
		return verify.ErrCollectorTimeout
	}
	printOK("Collector metric reached threshold.")
	return nil
}

func runPollPrometheus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	p, err := newPrometheusProbe(cfg)
	if err != nil {
		return err
	}

	printStep("Waiting for Prometheus scrape...")
	ok, err := probe.Poll(cmd.Context(), cfg.Poll.Interval, cfg.Poll.Timeout, p.Check)
	if err != nil {
		return err
	}
	if !ok {
		return verify.ErrPrometheusTimeout
	}
	printOK("Prometheus returned a positive value.")
	return nil
}
