package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/atakanatali/pipecheck/internal/config"
	"github.com/atakanatali/pipecheck/internal/docker"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the local telemetry stack",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	printHeader("Pipeline Status")

	// Credentials
	if err := cfg.RequireCredentials(); err != nil {
		printWarn(err.Error())
	} else {
		printOK(fmt.Sprintf("Credentials set, webhook target %s", targetOrEmpty(cfg)))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	// Collector
	v, found, err := newCollectorProbe(cfg).Value(ctx)
	switch {
	case err != nil:
		printFail(fmt.Sprintf("Collector unreachable at %s", cfg.Collector.MetricsURL))
	case !found:
		printWarn(fmt.Sprintf("Collector up, %s not exposed yet", cfg.Collector.Metric))
	default:
		printOK(fmt.Sprintf("Collector %s = %s", cfg.Collector.Metric, formatValue(v)))
	}

	// Prometheus
	prom, err := newPrometheusProbe(cfg)
	if err != nil {
		return err
	}
	v, found, err = prom.Value(ctx)
	switch {
	case err != nil:
		printFail(fmt.Sprintf("Prometheus query failed at %s", cfg.Prometheus.URL))
	case !found:
		printWarn(fmt.Sprintf("Prometheus has no result for %s", cfg.Prometheus.Query))
	default:
		printOK(fmt.Sprintf("Prometheus %s = %s", cfg.Prometheus.Query, formatValue(v)))
	}

	printContainers(ctx, cfg)
	fmt.Println()
	return nil
}

func printContainers(ctx context.Context, cfg *config.Config) {
	names := []string{cfg.Diagnostics.CollectorContainer, cfg.Diagnostics.PrometheusContainer}
	if names[0] == "" && names[1] == "" {
		return
	}

	fmt.Println()
	fmt.Println(colorize(colorBold, "  Containers"))
	fmt.Println(colorize(colorDim, "  ──────────"))

	mgr := docker.NewManager()
	if !mgr.IsDockerAvailable() {
		printWarn("docker is not installed")
		return
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		status, _ := mgr.Status(ctx, name)
		switch {
		case !status.Exists:
			printFail(fmt.Sprintf("%s not found", name))
		case !status.Running:
			printWarn(fmt.Sprintf("%s exists but stopped (%s)", name, status.Status))
		default:
			printOK(fmt.Sprintf("%s running (%s)", name, status.Image))
		}
	}
}
