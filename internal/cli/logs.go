package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atakanatali/pipecheck/internal/docker"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "logs {collector|prometheus}",
		Short:     "Show recent logs of a local stack container",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"collector", "prometheus"},
		RunE:      runLogs,
	}
	cmd.Flags().IntP("tail", "n", 0, "Number of lines to show from the end (default from config)")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := cfg.Diagnostics.CollectorContainer
	if args[0] == "prometheus" {
		name = cfg.Diagnostics.PrometheusContainer
	}
	if name == "" {
		return fmt.Errorf("no %s container configured (diagnostics.%s_container)", args[0], args[0])
	}

	tail := cfg.Diagnostics.LogTail
	if cmd.Flags().Changed("tail") {
		tail, _ = cmd.Flags().GetInt("tail")
	}

	mgr := docker.NewManager()
	if !mgr.IsDockerAvailable() {
		return fmt.Errorf("docker is not installed")
	}
	status, err := mgr.Status(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("check container status: %w", err)
	}
	if !status.Exists {
		return fmt.Errorf("container %s not found", name)
	}

	out, err := mgr.TailLogs(cmd.Context(), name, tail)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
