package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atakanatali/pipecheck/internal/config"
)

var (
	flagConfig  string
	flagEnvFile string
	flagVerbose bool
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipecheck",
		Short: "End-to-end smoke test for the GitHub Actions telemetry pipeline",
		Long: `pipecheck - smoke test for the GitHub Actions telemetry pipeline.

Ensures the repository webhook points at your tunnel, dispatches a workflow,
and waits for github_actions_workflow_runs_total to show up in the collector
and in Prometheus.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(flagVerbose)
			if flagEnvFile != "" {
				return config.LoadDotEnv(flagEnvFile)
			}
			return config.LoadDotEnv()
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./pipecheck.yaml or ~/.pipecheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "dotenv file to load (default ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "V", false, "verbose output")

	// Pipeline commands
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newWebhookCmd())
	rootCmd.AddCommand(newWorkflowsCmd())
	rootCmd.AddCommand(newDispatchCmd())
	rootCmd.AddCommand(newPollCmd())

	// Local stack commands
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLogsCmd())

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd(version))

	return rootCmd
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd(version).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, colorize(colorRed, "  ✗ ")+"ERROR: "+err.Error())
	}
	return err
}
