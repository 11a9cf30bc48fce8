package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch WORKFLOW",
		Short: "Trigger a workflow_dispatch run without waiting for metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  runDispatch,
	}
	addDispatchFlags(cmd)
	return cmd
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	gh, repo, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	wf, err := gh.FindWorkflow(cmd.Context(), repo, args[0])
	if err != nil {
		return err
	}
	inputs, _ := cmd.Flags().GetStringToString("input")
	if err := gh.DispatchWorkflow(cmd.Context(), repo, wf.ID, cfg.GitHub.Ref, inputs); err != nil {
		return err
	}

	printOK(fmt.Sprintf("Workflow dispatch triggered: %s (%s) on %s", wf.Name, wf.Path, cfg.GitHub.Ref))
	return nil
}
