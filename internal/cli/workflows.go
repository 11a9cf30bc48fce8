package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWorkflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List the repository's GitHub Actions workflows",
		Args:  cobra.NoArgs,
		RunE:  runWorkflows,
	}
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gh, repo, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	workflows, err := gh.ListWorkflows(cmd.Context(), repo)
	if err != nil {
		return err
	}

	printHeader("Workflows in " + repo.String())
	if len(workflows) == 0 {
		printWarn("No workflows found.")
		return nil
	}
	for _, wf := range workflows {
		stateColor := colorGreen
		if wf.State != "active" {
			stateColor = colorYellow
		}
		fmt.Printf("  %-10d %s  %s  %s\n",
			wf.ID,
			colorize(colorBold, wf.Name),
			colorize(colorDim, wf.Path),
			colorize(stateColor, wf.State),
		)
	}
	fmt.Printf("\n  %s %d workflows\n", colorize(colorDim, "Total:"), len(workflows))
	return nil
}
