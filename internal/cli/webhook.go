package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atakanatali/pipecheck/internal/config"
	"github.com/atakanatali/pipecheck/internal/github"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect or create the repository webhook",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the webhook for TUNNEL_URL/events unless it already exists",
		Args:  cobra.NoArgs,
		RunE:  runWebhookEnsure,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List repository webhooks",
		Args:  cobra.NoArgs,
		RunE:  runWebhookList,
	})
	return cmd
}

func runWebhookEnsure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	gh, repo, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	hook, created, err := gh.EnsureWebhook(cmd.Context(), repo, cfg.Tunnel.URL, cfg.GitHub.WebhookSecret, cfg.GitHub.Events)
	if err != nil {
		return err
	}
	if created {
		printOK(fmt.Sprintf("Webhook created: %d -> %s", hook.ID, hook.Config.URL))
	} else {
		printOK(fmt.Sprintf("Found existing webhook (id=%d) pointing to %s", hook.ID, hook.Config.URL))
	}
	return nil
}

func runWebhookList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gh, repo, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	hooks, err := gh.ListHooks(cmd.Context(), repo)
	if err != nil {
		return err
	}
	printHooks(repo, hooks, targetOrEmpty(cfg))
	return nil
}

func targetOrEmpty(cfg *config.Config) string {
	if cfg.Tunnel.URL == "" {
		return ""
	}
	return github.WebhookTarget(cfg.Tunnel.URL)
}

func printHooks(repo github.Repository, hooks []github.Hook, target string) {
	printHeader("Webhooks for " + repo.String())
	if len(hooks) == 0 {
		printWarn("No webhooks found.")
		return
	}
	for _, h := range hooks {
		state := colorize(colorGreen, "active")
		if !h.Active {
			state = colorize(colorDim, "inactive")
		}
		marker := " "
		if target != "" && h.Config.URL == target {
			marker = colorize(colorCyan, "*")
		}
		fmt.Printf("  %s %-10d %s  %s  %s\n", marker, h.ID, h.Config.URL, state, colorize(colorDim, fmt.Sprint(h.Events)))
	}
	fmt.Printf("\n  %s %d webhooks\n", colorize(colorDim, "Total:"), len(hooks))
}
