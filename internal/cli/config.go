package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/atakanatali/pipecheck/internal/config"
)

const localConfigFile = "pipecheck.yaml"

// configPath resolves --config, then ./pipecheck.yaml, then
// ~/.pipecheck/config.yaml.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if _, err := os.Stat(localConfigFile); err == nil {
		return localConfigFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pipecheck", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (secrets masked)",
		RunE:  runConfig,
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", displayPath(configPath()), out)
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	if _, err := os.Stat(p); err != nil {
		return p + " (not found, using defaults)"
	}
	return p
}
