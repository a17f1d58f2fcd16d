// Package cmd provides the command-line interface of voice2issue.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/voice2issue/internal/config"
	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/workflow"
)

var (
	// appConfig is loaded before any subcommand runs.
	appConfig *config.Config

	// workflowOptions are appended to every workflow the commands build.
	workflowOptions []workflow.Option
)

var rootCmd = &cobra.Command{
	Use:   "voice2issue",
	Short: "Voice2issue turns spoken feature requests into GitHub issues",
	Long: `Voice2issue turns a spoken feature request into a structured issue.

The transcript is sent to a language model which extracts a title, a body,
a priority and labels. The resulting issue is created on GitHub (or JIRA)
together with a comment that hands the work to an automation agent.

Without credentials, --demo runs the whole flow on synthetic data.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringP("repository", "r", "", "Target repository (e.g., 'owner/repo')")
	rootCmd.PersistentFlags().Bool("demo", false, "Run without external calls, using synthetic results")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(githubCmd)
}

// loadConfig reads the configuration and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logging.SetupLogger(os.Stderr, logging.LogLevel(cfg.Log.Level), logging.LogFormat(cfg.Log.Format))
	logging.Debug("configuration loaded",
		"tracker", cfg.Tracker,
		"repository", cfg.GitHub.Repository,
		"demo_mode", cfg.DemoMode,
		"github_token", logging.MaskSensitive(cfg.GitHub.Token),
		"anthropic_api_key", logging.MaskSensitive(cfg.Anthropic.APIKey))

	appConfig = cfg
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if repository, err := flags.GetString("repository"); err != nil {
		return err
	} else if repository != "" {
		cfg.GitHub.Repository = repository
	}

	if flags.Changed("demo") {
		demo, err := flags.GetBool("demo")
		if err != nil {
			return err
		}
		cfg.DemoMode = demo
	}

	if level, err := flags.GetString("log-level"); err != nil {
		return err
	} else if level != "" {
		cfg.Log.Level = level
	}

	if format, err := flags.GetString("log-format"); err != nil {
		return err
	} else if format != "" {
		cfg.Log.Format = format
	}

	return nil
}

func newWorkflow(opts ...workflow.Option) *workflow.Workflow {
	return workflow.New(appConfig, append(opts, workflowOptions...)...)
}
