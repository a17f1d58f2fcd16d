package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/voice2issue/internal/logging"
)

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Inspect the configured GitHub connection",
	Long: `Inspect the configured GitHub connection.

The token is taken from --token or GITHUB_TOKEN (JIRA_TOKEN when TRACKER=jira).`,
}

var githubTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the tracker credential works",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := cmd.Flags().GetString("token")
		if err != nil {
			return err
		}

		status := newWorkflow().TestConnection(cmdContext(cmd), token)
		if !status.Success {
			logging.Error("connection test failed", "error", status.Error)
			return errors.New(status.Error)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Connected as %s\n", status.User)
		return nil
	},
}

var githubInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show a summary of the target repository",
	Long: `Show a summary of the target repository.

Example:
  voice2issue github info -r owner/repo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := cmd.Flags().GetString("token")
		if err != nil {
			return err
		}

		info, err := newWorkflow().RepositoryInfo(cmdContext(cmd), appConfig.GitHub.Repository, token)
		if err != nil {
			return fmt.Errorf("failed to fetch repository: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", info.FullName)
		if info.Description != "" {
			fmt.Fprintf(out, "  %s\n", info.Description)
		}
		fmt.Fprintf(out, "  language:    %s\n", info.Language)
		fmt.Fprintf(out, "  stars:       %d\n", info.Stars)
		fmt.Fprintf(out, "  forks:       %d\n", info.Forks)
		fmt.Fprintf(out, "  open issues: %d\n", info.OpenIssues)
		return nil
	},
}

func init() {
	githubCmd.PersistentFlags().String("token", "", "Tracker token (overrides GITHUB_TOKEN)")

	githubCmd.AddCommand(githubTestCmd)
	githubCmd.AddCommand(githubInfoCmd)
}
