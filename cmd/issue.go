package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/workflow"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

// issueCmd publishes an issue from a transcript given as text.
var issueCmd = &cobra.Command{
	Use:   "issue [transcript]",
	Short: "Create an issue from a transcript",
	Long: `Create an issue from a transcript.

The transcript is taken from the arguments, or read from standard input when
no argument is given. Use --extract-only to print the extracted draft without
creating anything.

Example:
  voice2issue issue -r owner/repo "add a dark mode toggle to the settings page"
  cat notes.txt | voice2issue issue -r owner/repo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readTranscript(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		extractOnly, err := cmd.Flags().GetBool("extract-only")
		if err != nil {
			return err
		}

		req := workflow.Request{VoiceInput: input}
		wf := newWorkflow()
		out := cmd.OutOrStdout()

		if extractOnly {
			draft, source, err := wf.Extract(cmdContext(cmd), req)
			if err != nil {
				return fmt.Errorf("failed to extract issue: %w", err)
			}
			printDraft(out, draft, string(source))
			return nil
		}

		result, err := wf.Run(cmdContext(cmd), req)
		if err != nil {
			return fmt.Errorf("failed to create issue: %w", err)
		}
		printDraft(out, result.Draft, string(result.Source))
		printPublication(out, result.Publication, appConfig.Issue.AutomationComment)
		return nil
	},
}

func init() {
	issueCmd.Flags().Bool("extract-only", false, "Print the extracted draft without publishing")
}

// readTranscript joins the arguments, or reads r when there are none.
func readTranscript(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if r == nil {
		return "", errors.New("no transcript given")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printDraft(w io.Writer, draft models.IssueDraft, source string) {
	fmt.Fprintf(w, "Title:    %s\n", draft.Title)
	fmt.Fprintf(w, "Priority: %s\n", draft.Priority)
	fmt.Fprintf(w, "Labels:   %s\n", strings.Join(draft.Labels, ", "))
	fmt.Fprintf(w, "Source:   %s\n\n", source)
	fmt.Fprintln(w, draft.Body)
	fmt.Fprintln(w)
}

func printPublication(w io.Writer, result models.PublicationResult, commentExpected bool) {
	switch {
	case result.Demo:
		fmt.Fprintf(w, "Demo issue #%d: %s (nothing was created)\n", result.IssueNumber, result.IssueURL)
	case result.CommentAdded || !commentExpected:
		fmt.Fprintf(w, "Created issue #%d: %s\n", result.IssueNumber, result.IssueURL)
	default:
		fmt.Fprintf(w, "Created issue #%d: %s (automation comment not added)\n", result.IssueNumber, result.IssueURL)
	}
	logging.Debug("publication finished", "issue", result.IssueNumber, "demo", result.Demo)
}
