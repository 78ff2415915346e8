package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question about a GitHub repository",
	Long: `Ask a single question and print the answer. The question can name a
repository as owner/repo or as a full GitHub URL.

Example:
  gitpulse ask "How healthy is golang/go?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")
	answer, err := a.host.Run(cmd.Context(), query)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
	if answer.Aborted {
		return fmt.Errorf("conversation aborted: %s", answer.AbortReason)
	}
	return nil
}
