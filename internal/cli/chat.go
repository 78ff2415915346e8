package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive analysis session",
	Long: `Start an interactive session. Each line is answered as its own
conversation; type "exit" or "quit" to leave.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "GitPulse - GitHub repository analytics")
	fmt.Fprintln(out, `Ask about any repository (owner/repo or URL). Type "exit" to quit.`)
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		answer, err := a.host.Run(cmd.Context(), query)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, answer.Text)
		if answer.Aborted {
			fmt.Fprintf(out, "(aborted: %s)\n", answer.AbortReason)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Goodbye!")
	return scanner.Err()
}
