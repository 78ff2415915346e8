package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available analysis tools",
	Long: `List every tool in the catalog with its domain and description.
This needs no engine credentials, only a readable config.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	cat := rt.Catalog()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tDOMAIN\tDESCRIPTION")
	for _, def := range cat.Definitions() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.Domain, def.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d tools across 5 domains\n", cat.Len())
	return nil
}
