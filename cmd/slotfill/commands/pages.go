package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pagesJSON bool

// pagesCmd represents the pages command
var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List pages",
	RunE:  runPages,
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	pagesCmd.Flags().BoolVar(&pagesJSON, "json", false, "print JSON")
}

func runPages(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext()
	defer cancel()

	pages, err := env.service.Pages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if pagesJSON {
		return writeJSON(cmd.OutOrStdout(), pages)
	}
	if len(pages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pages found. Import some with 'slotfill import'.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerStyle.Render("ID")+"\t"+headerStyle.Render("TITLE")+"\t"+headerStyle.Render("STATUS")+"\t"+headerStyle.Render("UPDATED"))
	for _, p := range pages {
		updated := "-"
		if !p.UpdatedAt.IsZero() {
			updated = p.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Title, p.Status, dimStyle.Render(updated))
	}
	return tw.Flush()
}
