package commands

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsJSON bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show image slot counts per page",
	Long: `Show the number of image slots per page and how many of them are empty.
Counts are cached for five minutes, so recent assignments may not show yet.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext()
	defer cancel()

	stats, err := env.service.PageStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}
	if statsJSON {
		return writeJSON(cmd.OutOrStdout(), stats)
	}

	pages, err := env.service.Pages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	titles := make(map[int64]string, len(pages))
	for _, p := range pages {
		titles[p.ID] = p.Title
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerStyle.Render("ID")+"\t"+headerStyle.Render("TITLE")+"\t"+headerStyle.Render("TOTAL")+"\t"+headerStyle.Render("EMPTY")+"\t"+headerStyle.Render("FILLED"))
	var total, empty int
	for _, id := range slices.Sorted(maps.Keys(stats)) {
		s := stats[id]
		total += s.Total
		empty += s.Empty
		emptyCol := fmt.Sprint(s.Empty)
		if s.Empty > 0 {
			emptyCol = emptyStyle.Render(emptyCol)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", id, titles[id], s.Total, emptyCol, filledStyle.Render(fmt.Sprint(s.Filled)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d page(s), %d image field(s), %d empty\n", len(stats), total, empty)
	return nil
}
