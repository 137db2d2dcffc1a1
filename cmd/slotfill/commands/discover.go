package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var discoverJSON bool

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover <page-id>",
	Short: "List the image slots of a page",
	Long: `List every image slot of a page in display order. Slots inside
repeater rows, flexible content layouts and groups are listed with their path,
e.g. "Sections (Hero) → Row 2: Background".

The index in the first column is what 'slotfill assign --slots' expects.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print the discovery response as JSON")
}

func parsePageID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid page id %q", arg)
	}
	return id, nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	pageID, err := parsePageID(args[0])
	if err != nil {
		return err
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext()
	defer cancel()

	resp, err := env.service.Discover(ctx, pageID)
	if err != nil {
		return err
	}
	if discoverJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	if resp.Count == 0 {
		fmt.Fprintln(out, resp.Message)
		return nil
	}
	for _, f := range resp.Fields {
		fmt.Fprintf(out, "%s  %s  %s %s\n",
			indexStyle.Render(strconv.Itoa(f.Index)),
			slotState(f.HasValue),
			f.Label,
			dimStyle.Render("("+string(f.Kind)+")"))
	}
	fmt.Fprintf(out, "\n%d image field(s)\n", resp.Count)
	return nil
}
