package commands

import (
	"github.com/spf13/cobra"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <page-id> <jsonpath>",
	Short: "Query the stored field values of a page",
	Long: `Evaluate a JSONPath expression against the field values of a page. The
root object maps field names to their stored values.

Examples:
  slotfill query 12 '$.hero'
  slotfill query 12 '$.sections[*].background'`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	values, err := env.service.QueryValues(ctx, pageID, args[1])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), values)
}
