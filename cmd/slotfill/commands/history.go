package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/contentops/slotfill/internal/audit"
)

var (
	historyTypes []string
	historyPages []int64
	historyBatch string
	historySince time.Duration
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Search the audit log",
	Long: `Search the audit log for past discoveries, submits and container writes.

Examples:
  # Every write of the last day
  slotfill history --type SUBMIT,CONTAINER_WRITE --since 24h

  # Everything one submit did
  slotfill history --batch 5f0c7d1e-...`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringSliceVar(&historyTypes, "type", nil, "event types to show")
	historyCmd.Flags().Int64SliceVar(&historyPages, "page", nil, "page ids to show")
	historyCmd.Flags().StringVar(&historyBatch, "batch", "", "only events of this submit batch")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only events newer than this")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 100, "maximum number of events (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	query := audit.Query{
		PageIDs:       historyPages,
		CorrelationID: historyBatch,
		Limit:         historyLimit,
	}
	for _, t := range historyTypes {
		query.EventTypes = append(query.EventTypes, audit.EventType(strings.ToUpper(t)))
	}
	if historySince > 0 {
		query.StartTime = time.Now().Add(-historySince)
	}

	events, err := audit.SearchFile(cfg.Logging.File, query)
	if err != nil {
		return err
	}
	if historyJSON {
		return writeJSON(cmd.OutOrStdout(), events)
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		line := fmt.Sprintf("%s  %-18s %-8s", e.Timestamp.Local().Format(time.DateTime), e.Type, e.Result)
		if e.PageID != 0 {
			line += fmt.Sprintf(" page=%d", e.PageID)
		}
		if e.Resource != "" {
			line += " " + e.Resource
		}
		if e.Error != "" {
			line += " " + emptyStyle.Render(e.Error)
		}
		if e.CorrelationID != "" {
			line += " " + dimStyle.Render(e.CorrelationID)
		}
		fmt.Fprintln(out, line)
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No matching events.")
	}
	return nil
}
