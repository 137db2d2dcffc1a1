package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contentops/slotfill/internal/fields"
	"github.com/contentops/slotfill/internal/uploader"
	"github.com/contentops/slotfill/pkg/types"
)

var (
	assignImages  []int64
	assignSlots   []int
	assignKeep    bool
	assignYes     bool
	assignDryRun  bool
)

// assignCmd represents the assign command
var assignCmd = &cobra.Command{
	Use:   "assign <page-id>",
	Short: "Fill the image slots of a page",
	Long: `Assign a list of images to the image slots of a page. Images are given
out in order: one per image slot, and a gallery takes every remaining image.

Examples:
  # Fill the slots of page 12 in order, replacing images already there
  slotfill assign 12 --images 101,102,103

  # Only fill empty slots among 0 and 3 (see 'slotfill discover')
  slotfill assign 12 --images 101,102 --slots 0,3 --keep-existing

  # Show the plan without writing
  slotfill assign 12 --images 101,102 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)

	assignCmd.Flags().Int64SliceVar(&assignImages, "images", nil, "attachment ids in assignment order (required)")
	assignCmd.Flags().IntSliceVar(&assignSlots, "slots", nil, "slot indexes to fill (default: all slots)")
	assignCmd.Flags().BoolVar(&assignKeep, "keep-existing", false, "skip slots that already hold an image")
	assignCmd.Flags().BoolVarP(&assignYes, "yes", "y", false, "do not ask for confirmation")
	assignCmd.Flags().BoolVar(&assignDryRun, "dry-run", false, "print the plan and exit")
	_ = assignCmd.MarkFlagRequired("images")
}

func runAssign(cmd *cobra.Command, args []string) error {
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

	discovered, err := env.service.Discover(ctx, pageID)
	if err != nil {
		return err
	}
	page, err := env.store.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	replace := !assignKeep
	plan, err := env.service.Plan(ctx, types.PlanRequest{
		PageID:          pageID,
		ImageIDs:        assignImages,
		Slots:           assignSlots,
		ReplaceExisting: &replace,
	})
	if err != nil {
		return err
	}

	slots := make(map[string]types.FlattenedSlot, len(discovered.Fields))
	for _, f := range discovered.Fields {
		slots[slotKey(f.Name, f.Ancestry)] = f
	}
	lines := make([]string, 0, len(plan.Assignments))
	overwrites := 0
	for _, a := range plan.Assignments {
		label := fields.DisplayLabel(a.Ancestry, a.FieldName)
		if slot, ok := slots[slotKey(a.FieldName, a.Ancestry)]; ok {
			label = slot.Label
			if slot.HasValue {
				overwrites++
			}
		}
		lines = append(lines, fmt.Sprintf("%s ← %s", label, joinIDs(a.AttachmentIDs)))
	}

	out := cmd.OutOrStdout()
	if assignDryRun {
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
		if plan.Hint != "" {
			fmt.Fprintln(out, dimStyle.Render(plan.Hint))
		}
		return nil
	}

	confirmer := env.confirmer(assignYes)
	if plan.Hint != "" {
		confirmer.DisplayInfo(plan.Hint)
	}
	result := confirmer.ConfirmAssignments(ctx, *page, lines, overwrites)
	if result.Error != nil {
		return result.Error
	}
	if !result.Approved {
		confirmer.DisplayInfo("Nothing was written")
		return nil
	}

	resp, err := env.service.Submit(ctx, types.SubmitRequest{PageID: pageID, Assignments: plan.Assignments})
	if err != nil {
		if errors.Is(err, uploader.ErrPartialWrite) {
			confirmer.DisplayError(err.Error())
		}
		return err
	}
	if resp.SkippedCount > 0 {
		confirmer.DisplayWarning(fmt.Sprintf("%d field(s) skipped: no valid images", resp.SkippedCount))
	}
	confirmer.DisplaySuccess(resp.Message)
	verboseLog("batch %s", resp.BatchID)
	return nil
}

// slotKey identifies a slot by its name and the rows and layouts above it
func slotKey(name string, ancestry []types.AncestryFrame) string {
	var b strings.Builder
	for _, f := range ancestry {
		b.WriteString(f.Name)
		if f.RowIndex != nil {
			fmt.Fprintf(&b, "[%d]", *f.RowIndex)
		}
		if f.LayoutName != "" {
			b.WriteString("(" + f.LayoutName + ")")
		}
		b.WriteByte('/')
	}
	b.WriteString(name)
	return b.String()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
