package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallYes bool

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove cached data",
	Long: `Remove the cached slot statistics. Pages, field values and the audit
log are left untouched.`,
	RunE: runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "do not ask for confirmation")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext()
	defer cancel()

	confirmer := env.confirmer(uninstallYes)
	result := confirmer.ConfirmOperation(ctx, "clear", "statistics cache", nil)
	if result.Error != nil {
		return result.Error
	}
	if !result.Approved {
		confirmer.DisplayInfo("Uninstall cancelled")
		return nil
	}

	if err := env.service.ClearCache(ctx); err != nil {
		return fmt.Errorf("failed to clear statistics cache: %w", err)
	}
	confirmer.DisplaySuccess("Statistics cache cleared")
	return nil
}
