package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contentops/slotfill/internal/storage"
	"github.com/contentops/slotfill/internal/validation"
)

var importYes bool

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <fixture.yaml>",
	Short: "Import pages and attachments from a YAML fixture",
	Long: `Import pages, their field schemas and values, and media library
attachments from a YAML document. Existing pages with the same id are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "do not ask for confirmation")
}

func runImport(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return importFixture(ctx, env, args[0], importYes)
}

func importFixture(ctx context.Context, env *environment, path string, assumeYes bool) error {
	if err := validation.NewValidator().ValidateFilePath(path); err != nil {
		return fmt.Errorf("invalid fixture path: %w", err)
	}
	fixture, err := storage.LoadFixtureFile(path)
	if err != nil {
		return err
	}

	confirmer := env.confirmer(assumeYes)
	result := confirmer.ConfirmOperation(ctx, "import", path, map[string]any{
		"pages":       len(fixture.Pages),
		"attachments": len(fixture.Attachments),
		"database":    env.cfg.Storage.Database,
	})
	if result.Error != nil {
		return result.Error
	}
	if !result.Approved {
		confirmer.DisplayInfo("Import cancelled")
		return nil
	}

	if err := env.service.Import(ctx, fixture); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Imported %d page(s) and %d attachment(s)\n", len(fixture.Pages), len(fixture.Attachments))
	return nil
}
