package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/contentops/slotfill/internal/config"
	"github.com/contentops/slotfill/internal/validation"
)

var (
	initDatabase string
	initFixture  string
	initForce    bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration and content database",
	Long: `Create ~/.slotfill/config.yaml and an empty content database, optionally
seeding it from a YAML fixture of pages and attachments.

Examples:
  # Initialize with defaults
  slotfill init

  # Use a specific database and import a site export
  slotfill init --database ./site.db --fixture ./export.yaml`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initDatabase, "database", "", "path of the content database")
	initCmd.Flags().StringVar(&initFixture, "fixture", "", "YAML fixture to import after creating the database")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := configFile
	if path == "" {
		path = filepath.Join(config.GetConfigDir(), "config.yaml")
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil && !initForce:
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", path)
	case err != nil:
		cfg = config.DefaultConfig()
	}

	if initDatabase != "" {
		validator := validation.NewValidator()
		if err := validator.ValidateFilePath(initDatabase); err != nil {
			return fmt.Errorf("invalid database path: %w", err)
		}
		abs, err := filepath.Abs(initDatabase)
		if err != nil {
			return fmt.Errorf("failed to resolve database path: %w", err)
		}
		cfg.Storage.Database = abs
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = filepath.Join(config.GetConfigDir(), "content.db")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(config.GetConfigDir(), "audit.log")
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote configuration to %s\n", path)

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()
	fmt.Fprintf(os.Stderr, "✓ Content database ready at %s\n", env.cfg.Storage.Database)

	if initFixture != "" {
		ctx, cancel := signalContext()
		defer cancel()
		if err := importFixture(ctx, env, initFixture, true); err != nil {
			return err
		}
	}

	fmt.Fprintln(os.Stderr, "\nTo list the image slots of a page, run:")
	fmt.Fprintln(os.Stderr, "  slotfill discover <page-id>")
	return nil
}
