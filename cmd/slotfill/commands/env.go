package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/contentops/slotfill/internal/audit"
	"github.com/contentops/slotfill/internal/config"
	"github.com/contentops/slotfill/internal/logging"
	"github.com/contentops/slotfill/internal/storage"
	"github.com/contentops/slotfill/internal/ui"
	"github.com/contentops/slotfill/internal/uploader"
	"github.com/contentops/slotfill/pkg/types"
)

// environment is everything a command needs to talk to the content store
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	audit   *audit.Logger
	store   *storage.SQLiteStore
	service *uploader.Service
}

// loadConfig reads the config file, creating it on first use
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrCreate(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if config.IsRunningInDocker() {
		verboseLog("Running in Docker environment")
		cfg.ApplyDockerDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openEnvironment loads the config and opens the logger, audit log and store
func openEnvironment() (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level: cfg.Logging.Level,
		Debug: cfg.Logging.Debug || verbose,
	})
	if err != nil {
		return nil, err
	}

	auditLogger, err := audit.NewLogger(audit.Config{
		FilePath: cfg.Logging.File,
		MaxSize:  100 * 1024 * 1024,   // 100MB in bytes
		MaxAge:   30 * 24 * time.Hour, // 30 days
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}

	verboseLog("Opening content database %s", cfg.Storage.Database)
	store, err := storage.OpenSQLite(cfg.Storage.Database)
	if err != nil {
		_ = auditLogger.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}

	service := uploader.NewService(store, auditLogger, logger, uploader.Options{
		StatsTTL:         cfg.Storage.StatsTTL,
		StatsConcurrency: cfg.Storage.StatsConcurrency,
		Debug:            cfg.Logging.Debug,
	})

	return &environment{
		cfg:     cfg,
		logger:  logger,
		audit:   auditLogger,
		store:   store,
		service: service,
	}, nil
}

// Close releases the store and flushes the logs
func (e *environment) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close content database", zap.Error(err))
	}
	_ = e.audit.Close()
	_ = e.logger.Sync()
}

// confirmer builds the interactive prompt. assumeYes behaves like batch mode.
func (e *environment) confirmer(assumeYes bool) *ui.Confirmer {
	return ui.NewConfirmer(types.Confirmation{
		BatchMode:   e.cfg.Security.BatchMode || assumeYes,
		AutoApprove: e.cfg.Security.AutoApprove || assumeYes,
		Timeout:     e.cfg.Security.ConfirmationTimeout,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
