package cmd

import (
	"context"
	"errors"
	"fmt"

	"app-bootstrap/core/config"
	"app-bootstrap/core/database"
	"app-bootstrap/core/logger"
	"app-bootstrap/feature/installer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the manifest packages without launching",
	Long:  `Resolves every requirement in the manifest against the package index and installs missing packages into the site directory.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logg.Sync()

		env, err := prepareEnvironment(cmd.Context(), cfg, logg)
		if err != nil {
			return err
		}
		logg.Info("Install complete", zap.Int("packages", len(env.Packages)), zap.String("site_dir", env.SiteDir))
		return nil
	},
}

// prepareEnvironment runs the installer phase. With install.skip set it
// returns an empty environment without touching the index or ledger.
func prepareEnvironment(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*installer.Environment, error) {
	if cfg.Install.Skip {
		logg.Info("Dependency installation skipped")
		return &installer.Environment{SiteDir: cfg.Install.SiteDir}, nil
	}

	manifest, err := installer.LoadManifest(cfg.Install.Manifest)
	if err != nil {
		var instErr *installer.InstallationError
		if errors.As(err, &instErr) {
			return nil, err
		}
		return nil, &installer.InstallationError{Op: "manifest", Err: err}
	}

	index, closeIndex, err := installer.OpenIndex(cfg.Install, cfg.Storage)
	if err != nil {
		return nil, &installer.InstallationError{Op: "index", Err: err}
	}
	defer closeIndex()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, &installer.InstallationError{Op: "ledger", Err: err}
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ledger, err := installer.NewLedger(db)
	if err != nil {
		return nil, &installer.InstallationError{Op: "ledger", Err: err}
	}

	logg.Info("Installing dependencies",
		zap.String("manifest", cfg.Install.Manifest),
		zap.String("index", cfg.Install.Index),
		zap.Int("requirements", len(manifest)),
	)
	return installer.New(index, ledger, cfg.Install.SiteDir, logg).PrepareEnvironment(ctx, manifest)
}

func init() {
	RootCmd.AddCommand(installCmd)
}
