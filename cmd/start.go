package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"app-bootstrap/core/config"
	"app-bootstrap/core/logger"
	"app-bootstrap/core/server"
	"app-bootstrap/feature/launcher"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// runner is what start needs from the launcher.
type runner interface {
	Run(ctx context.Context) error
}

// newLauncher is replaced in tests.
var newLauncher = func(cfg server.LaunchConfig, logg *zap.Logger) runner {
	return launcher.New(cfg, nil, logg)
}

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start [target]",
	Short: "Install dependencies and launch the application server",
	Long: `Installs the manifest packages, binds the listening socket and serves the
target through a pool of worker processes until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyStartFlags(cmd.Flags(), args, cfg)

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runStart(ctx, cfg, logg)
	},
}

// runStart runs the installer and then the launcher. The launcher is never
// created when installation or configuration fails.
func runStart(ctx context.Context, cfg *config.Config, logg *zap.Logger) error {
	env, err := prepareEnvironment(ctx, cfg, logg)
	if err != nil {
		return err
	}

	lc, err := cfg.Server.LaunchConfig(cfg.Worker, env.Env())
	if err != nil {
		return err
	}

	logg.Info("Launching",
		zap.String("target", lc.Target),
		zap.String("bind", lc.BindAddress),
		zap.Int("workers", lc.WorkerCount),
		zap.Duration("timeout", lc.RequestTimeout),
	)
	if err := newLauncher(lc, logg).Run(ctx); err != nil {
		return err
	}
	logg.Info("Shutdown complete")
	return nil
}

// applyStartFlags lets explicit flags and the target argument override
// the loaded configuration.
func applyStartFlags(flags *pflag.FlagSet, args []string, cfg *config.Config) {
	if len(args) == 1 {
		cfg.Server.Target = args[0]
	}
	if flags.Changed("bind") {
		cfg.Server.Bind, _ = flags.GetString("bind")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSeconds, _ = flags.GetInt("timeout")
	}
	if flags.Changed("workers") {
		cfg.Server.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("skip-install") {
		cfg.Install.Skip, _ = flags.GetBool("skip-install")
	}
}

func addStartFlags(flags *pflag.FlagSet) {
	flags.String("bind", "", "Listen address (host:port)")
	flags.Int("timeout", 0, "Per-request timeout in seconds")
	flags.Int("workers", 0, "Number of worker processes")
	flags.Bool("skip-install", false, "Skip dependency installation")
}

func init() {
	addStartFlags(startCmd.Flags())
	RootCmd.AddCommand(startCmd)
}
