// Package cmd defines the screenshot-daily CLI.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/screenshot-daily/internal/app"
	"github.com/JakeFAU/screenshot-daily/internal/config"
	"github.com/JakeFAU/screenshot-daily/internal/logging"
)

// newApp builds the application services. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// rootState carries what PersistentPreRunE resolved to the subcommands.
type rootState struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	state := &rootState{}
	cmd := &cobra.Command{
		Use:   "screenshot-daily",
		Short: "Capture daily website screenshots and announce them to a chat webhook.",
		Long: `screenshot-daily probes a list of websites, captures a viewport
screenshot of each reachable one with headless Chrome, publishes the
images and posts their links to a chat webhook.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config and logging are resolved once, after flags are parsed.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(state.cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			state.cfg = cfg
			state.logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "",
		"config file (default is ./screenshot-daily.yaml or $HOME/.screenshot-daily/screenshot-daily.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(state))
	cmd.AddCommand(newNotifyCmd(state))
	cmd.AddCommand(newCheckBrowserCmd(state))
	return cmd
}

// Execute runs the CLI and exits with status 1 on any error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out io.Writer) int {
	// Bootstrap logger for failures before the configured one exists.
	if logger, err := logging.New(true, false); err == nil {
		zap.ReplaceGlobals(logger)
	}

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	err := root.ExecuteContext(ctx)
	defer func() { _ = zap.L().Sync() }()
	if err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		return 1
	}
	return 0
}
