package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/screenshot-daily/internal/capture"
)

const verifyTimeout = time.Minute

// launcherFactory builds the launcher check-browser --verify starts.
var launcherFactory = func() capture.Launcher { return capture.NewChromedpLauncher() }

func newCheckBrowserCmd(state *rootState) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "check-browser",
		Short: "Report whether a Chrome or Chromium executable is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, ok := capture.FindExecPath(state.cfg.Capture.ExecPath)
			if !ok {
				return errors.New("no Chrome or Chromium executable found; set CHROME_PATH or capture.exec_path")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "browser found: %s\n", path)
			if !verify {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
			defer cancel()
			browser, err := launcherFactory().Launch(ctx, capture.LaunchOptions{
				Width:     state.cfg.Width,
				Height:    state.cfg.Height,
				UserAgent: capture.DefaultUserAgent,
				ExecPath:  path,
				CIMode:    state.cfg.CIMode,
			})
			if err != nil {
				return fmt.Errorf("verify browser: %w", err)
			}
			if err := browser.Close(); err != nil {
				return fmt.Errorf("verify browser: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "browser launched successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "also launch the browser once")
	return cmd
}
