package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture screenshots, publish them and send the notification",
		Long: `Probes every configured URL, screenshots the reachable ones and
publishes the images. In CI mode the image links are written to the URL
list file for a later "notify" step; otherwise they are posted to the
webhook right away. Exits non-zero when no screenshot succeeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), state.cfg, state.logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			summary, err := a.Runner().Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			for _, url := range summary.URLs() {
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			state.logger.Debug("run command finished", zap.String("run_id", summary.RunID))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("urls", nil, "URLs to capture (repeatable or comma separated)")
	flags.String("img-dir", "screenshots", "directory screenshots are written to")
	flags.Int("width", 1920, "viewport width")
	flags.Int("height", 1080, "viewport height")
	flags.Bool("no-webhook", false, "do not send the webhook message")
	flags.Bool("no-cleanup", false, "keep existing files in the output directory")
	return cmd
}
