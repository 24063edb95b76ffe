package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/screenshot-daily/internal/notify"
)

func newNotifyCmd(state *rootState) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send the webhook message for image links saved by a CI run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = state.cfg.Publish.URLListFile
			}
			urls, err := notify.LoadURLs(path)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), state.cfg, state.logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()

			if err := a.Notifier().SendImages(cmd.Context(), urls); err != nil {
				return fmt.Errorf("send notification: %w", err)
			}
			state.logger.Info("notification sent from url list", zap.String("file", path), zap.Int("images", len(urls)))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "URL list file (default from publish.url_list_file)")
	return cmd
}
