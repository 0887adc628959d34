package main

import (
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/spf13/cobra"
)

var (
	updateTemplate string
	updateRequest  poster.Request
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fill the template once and write Poster.psd and Poster.jpg",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := updateRequest
		if req.Folder == "" {
			req.Folder = cfg.Storage.Output
		}

		runner, cleanup, err := newRunner(cmd.Context(), newEngine(cfg, updateTemplate), poster.MultiNotifier{
			poster.WriterNotifier{W: cmd.OutOrStdout()},
			poster.LogNotifier{Logger: logger},
		})
		if err != nil {
			return err
		}
		defer cleanup()

		if err := runner.Run(cmd.Context(), req); err != nil {
			return reportedError{err}
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateRequest.City, "city", "", "Text for the City layer")
	updateCmd.Flags().StringVar(&updateRequest.Venue, "venue", "", "Text for the Venue layer")
	updateCmd.Flags().StringVar(&updateRequest.Date, "date", "", "Text for the Date layer")
	updateCmd.Flags().StringVar(&updateRequest.Folder, "folder", "", "Destination folder (default storage.output)")
	updateCmd.Flags().StringVar(&updateTemplate, "template", "", "Template path (default storage.template)")
	rootCmd.AddCommand(updateCmd)
}
