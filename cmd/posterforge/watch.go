package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gnemet/PosterForge/internal/observer"
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/spf13/cobra"
)

var (
	watchDebounce time.Duration
	watchTemplate string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render the poster whenever the template changes",
	Long: `watch renders the poster once, then again after every change to the template
file, using the poster.* values from the configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		template := watchTemplate
		if template == "" {
			template = cfg.Storage.Template
		}
		req := poster.Request{
			City:   cfg.Poster.City,
			Venue:  cfg.Poster.Venue,
			Date:   cfg.Poster.Date,
			Folder: cfg.Storage.Output,
		}

		runner, cleanup, err := newRunner(ctx, newEngine(cfg, template), poster.LogNotifier{Logger: logger})
		if err != nil {
			return err
		}
		defer cleanup()

		o := observer.NewObserver(template, req, runner, logger)
		o.Debounce = watchDebounce
		return o.Start(ctx)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", observer.DefaultDebounce, "Quiet period after a change before rendering")
	watchCmd.Flags().StringVar(&watchTemplate, "template", "", "Template path (default storage.template)")
	rootCmd.AddCommand(watchCmd)
}
