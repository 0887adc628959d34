package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gnemet/PosterForge/internal/database"
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyPSD   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent poster runs from the run history database",
	Long: `history prints the most recent runs. With --psd it computes the checksum of
the given Poster.psd and prints the successful run that produced it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Database.Enabled() {
			return errors.New("run history needs a database; set database.url or database.host")
		}
		db, err := database.NewConnection(cmd.Context(), cfg.Database.GetConnectStr(), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.EnsureSchema(cmd.Context(), db); err != nil {
			return err
		}
		repo := &database.RunRepository{DB: db}

		if historyPSD != "" {
			sum := poster.FileChecksum(historyPSD)
			if sum == "" {
				return fmt.Errorf("cannot read %s", historyPSD)
			}
			run, err := repo.LastSuccessByChecksum(cmd.Context(), sum)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("no recorded run produced %s", historyPSD)
			}
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), []database.Run{*run})
			return nil
		}

		runs, err := repo.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", defaultRunsLimit, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyPSD, "psd", "", "Find the run that produced this Poster.psd")
	rootCmd.AddCommand(historyCmd)
}

func printRuns(w io.Writer, runs []database.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOUTCOME\tCITY\tVENUE\tDATE\tFOLDER\tERROR")
	for _, r := range runs {
		outcome := poster.Succeeded
		if !r.Succeeded {
			outcome = poster.Failed
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), outcome, r.City, r.Venue, r.Date, r.Folder, r.Error)
	}
	tw.Flush()
}
