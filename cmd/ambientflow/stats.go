package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/ambientflow/internal/usage"
)

func newStatsCmd(a *app) *cobra.Command {
	var date string
	var sessions bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-app usage for a day from the usage database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = time.Now().Format("2006-01-02")
			}
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", date)
			}

			store, err := usage.Open(a.cfg.StatePath)
			if err != nil {
				return err
			}
			defer store.Close()

			totals, err := store.DailyTotals(date)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTotals(out, date, totals, a.cfg.WorkApps, a.cfg.EntertainmentApps)

			if sessions {
				list, err := store.Sessions(date)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				for _, s := range list {
					fmt.Fprintf(out, "%s-%s  %-20s %s\n",
						s.Start.Local().Format("15:04"), s.End.Local().Format("15:04"),
						s.App, formatSeconds(s.Seconds))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to report, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "also list individual sessions")
	return cmd
}

func printTotals(w io.Writer, date string, totals []usage.AppTotal, workApps, entertainmentApps []string) {
	fmt.Fprintf(w, "Usage for %s\n\n", date)
	if len(totals) == 0 {
		fmt.Fprintln(w, "  no recorded usage")
		return
	}
	for _, t := range totals {
		fmt.Fprintf(w, "  %-24s %s\n", t.App, formatSeconds(t.Seconds))
	}
	fmt.Fprintf(w, "\n  %-24s %s\n", "work", formatSeconds(usage.CategorySeconds(totals, workApps)))
	fmt.Fprintf(w, "  %-24s %s\n", "entertainment", formatSeconds(usage.CategorySeconds(totals, entertainmentApps)))
}

func formatSeconds(s int) string {
	d := time.Duration(s) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s%60)
}
