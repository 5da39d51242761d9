package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/pricing"
)

// newQuoteCmd prices a window offline using BASE_PRICE and
// INCREMENT_PRICE.  It needs no store.
func newQuoteCmd() *cobra.Command {
	var (
		start   string
		end     string
		minutes int
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the price of a reservation window",
		Example: `  area-reservation quote --minutes 61
  area-reservation quote --start 2026-01-10T18:00:00Z --end 2026-01-10T20:30:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := pricing.NewPolicy(envOr("BASE_PRICE", "5.00"), envOr("INCREMENT_PRICE", "2.50"))
			if err != nil {
				return err
			}
			var r model.TimeRange
			if minutes > 0 {
				s := time.Now().UTC().Truncate(time.Minute)
				r, err = model.NewTimeRange(s, s.Add(time.Duration(minutes)*time.Minute))
			} else {
				var s, e time.Time
				if s, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				if e, err = time.Parse(time.RFC3339, end); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				r, err = model.NewTimeRange(s, e)
			}
			if err != nil {
				return err
			}
			q, err := policy.Quote(r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "duration=%dmin billed_hours=%d base=%s increment=%s total=%s\n",
				q.DurationMinutes, q.BilledHours, q.Base.StringFixed(2), q.Increment.StringFixed(2), q.Total.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "window end (RFC 3339)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "duration in minutes instead of --start/--end")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
