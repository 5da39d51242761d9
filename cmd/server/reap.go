package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/area-reservation/internal/reaper"
)

// newReapCmd runs a single expiry pass, for cron.
func newReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Expire due pending reservations once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if err := a.wire(cmd.Context()); err != nil {
				return err
			}
			defer a.Close()

			res, err := reaper.New(a.svc, a.cfg.ReaperInterval, a.metrics, a.log).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d expired=%d skipped=%d\n", res.Scanned, res.Expired, res.Skipped)
			return nil
		},
	}
}
