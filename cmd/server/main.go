package main // Entry point package

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/area-reservation/internal/config"
)

func newRoot() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "area-reservation",
		Short:         "Area reservation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return config.LoadDotEnv()
			}
			return config.LoadDotEnv(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env if present)")
	cmd.AddCommand(newServeCmd(), newReapCmd(), newQuoteCmd(), newMigrateCmd(), newTokenCmd())
	return cmd
}

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
