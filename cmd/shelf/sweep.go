package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete every expired note once and exit",
	Long: `Sweep removes notes whose time to live has run out, together with their
schedule entries. It is safe to run while a server is serving the same store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Shutdown(context.Background())

		n, err := a.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired notes\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
