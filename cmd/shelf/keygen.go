package main

import (
	"encoding/hex"
	"fmt"

	"github.com/pudottapommin/shelf/pkg/encryption"
	"github.com/spf13/cobra"
)

var keySize int

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a random hex key for SHELF_SECRET_KEY",
	Args:  cobra.NoArgs,
	// Key generation needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := encryption.GenerateNewKey(keySize)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
		return nil
	},
}

func init() {
	keygenCmd.Flags().IntVarP(&keySize, "size", "s", 32, "Key size in bytes (16, 24 or 32)")
	rootCmd.AddCommand(keygenCmd)
}
