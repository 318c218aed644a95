package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lugondev/swapforge/internal/txbuilder"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Transaction inspection commands",
}

var txDecodeCmd = &cobra.Command{
	Use:   "decode [base64]",
	Short: "Decode a serialized transaction",
	Long:  `Decode a base64 transaction as returned by the API and list its instructions.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := txbuilder.Decode(strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		if len(tx.Message.AccountKeys) == 0 {
			return fmt.Errorf("transaction has no accounts")
		}
		instructions, err := txbuilder.Describe(tx)
		if err != nil {
			return err
		}

		signed := 0
		for _, sig := range tx.Signatures {
			if !sig.IsZero() {
				signed++
			}
		}

		view := map[string]any{
			"feePayer":           tx.Message.AccountKeys[0],
			"recentBlockhash":    tx.Message.RecentBlockhash,
			"requiredSignatures": tx.Message.Header.NumRequiredSignatures,
			"signatures":         signed,
			"instructions":       instructions,
		}
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode transaction: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(txCmd)
	txCmd.AddCommand(txDecodeCmd)
}
