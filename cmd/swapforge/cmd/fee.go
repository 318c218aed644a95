package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/swapforge/internal/fee"
)

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Fee schedule commands",
}

var feeQuoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote the token creation fee",
	Long: `Quote the fee for the selected options from the configured schedule.
Outside production the charged amount is always zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fees, err := fee.NewSchedule(cfg.Fees)
		if err != nil {
			return err
		}

		var o fee.Options
		o.RevokeMint, _ = cmd.Flags().GetBool("revoke-mint")
		o.RevokeFreeze, _ = cmd.Flags().GetBool("revoke-freeze")
		o.RevokeUpdate, _ = cmd.Flags().GetBool("immutable")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Fee:     %s SOL (%d lamports)\n", fees.Quote(o), fees.QuoteLamports(o))
		fmt.Fprintf(out, "Charged: %d lamports (%s)\n", fees.Charge(o, cfg.IsProduction()), cfg.Environment)
		return nil
	},
}

func init() {
	feeQuoteCmd.Flags().Bool("revoke-mint", false, "revoke the mint authority")
	feeQuoteCmd.Flags().Bool("revoke-freeze", false, "revoke the freeze authority")
	feeQuoteCmd.Flags().Bool("immutable", false, "revoke the metadata update authority")

	rootCmd.AddCommand(feeCmd)
	feeCmd.AddCommand(feeQuoteCmd)
}
