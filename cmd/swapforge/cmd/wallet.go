package cmd

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lugondev/swapforge/internal/fee"
	solsvc "github.com/lugondev/swapforge/internal/solana"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet management commands",
	Long:  `Commands for generating the treasury keypair and checking wallet balances.`,
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new wallet",
	Long: `Generate a new Solana keypair. With --out the keypair is written as a
Solana CLI JSON file usable as treasury.keypair_file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := solsvc.NewWallet()
		out := cmd.OutOrStdout()

		path, _ := cmd.Flags().GetString("out")
		if path != "" {
			if err := w.SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Keypair written to %s\n", path)
			fmt.Fprintf(out, "  Public Key: %s\n", w.PublicKey())
			return nil
		}

		fmt.Fprintln(out, "New wallet generated!")
		fmt.Fprintf(out, "  Public Key:  %s\n", w.PublicKey())
		fmt.Fprintf(out, "  Private Key: %s\n", w.PrivateKey())
		fmt.Fprintln(out, "\nWARNING: Save your private key securely. Never share it with anyone!")
		return nil
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Check wallet balance",
	Long:  `Check the SOL balance of a wallet address. Without an address the treasury is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var pubKey solana.PublicKey
		if len(args) == 1 {
			if pubKey, err = solana.PublicKeyFromBase58(args[0]); err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
		} else {
			treasury, err := solsvc.LoadTreasury(cmd.Context(), cfg.Treasury)
			if err != nil {
				return err
			}
			pubKey = treasury.PublicKey()
		}

		client := newClient(cfg)
		defer client.Close()

		lamports, err := client.GetBalance(cmd.Context(), pubKey)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Address: %s\n", pubKey)
		fmt.Fprintf(out, "Balance: %s SOL (%d lamports)\n", fee.FromLamports(lamports), lamports)
		return nil
	},
}

var walletAirdropCmd = &cobra.Command{
	Use:   "airdrop [address]",
	Short: "Request a devnet or testnet airdrop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pubKey, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		amount, _ := cmd.Flags().GetString("sol")
		sol, err := decimal.NewFromString(amount)
		if err != nil || !sol.IsPositive() {
			return fmt.Errorf("invalid amount %q", amount)
		}

		lamports, err := fee.ToLamports(sol)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amount, err)
		}

		client := newClient(cfg)
		defer client.Close()

		sig, err := client.RequestAirdrop(cmd.Context(), pubKey, lamports)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Airdrop requested: %s\n", sig)
		return nil
	},
}

func init() {
	walletNewCmd.Flags().String("out", "", "write the keypair to this file")
	walletAirdropCmd.Flags().String("sol", "1", "amount of SOL to request")

	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletAirdropCmd)
}
