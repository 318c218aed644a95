package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lugondev/swapforge/internal/common"
	"github.com/lugondev/swapforge/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swapforge",
	Short: "SwapForge - Token-2022 creation service",
	Long: `SwapForge builds Solana Token-2022 creation transactions for wallets,
mints their supply and finalizes their authorities.

It provides commands for:
- Running the HTTP API
- Treasury wallet management
- Fee quotes and transaction inspection
- Token lifecycle reconciliation`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.swapforge.yaml or $HOME/.swapforge.yaml)")
	rootCmd.PersistentFlags().String("rpc", "", "Solana RPC endpoint (overrides solana.rpc)")
	rootCmd.PersistentFlags().String("network", "", "Solana network (mainnet, devnet, testnet, localnet)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		"solana.rpc":     "rpc",
		"solana.network": "network",
		"log.level":      "log-level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag: %v\n", err)
		}
	}
}

// loadConfig reads the configuration with flags applied and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return common.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}
