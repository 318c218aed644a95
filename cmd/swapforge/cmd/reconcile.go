package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/swapforge/internal/reconcile"
	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/supply"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass",
	Long: `Settle requested tokens whose creation transaction is overdue and report
tokens stuck after supply was issued, then exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		ctx := cmd.Context()

		conn := storage.NewConnectionManager(&cfg.Database)
		repo, err := conn.Connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		client := newClient(cfg)
		defer client.Close()

		inspector := supply.NewManager(client).WithLogger(logger)
		report, err := reconcile.New(repo.TokenStates(), inspector, cfg.Reconcile).
			WithLogger(logger).
			RunOnce(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Promoted:  %d\n", report.Promoted)
		fmt.Fprintf(out, "Abandoned: %d\n", report.Abandoned)
		fmt.Fprintf(out, "Stuck:     %d\n", report.Stuck)
		fmt.Fprintf(out, "Failed:    %d\n", report.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
