package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lugondev/swapforge/internal/api"
	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/errors"
	"github.com/lugondev/swapforge/internal/fee"
	"github.com/lugondev/swapforge/internal/metadata"
	"github.com/lugondev/swapforge/internal/metrics"
	"github.com/lugondev/swapforge/internal/rate"
	"github.com/lugondev/swapforge/internal/reconcile"
	solsvc "github.com/lugondev/swapforge/internal/solana"
	"github.com/lugondev/swapforge/internal/storage"
	"github.com/lugondev/swapforge/internal/supply"
	"github.com/lugondev/swapforge/internal/tokenflow"
	"github.com/lugondev/swapforge/internal/txbuilder"
	"github.com/lugondev/swapforge/internal/walletrecord"

	// storage backends register themselves with the storage factory
	_ "github.com/lugondev/swapforge/internal/storage/memory"
	_ "github.com/lugondev/swapforge/internal/storage/mongo"
	_ "github.com/lugondev/swapforge/internal/storage/mysql"
	_ "github.com/lugondev/swapforge/internal/storage/postgres"
)

const logMetricsFlushInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API together with the lifecycle reconciler.

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, metricsHandler := newMetrics(ctx, cfg, logger)
	defer m.Shutdown(context.Background())

	conn := storage.NewConnectionManager(&cfg.Database)
	repo, err := conn.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := newClient(cfg)
	defer client.Close()

	treasury, err := solsvc.LoadTreasury(ctx, cfg.Treasury)
	if err != nil {
		if !errors.Is(err, errors.ErrTreasuryNotConfigured) {
			return err
		}
		logger.Warn("treasury not configured, token creation requests will be rejected")
	} else {
		logger.Info("treasury loaded", "public_key", treasury.PublicKey())
	}

	fees, err := fee.NewSchedule(cfg.Fees)
	if err != nil {
		return err
	}

	builder := txbuilder.NewBuilder(client, fees,
		txbuilder.WithTreasury(treasury),
		txbuilder.WithProduction(cfg.IsProduction()),
		txbuilder.WithMetrics(m),
	).WithLogger(logger)

	manager := supply.NewManager(client,
		supply.WithTreasury(treasury),
		supply.WithScaleMode(cfg.Supply.ScaleMode),
		supply.WithMetrics(m),
	).WithLogger(logger)

	records := walletrecord.NewService(repo).WithLogger(logger)

	flow := tokenflow.NewFlow(builder, manager, records, repo.TokenStates(),
		tokenflow.WithMetrics(m),
	).WithLogger(logger)

	store, err := metadata.NewStore(ctx, cfg.Uploader)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	uploader := metadata.NewUploader(store,
		metadata.WithPrefix(cfg.Uploader.Prefix),
		metadata.WithLimits(cfg.Uploader.MaxLogoBytes, cfg.Uploader.LogoMaxSide),
		metadata.WithSourceLimit(cfg.Uploader.SourceMaxSide),
		metadata.WithMetrics(m),
	).WithLogger(logger)

	deps := api.Deps{
		Tokens:            flow,
		Payments:          builder,
		Wallets:           records,
		Metadata:          uploader,
		Health:            repo,
		Metrics:           m,
		MetricsHandler:    metricsHandler,
		LogoMaxSide:       cfg.Uploader.LogoMaxSide,
		LogoSourceMaxSide: cfg.Uploader.SourceMaxSide,
	}
	if ms, ok := store.(*metadata.MemoryStore); ok {
		deps.Uploads = ms
	}
	if cfg.RateLimit.Enabled {
		deps.Limiter = rate.NewLocalLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	if cfg.Reconcile.Enabled {
		reconciler := reconcile.New(repo.TokenStates(), manager, cfg.Reconcile,
			reconcile.WithMetrics(m),
		).WithLogger(logger)
		if err := reconciler.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			reconciler.Stop(stopCtx)
		}()
	}

	logger.Info("starting swapforge",
		"environment", cfg.Environment,
		"network", cfg.Solana.Network,
		"database", cfg.Database.Type,
		"uploader", cfg.Uploader.Type,
		"metrics", cfg.Metrics.Backend,
	)
	return api.NewServer(deps, cfg.Server).WithLogger(logger).Serve(ctx)
}

func newClient(cfg *config.Config) *solsvc.Client {
	return solsvc.NewClient(cfg.Solana.GetRPCEndpoint(),
		solsvc.WithWSEndpoint(cfg.Solana.GetWSEndpoint()),
		solsvc.WithCommitment(cfg.Solana.Commitment),
		solsvc.WithTimeout(cfg.Solana.RequestTimeout()),
	)
}

// newMetrics builds a collection of the configured backends and, when
// Prometheus is among them, the handler serving it.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metrics.Metrics, http.Handler) {
	var handler http.Handler
	collection := metrics.NewCollection()
	for _, backend := range cfg.Metrics.Backends() {
		switch backend {
		case "prometheus":
			p := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
			collection.Add(p)
			handler = p.Handler()
		case "log":
			lm := metrics.NewLogMetrics(logger)
			go func() {
				ticker := time.NewTicker(logMetricsFlushInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						_ = lm.Flush(ctx)
					}
				}
			}()
			collection.Add(lm)
		}
	}

	var m metrics.Metrics = collection
	if collection.Len() == 0 {
		m = metrics.NewNoopMetrics()
	}
	if err := m.Initialize(ctx); err != nil {
		logger.Warn("metrics backend not initialized", "error", fmt.Sprint(err))
	}
	return m, handler
}
