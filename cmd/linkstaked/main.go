package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"linkstake/config"
	"linkstake/core/events"
	"linkstake/core/types"
	"linkstake/native/bank"
	"linkstake/native/stakes"
	"linkstake/observability/logging"
	"linkstake/observability/metrics"
	"linkstake/observability/otel"
	"linkstake/rpc"
	"linkstake/storage"
)

const genesisMarkerKey = "meta/genesisApplied"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("linkstaked", cfg.Environment, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "linkstaked",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown failed", "error", err)
			}
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := stakes.NewLedger(db)
	initialParams := &stakes.Params{
		MinStake:            cfg.Params.MinStake(),
		MaxStake:            cfg.Params.MaxStake(),
		RewardMultiplierBps: cfg.Params.RewardMultiplierBps,
		SlashPenaltyBps:     cfg.Params.SlashPenaltyBps,
		LockDuration:        cfg.Params.LockDurationSeconds,
	}
	if err := ledger.Initialize(cfg.OwnerAddress(), initialParams); err != nil {
		logger.Error("failed to initialise ledger", "error", err)
		os.Exit(1)
	}

	book := bank.NewBook(db)
	if err := seedGenesis(db, book, cfg, logger); err != nil {
		logger.Error("failed to seed genesis balances", "error", err)
		os.Exit(1)
	}

	engine := stakes.NewEngine(ledger, book)
	server := rpc.NewServer(engine, logger, rpc.Config{
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
	})

	stakesMetrics := metrics.Stakes()
	engine.SetEmitter(events.MultiEmitter{
		server.Hub(),
		metricsEmitter(stakesMetrics),
		events.EmitterFunc(func(evt events.Event) {
			logger.Info("ledger event", "type", evt.EventType())
		}),
	})

	go pollTotals(ctx, engine, stakesMetrics, logger)

	var handler http.Handler = server.Handler()
	if cfg.Telemetry.Enabled && cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(handler, "rpc")
	}
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc server shutdown failed", "error", err)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "linkstake.db"))
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

// seedGenesis funds the configured dev-network balances exactly once; a
// marker key keeps restarts from double-funding.
func seedGenesis(db storage.Database, book *bank.Book, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Genesis) == 0 {
		return nil
	}
	applied, err := db.Has([]byte(genesisMarkerKey))
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for _, seed := range cfg.Genesis {
		addr, amount, err := seed.Parse()
		if err != nil {
			return err
		}
		if err := book.Credit(addr, amount); err != nil {
			return err
		}
		logger.Info("seeded genesis balance", "address", seed.Address, "amount", seed.Amount)
	}
	return db.Put([]byte(genesisMarkerKey), []byte("1"))
}

func metricsEmitter(m *metrics.StakesMetrics) events.EmitterFunc {
	return func(evt events.Event) {
		switch evt.EventType() {
		case stakes.EventTypeStakeCreated:
			m.ObserveCreated()
		case stakes.EventTypeStakeResolved:
			outcome := "failed"
			if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
				if payload := carrier.Event(); payload != nil && payload.Attributes["successful"] == "true" {
					outcome = "successful"
				}
			}
			m.ObserveResolved(outcome)
		case stakes.EventTypeStakeSlashed:
			m.ObserveSlashed()
		case stakes.EventTypeStakeWithdrawn:
			m.ObserveWithdrawn()
		case stakes.EventTypeRewardsClaimed:
			m.ObserveRewardsClaimed()
		}
	}
}

// pollTotals mirrors the ledger aggregates into gauges. The engine emits
// inside its own lock, so gauge refreshes poll from outside instead of
// reading back through the emitter path.
func pollTotals(ctx context.Context, engine *stakes.Engine, m *metrics.StakesMetrics, logger *slog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			totals, err := engine.Totals()
			if err != nil {
				logger.Warn("failed to refresh totals gauges", "error", err)
				continue
			}
			m.SetTotals(totals.TotalActiveStaked, totals.RewardsReserve)
		}
	}
}
