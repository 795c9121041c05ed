package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbbot/audit"
	"github.com/michaelpento.lv/arbbot/bundle"
	"github.com/michaelpento.lv/arbbot/config"
	"github.com/michaelpento.lv/arbbot/flashloan"
	"github.com/michaelpento.lv/arbbot/jito"
	"github.com/michaelpento.lv/arbbot/ledger"
	"github.com/michaelpento.lv/arbbot/quote"
	"github.com/michaelpento.lv/arbbot/registry"
	"github.com/michaelpento.lv/arbbot/scanner"
	"github.com/michaelpento.lv/arbbot/simulator"
	"github.com/michaelpento.lv/arbbot/strategies/arbitrage"
	"github.com/michaelpento.lv/arbbot/tip"
	"github.com/michaelpento.lv/arbbot/utils/metrics"
	"github.com/michaelpento.lv/arbbot/utils/monitor"
)

const shutdownTimeout = 5 * time.Second

// Bot owns every long-lived component of the arbitrage bot
type Bot struct {
	cfg      *config.Config
	registry *registry.Registry
	scanner  *scanner.Scanner
	ledger   *ledger.Client
	audit    audit.Sink
	monitor  *monitor.SystemMonitor
	canTrade bool
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// New wires the bot. Without a wallet key in the environment the bot can
// scan but not execute.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	reg, err := loadRegistry(cfg.RegistryFile)
	if err != nil {
		return nil, err
	}
	relay, ok := reg.Relay(cfg.Relay.Name)
	if !ok {
		return nil, fmt.Errorf("unknown relay %s", cfg.Relay.Name)
	}

	set := metrics.Default()

	// quoting
	var prices scanner.Prices
	var rates quote.RateSource
	if cfg.Aggregator.PriceURL != "" {
		book := quote.NewPriceBook(
			quote.NewPriceClient(cfg.Aggregator.PriceURL, cfg.Aggregator.Timeout),
			cfg.Aggregator.PriceTTL,
			cfg.Aggregator.AssetDecimals,
			logger.Named("prices"),
		)
		prices, rates = book, book
	}
	strategy := cfg.Strategy
	chainer := quote.NewChainer(
		quote.NewClient(cfg.Aggregator, logger.Named("aggregator")),
		quote.NewFallback(cfg.Aggregator.FallbackFee, rates),
		quote.NewCircuitBreaker(cfg.Aggregator.CircuitBreaker, set.Quote.BreakerTrips, logger.Named("breaker")),
		cfg.Aggregator,
		quote.Bounds{MinLegs: strategy.MinLegs, MaxLegs: strategy.MaxLegs, MaxSlippageBps: strategy.MaxSlippageBps},
		set.Quote,
		logger.Named("chainer"),
	)

	cache, err := arbitrage.NewCache(cfg.Scanner.CacheSize, cfg.Scanner.CacheTTL)
	if err != nil {
		return nil, err
	}

	// execution
	ledgerClient, err := ledger.Dial(ctx, cfg.Ledger, logger.Named("ledger"))
	if err != nil {
		return nil, err
	}
	builder, err := bundle.NewBuilder(
		flashloan.NewManager(reg, set.Loans, logger.Named("flashloan")),
		bundle.NewRouterEncoder(),
		relay,
		strategy.MaxSlippageBps,
		logger.Named("builder"),
	)
	if err != nil {
		ledgerClient.Close()
		return nil, err
	}
	relayClient := jito.NewClient(relay, cfg.Relay.Timeout, logger.Named("relay"))

	sink, err := openAudit(ctx, cfg.Audit, logger)
	if err != nil {
		ledgerClient.Close()
		return nil, err
	}

	deps := scanner.Deps{
		Registry:  reg,
		Quoter:    chainer,
		Prices:    prices,
		Evaluator: arbitrage.NewEvaluator(logger.Named("evaluator")),
		Cache:     cache,
		Tips:      tip.NewCalculator(strategy.Tip, set.Tips, logger.Named("tip")),
		Builder:   builder,
		Ledger:    ledgerClient,
		Submitter: bundle.NewSubmitter(relayClient, cfg.Relay, bundle.RealClock(), logger.Named("submitter")),
		Audit:     sink,
		Metrics:   set,
		Logger:    logger,
	}
	if cfg.Simulation.Enabled {
		deps.Simulator = simulator.NewSimulator(ledgerClient, cfg.Simulation.Timeout, logger.Named("simulator"))
	}

	canTrade := false
	if signer, err := ledger.LoadSigner(config.EnvPrivateKey); err == nil {
		deps.Signer = signer
		canTrade = true
		logger.Info("Loaded wallet", zap.Stringer("payer", signer.PublicKey()))
	} else {
		logger.Warn("No usable wallet key, running scan only", zap.Error(err))
	}

	sc, err := scanner.New(cfg.Scanner, strategy, deps)
	if err != nil {
		_ = sink.Close()
		ledgerClient.Close()
		return nil, err
	}

	mon := monitor.NewSystemMonitor(prometheus.DefaultRegisterer, metrics.DefaultNamespace,
		monitor.DefaultInterval, cache.Len, logger.Named("monitor"))

	return &Bot{
		cfg:      cfg,
		registry: reg,
		scanner:  sc,
		ledger:   ledgerClient,
		audit:    sink,
		monitor:  mon,
		canTrade: canTrade,
		logger:   logger,
	}, nil
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default(), nil
	}
	return registry.Load(path)
}

func openAudit(ctx context.Context, cfg config.AuditConfig, logger *zap.Logger) (audit.Sink, error) {
	var sinks audit.MultiSink
	if cfg.PostgresDSN != "" {
		pg, err := audit.NewPostgresSink(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
		logger.Info("Auditing to postgres")
	}
	if cfg.RedisURL != "" {
		rs, err := audit.NewRedisSink(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, rs)
		logger.Info("Publishing audit events", zap.String("channel", cfg.RedisChannel))
	}
	if len(sinks) == 0 {
		return audit.NopSink{}, nil
	}
	return sinks, nil
}

// Scanner exposes the scan and execution API
func (b *Bot) Scanner() *scanner.Scanner {
	return b.scanner
}

// Registry returns the provider and relay catalogue in use
func (b *Bot) Registry() *registry.Registry {
	return b.registry
}

// Start runs the scanner and, if enabled, the metrics endpoint until ctx
// is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.Scanner.AutoExecute.Enabled && !b.canTrade {
		return errors.New("auto execute requires " + config.EnvPrivateKey)
	}
	b.logger.Info("Starting arbitrage bot...")

	if b.cfg.Metrics.Enabled {
		b.serveMetrics(ctx)
	}

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.monitor.Run(ctx)
	}()
	go func() {
		defer b.wg.Done()
		if err := b.scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("Scanner stopped", zap.Error(err))
		}
	}()
	return nil
}

func (b *Bot) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              b.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.logger.Info("Serving metrics", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		defer b.wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Stop waits for the running components and releases connections. The
// context passed to Start must already be cancelled.
func (b *Bot) Stop() {
	b.logger.Info("Stopping arbitrage bot...")
	b.wg.Wait()
	if err := b.audit.Close(); err != nil {
		b.logger.Warn("Failed to close audit sinks", zap.Error(err))
	}
	b.ledger.Close()
}
