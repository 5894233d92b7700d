package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/kalshibot/internal/approval"
	"github.com/alanyoungcy/kalshibot/internal/executor"
	"github.com/alanyoungcy/kalshibot/internal/metrics"
	"github.com/alanyoungcy/kalshibot/internal/pipeline"
	"github.com/alanyoungcy/kalshibot/internal/proposal"
	"github.com/alanyoungcy/kalshibot/internal/server"
	"github.com/alanyoungcy/kalshibot/internal/server/handler"
	"github.com/alanyoungcy/kalshibot/internal/server/ws"
	"github.com/alanyoungcy/kalshibot/internal/service"
)

// workflow bundles the approval-workflow services shared by the serve and
// full modes.
type workflow struct {
	registry  *approval.Registry
	marketSvc *service.MarketService
	tradeSvc  *service.TradeService
	portfolio *service.PortfolioService
	metrics   *metrics.Metrics
}

// buildWorkflow constructs the registry, services, and metrics from the wired
// dependencies.
func (a *App) buildWorkflow(deps *Dependencies) *workflow {
	registry := approval.NewRegistry(a.logger,
		approval.WithTokenTTL(a.cfg.Trading.TokenTTL.Duration),
	)

	marketSvc := service.NewMarketService(deps.MarketStore, deps.MarketCache, a.logger)
	builder := proposal.NewBuilder(registry, a.cfg.Trading.MaxNotionalUSD, a.logger)

	m := metrics.New(registry, func() int64 {
		n, err := marketSvc.Count(context.Background())
		if err != nil {
			return 0
		}
		return n
	})

	exec := executor.NewExecutor(registry, deps.Kalshi, a.logger).WithLatencyObserver(m)

	tradeSvc := service.NewTradeService(
		builder, registry, exec,
		deps.ExecutionStore, deps.AuditStore, deps.SignalBus, deps.Notifier,
		a.logger,
	).WithMetrics(m).WithAnalyzer(deps.Agent, marketSvc)

	portfolioSvc := service.NewPortfolioService(deps.Kalshi, marketSvc, a.logger)

	return &workflow{
		registry:  registry,
		marketSvc: marketSvc,
		tradeSvc:  tradeSvc,
		portfolio: portfolioSvc,
		metrics:   m,
	}
}

// buildServer constructs the HTTP server with all handlers attached.
func (a *App) buildServer(deps *Dependencies, wf *workflow, hub *ws.Hub) *server.Server {
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Markets:    handler.NewMarketHandler(wf.marketSvc, a.logger),
		Trades:     handler.NewTradeHandler(wf.tradeSvc, a.logger),
		Portfolio:  handler.NewPortfolioHandler(wf.portfolio, a.logger),
		Conviction: handler.NewConvictionHandler(wf.tradeSvc, a.logger),
	}

	return server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIToken:    a.cfg.Server.ApiToken,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, hub, wf.metrics.Handler(), deps.RateLimiter, a.logger)
}

// buildIndexer constructs the market indexer and its optional snapshot
// archiver.
func (a *App) buildIndexer(deps *Dependencies, wf *workflow) (*pipeline.Indexer, pipeline.Archiver) {
	var archiver pipeline.Archiver
	if deps.Snapshotter != nil {
		archiver = deps.Snapshotter
	}

	indexer := pipeline.NewIndexer(
		deps.Kalshi, wf.marketSvc, deps.RateLimiter, archiver,
		pipeline.IndexerConfig{
			MarketStatus:    a.cfg.Pipeline.MarketStatus,
			PageSize:        a.cfg.Pipeline.PageSize,
			MaxPages:        a.cfg.Pipeline.MaxPages,
			SnapshotEnabled: a.cfg.Pipeline.SnapshotEnabled,
		},
		a.logger,
	)
	return indexer, archiver
}

// buildPipeline constructs the market indexing orchestrator.
func (a *App) buildPipeline(deps *Dependencies, wf *workflow) *pipeline.Orchestrator {
	indexer, archiver := a.buildIndexer(deps, wf)

	return pipeline.NewOrchestrator(
		indexer, wf.registry, archiver,
		a.cfg.Pipeline.IndexInterval.Duration,
		a.cfg.Trading.SweepInterval.Duration,
		a.cfg.Pipeline.ArchiveRetentionDays,
		a.logger,
	)
}

// announce broadcasts a lifecycle notice to every configured sender,
// bypassing the per-event filter. Delivery failures are logged, never fatal.
func (a *App) announce(ctx context.Context, deps *Dependencies, title, message string) {
	if deps.Notifier == nil {
		return
	}
	if err := deps.Notifier.NotifyAll(ctx, title, message); err != nil {
		a.logger.WarnContext(ctx, "lifecycle notification failed",
			slog.String("title", title),
			slog.Any("error", err))
	}
}

// ServeMode runs the HTTP API, the WebSocket hub, and the approval sweeper
// without the market indexing pipeline.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")
	a.announce(ctx, deps, "kalshibot online", "serve mode started")
	defer a.announce(context.WithoutCancel(ctx), deps, "kalshibot offline", "serve mode stopped")

	wf := a.buildWorkflow(deps)
	hub := ws.NewHub(deps.SignalBus, a.logger)
	srv := a.buildServer(deps, wf, hub)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.runSweeper(ctx, wf.registry)
	})

	return a.runServer(ctx, g, srv)
}

// IndexMode runs a single market index refresh and exits. Suited for cron.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode")

	wf := a.buildWorkflow(deps)
	indexer, _ := a.buildIndexer(deps, wf)

	count, err := indexer.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: index pass: %w", err)
	}
	a.logger.InfoContext(ctx, "index pass complete", slog.Int("markets", count))
	return nil
}

// FullMode runs the HTTP API, the WebSocket hub, and the indexing pipeline
// together. When the pipeline is disabled only the approval sweeper runs
// alongside the API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	a.announce(ctx, deps, "kalshibot online", "full mode started")
	defer a.announce(context.WithoutCancel(ctx), deps, "kalshibot offline", "full mode stopped")

	wf := a.buildWorkflow(deps)
	hub := ws.NewHub(deps.SignalBus, a.logger)
	srv := a.buildServer(deps, wf, hub)

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Pipeline.Enabled {
		g.Go(func() error {
			err := a.buildPipeline(deps, wf).Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	} else {
		g.Go(func() error {
			return a.runSweeper(ctx, wf.registry)
		})
	}

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	return a.runServer(ctx, g, srv)
}

// runServer starts srv in the errgroup and shuts it down gracefully when the
// context is cancelled.
func (a *App) runServer(ctx context.Context, g *errgroup.Group, srv *server.Server) error {
	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// runSweeper evicts expired proposals on a fixed interval.
func (a *App) runSweeper(ctx context.Context, registry *approval.Registry) error {
	interval := a.cfg.Trading.SweepInterval.Duration
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if evicted := registry.Sweep(); evicted > 0 {
				a.logger.Info("swept expired proposals", slog.Int("evicted", evicted))
			}
		}
	}
}
