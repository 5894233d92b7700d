package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sweeper evicts aged-out pending approvals. Implemented by the approval
// registry.
type Sweeper interface {
	Sweep() int
}

// Orchestrator manages the recurring pipeline goroutines: market indexing,
// approval sweeping, and snapshot retention pruning.
type Orchestrator struct {
	indexer       *Indexer
	sweeper       Sweeper
	archiver      Archiver
	indexInterval time.Duration
	sweepInterval time.Duration
	retention     time.Duration
	logger        *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil, disabling
// retention pruning.
func NewOrchestrator(
	indexer *Indexer,
	sweeper Sweeper,
	archiver Archiver,
	indexInterval time.Duration,
	sweepInterval time.Duration,
	retentionDays int,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		indexer:       indexer,
		sweeper:       sweeper,
		archiver:      archiver,
		indexInterval: indexInterval,
		sweepInterval: sweepInterval,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
		logger:        logger.With(slog.String("component", "pipeline")),
	}
}

// Run starts all sub-loops as concurrent goroutines using an errgroup. Each
// goroutine respects ctx cancellation. If any goroutine returns a non-context
// error, the errgroup cancels the shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline starting",
		slog.Duration("index_interval", o.indexInterval),
		slog.Duration("sweep_interval", o.sweepInterval))

	g, ctx := errgroup.WithContext(ctx)

	// 1. Market indexer on ticker.
	g.Go(func() error {
		err := o.indexer.RunLoop(ctx, o.indexInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("indexer: %w", err)
	})

	// 2. Approval sweeper on ticker.
	g.Go(func() error {
		o.runSweeper(ctx)
		return nil
	})

	// 3. Snapshot retention pruning, once a day.
	if o.archiver != nil && o.retention > 0 {
		g.Go(func() error {
			o.runPruner(ctx)
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline stopped with error", slog.Any("error", err))
		return err
	}

	o.logger.Info("pipeline stopped cleanly")
	return nil
}

func (o *Orchestrator) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := o.sweeper.Sweep(); evicted > 0 {
				o.logger.Info("swept expired proposals", slog.Int("evicted", evicted))
			}
		}
	}
}

func (o *Orchestrator) runPruner(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-o.retention)
			deleted, err := o.archiver.Prune(ctx, cutoff)
			if err != nil {
				o.logger.Error("snapshot prune failed", slog.Any("error", err))
				continue
			}
			if deleted > 0 {
				o.logger.Info("pruned old snapshots", slog.Int("deleted", deleted))
			}
		}
	}
}
