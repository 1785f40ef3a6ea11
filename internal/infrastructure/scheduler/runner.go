// Package scheduler drives the periodic synchronization loops. One worker
// per marketplace runs push cycles and order polling on independent tickers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appsync "github.com/meschain/sync/internal/application/sync"
	"github.com/meschain/sync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Executor Interface
// ---------------------------------------------------------------------------

// SyncExecutor executes sync work for one marketplace. Implemented by the
// application sync service.
type SyncExecutor interface {
	// RunCycle pushes pending outbound work
	RunCycle(ctx context.Context, code integration.MarketplaceCode) (*appsync.CycleReport, error)

	// PullOrders polls the marketplace order listing since the given time
	PullOrders(ctx context.Context, code integration.MarketplaceCode, since time.Time) (*appsync.PullReport, error)
}

// ---------------------------------------------------------------------------
// RunnerConfig
// ---------------------------------------------------------------------------

// RunnerConfig holds configuration for the sync runner
type RunnerConfig struct {
	// Marketplaces are the marketplaces to run workers for
	Marketplaces []integration.MarketplaceCode
	// SyncInterval is how often each marketplace runs a push cycle
	SyncInterval time.Duration
	// OrderPullInterval is how often each marketplace polls for orders
	OrderPullInterval time.Duration
	// OrderLookback is the extra window added to each order poll so clock
	// skew and in-flight orders are never missed
	OrderLookback time.Duration
	// CycleTimeout bounds one push cycle or order poll
	CycleTimeout time.Duration
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		SyncInterval:      30 * time.Second,
		OrderPullInterval: 5 * time.Minute,
		OrderLookback:     10 * time.Minute,
		CycleTimeout:      10 * time.Minute,
	}
}

// Validate validates the configuration
func (c *RunnerConfig) Validate() error {
	if len(c.Marketplaces) == 0 {
		return ErrNoMarketplaces
	}
	if c.SyncInterval <= 0 || c.OrderPullInterval <= 0 || c.CycleTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.OrderLookback < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// Runner owns one worker goroutine per marketplace. Workers tick
// independently so one slow or rate-limited marketplace never delays the
// others.
type Runner struct {
	config   RunnerConfig
	executor SyncExecutor
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// lastPullMu guards per-marketplace order poll watermarks
	lastPullMu sync.Mutex
	lastPull   map[integration.MarketplaceCode]time.Time
}

// NewRunner creates a new sync runner
func NewRunner(config RunnerConfig, executor SyncExecutor, logger *zap.Logger) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config:   config,
		executor: executor,
		logger:   logger,
		lastPull: make(map[integration.MarketplaceCode]time.Time),
	}, nil
}

// Start starts one worker per marketplace
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, code := range r.config.Marketplaces {
		r.wg.Add(1)
		go r.worker(ctx, code)
	}

	r.logger.Info("Sync runner started",
		zap.Int("marketplaces", len(r.config.Marketplaces)),
		zap.Duration("sync_interval", r.config.SyncInterval),
		zap.Duration("order_pull_interval", r.config.OrderPullInterval),
	)
	return nil
}

// Stop gracefully stops the runner
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Sync runner stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Sync runner stop timed out")
		return ctx.Err()
	}
}

// TriggerCycle runs one push cycle immediately, outside the ticker. Used by
// the manual sync endpoint.
func (r *Runner) TriggerCycle(ctx context.Context, code integration.MarketplaceCode) (*appsync.CycleReport, error) {
	r.mu.Lock()
	running := r.isRunning
	r.mu.Unlock()
	if !running {
		return nil, ErrRunnerNotRunning
	}

	cycleCtx, cancel := context.WithTimeout(ctx, r.config.CycleTimeout)
	defer cancel()
	return r.executor.RunCycle(cycleCtx, code)
}

// worker runs the periodic loops for one marketplace
func (r *Runner) worker(ctx context.Context, code integration.MarketplaceCode) {
	defer r.wg.Done()

	r.logger.Debug("Sync worker started", zap.String("marketplace", code.String()))

	syncTicker := time.NewTicker(r.config.SyncInterval)
	defer syncTicker.Stop()
	pullTicker := time.NewTicker(r.config.OrderPullInterval)
	defer pullTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Sync worker stopping", zap.String("marketplace", code.String()))
			return
		case <-syncTicker.C:
			r.runCycle(ctx, code)
		case <-pullTicker.C:
			r.pullOrders(ctx, code)
		}
	}
}

// runCycle executes one push cycle with a timeout
func (r *Runner) runCycle(ctx context.Context, code integration.MarketplaceCode) {
	cycleCtx, cancel := context.WithTimeout(ctx, r.config.CycleTimeout)
	defer cancel()

	if _, err := r.executor.RunCycle(cycleCtx, code); err != nil {
		r.logger.Error("Sync cycle failed",
			zap.String("marketplace", code.String()),
			zap.Error(err),
		)
	}
}

// pullOrders polls the order listing from the last watermark minus lookback
func (r *Runner) pullOrders(ctx context.Context, code integration.MarketplaceCode) {
	now := time.Now()

	r.lastPullMu.Lock()
	since, ok := r.lastPull[code]
	r.lastPullMu.Unlock()
	if !ok {
		// First poll after startup covers one full pull interval
		since = now.Add(-r.config.OrderPullInterval)
	}
	since = since.Add(-r.config.OrderLookback)

	pullCtx, cancel := context.WithTimeout(ctx, r.config.CycleTimeout)
	defer cancel()

	if _, err := r.executor.PullOrders(pullCtx, code, since); err != nil {
		r.logger.Error("Order pull failed",
			zap.String("marketplace", code.String()),
			zap.Error(err),
		)
		// Keep the old watermark so the next poll re-covers this window
		return
	}

	r.lastPullMu.Lock()
	r.lastPull[code] = now
	r.lastPullMu.Unlock()
}
