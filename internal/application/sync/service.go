// Package sync implements the outbound synchronization engine. Each cycle
// reaps stale in-flight work, derives sync tasks from dirty mappings, and
// pushes them to the marketplace under its rate limit.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
	"github.com/meschain/sync/internal/infrastructure/ratelimit"
)

// Options tunes the sync engine
type Options struct {
	// BatchSize caps how many mappings a cycle claims per marketplace
	BatchSize int
	// Concurrency is how many workers push claimed mappings in parallel
	// within one cycle. The marketplace token bucket still paces the
	// aggregate call rate.
	Concurrency int
	// MaxAttempts is the attempt budget before a mapping is marked failed
	MaxAttempts int
	// MinBackoff is the base retry delay, doubled per attempt
	MinBackoff time.Duration
	// MaxBackoff caps the computed retry delay
	MaxBackoff time.Duration
	// InFlightTimeout is how long a claim may hold IN_FLIGHT before the
	// reaper returns it to the queue
	InFlightTimeout time.Duration
	// PushTimeout bounds a single adapter call
	PushTimeout time.Duration
}

// DefaultOptions returns sensible engine defaults
func DefaultOptions() Options {
	return Options{
		BatchSize:       50,
		Concurrency:     2,
		MaxAttempts:     5,
		MinBackoff:      5 * time.Second,
		MaxBackoff:      15 * time.Minute,
		InFlightTimeout: 5 * time.Minute,
		PushTimeout:     30 * time.Second,
	}
}

// normalize fills zero fields with defaults
func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = d.MinBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	if o.InFlightTimeout <= 0 {
		o.InFlightTimeout = d.InFlightTimeout
	}
	if o.PushTimeout <= 0 {
		o.PushTimeout = d.PushTimeout
	}
	return o
}

// CycleReport summarizes one sync cycle for one marketplace
type CycleReport struct {
	MarketplaceCode integration.MarketplaceCode `json:"marketplace_code"`
	Reaped          int                         `json:"reaped"`
	Claimed         int                         `json:"claimed"`
	Synced          int                         `json:"synced"`
	Retried         int                         `json:"retried"`
	Failed          int                         `json:"failed"`
	Skipped         int                         `json:"skipped"`
	StartedAt       time.Time                   `json:"started_at"`
	Duration        time.Duration               `json:"duration"`

	// mu guards the counters while cycle workers run in parallel
	mu sync.Mutex
}

// add increments one counter under the report lock
func (r *CycleReport) add(counter *int) {
	r.mu.Lock()
	*counter++
	r.mu.Unlock()
}

// Service orchestrates outbound synchronization
type Service struct {
	mappings integration.MappingRepository
	catalog  integration.CatalogService
	adapters integration.AdapterRegistry
	limiter  *ratelimit.Registry
	logger   *zap.Logger
	opts     Options

	// cursorMu guards the per-marketplace change cursors. A cursor is the
	// highest product version already examined for that marketplace; it
	// resets to zero on restart, which only costs a rescan of mappings that
	// are already synced.
	cursorMu sync.Mutex
	cursors  map[integration.MarketplaceCode]int64
}

// NewService creates a new sync service
func NewService(
	mappings integration.MappingRepository,
	catalog integration.CatalogService,
	adapters integration.AdapterRegistry,
	limiter *ratelimit.Registry,
	logger *zap.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		mappings: mappings,
		catalog:  catalog,
		adapters: adapters,
		limiter:  limiter,
		logger:   logger,
		opts:     opts.normalize(),
		cursors:  make(map[integration.MarketplaceCode]int64),
	}
}

// ---------------------------------------------------------------------------
// Cycle
// ---------------------------------------------------------------------------

// RunCycle executes one sync cycle for a marketplace: reap stale claims, mark
// dirty mappings, then claim and push due work. Individual task failures are
// recorded on their mappings and do not abort the cycle.
func (s *Service) RunCycle(ctx context.Context, code integration.MarketplaceCode) (*CycleReport, error) {
	adapter, err := s.adapters.Get(code)
	if err != nil {
		return nil, err
	}

	report := &CycleReport{MarketplaceCode: code, StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	reaped, err := s.ReapStale(ctx)
	if err != nil {
		return nil, err
	}
	report.Reaped = reaped

	if err := s.markDirty(ctx, code); err != nil {
		return nil, err
	}

	due, err := s.mappings.ListDue(ctx, code, time.Now(), s.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	// Push the claimed batch through a small worker pool. The token bucket
	// still bounds the aggregate call rate, and the claim transition keeps
	// workers off each other's mappings.
	workers := s.opts.Concurrency
	if workers > len(due) {
		workers = len(due)
	}
	jobs := make(chan *integration.Mapping)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for mapping := range jobs {
				s.processMapping(ctx, adapter, mapping, report)
			}
		}()
	}
	for _, mapping := range due {
		if ctx.Err() != nil {
			break
		}
		jobs <- mapping
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.logger.Info("sync cycle completed",
		zap.String("marketplace", code.String()),
		zap.Int("reaped", report.Reaped),
		zap.Int("claimed", report.Claimed),
		zap.Int("synced", report.Synced),
		zap.Int("retried", report.Retried),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", time.Since(report.StartedAt)))

	return report, nil
}

// ReapStale returns mappings stuck in IN_FLIGHT past the timeout to the
// pending queue. A stale claim means a worker died mid-push; the outcome of
// that push is unknown, so the work is retried and the adapter call must be
// idempotent.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.opts.InFlightTimeout)
	stale, err := s.mappings.ListStaleInFlight(ctx, cutoff, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, mapping := range stale {
		mapping.ScheduleRetry("sync abandoned in flight", 0, s.opts.MinBackoff, s.opts.MaxBackoff)
		err := s.mappings.Transition(ctx, mapping, integration.SyncStatusInFlight)
		if errors.Is(err, integration.ErrTransitionConflict) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		reaped++
		s.logger.Warn("reaped stale in-flight mapping",
			zap.String("mapping_id", mapping.ID.String()),
			zap.String("marketplace", mapping.MarketplaceCode.String()))
	}
	return reaped, nil
}

// markDirty walks recently changed products and flags their synced mappings
// back to pending. The cursor only advances past a product once its mapping
// is guaranteed to cover that version: a mapping another cycle holds in
// flight may settle at an older version, so its product stays behind the
// cursor and is re-examined next cycle.
func (s *Service) markDirty(ctx context.Context, code integration.MarketplaceCode) error {
	s.cursorMu.Lock()
	cursor := s.cursors[code]
	s.cursorMu.Unlock()

	scanFrom := cursor
	blocked := false
	for {
		changed, err := s.catalog.ListChangedProducts(ctx, scanFrom, s.opts.BatchSize)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			break
		}

		for _, product := range changed {
			if product.Version > scanFrom {
				scanFrom = product.Version
			}
			covered, err := s.dirtyProduct(ctx, code, product)
			if err != nil {
				return err
			}
			if !covered {
				blocked = true
			}
			if !blocked && product.Version > cursor {
				cursor = product.Version
			}
		}
		if len(changed) < s.opts.BatchSize {
			break
		}
	}

	s.cursorMu.Lock()
	if cursor > s.cursors[code] {
		s.cursors[code] = cursor
	}
	s.cursorMu.Unlock()
	return nil
}

// dirtyProduct ensures a pending mapping exists for one changed product. The
// returned flag reports whether the mapping now covers the product's version:
// pending, failed and conflicted mappings load a fresh snapshot when they
// eventually push, so they cover it; an in-flight mapping may be carrying an
// older snapshot, so it does not.
func (s *Service) dirtyProduct(ctx context.Context, code integration.MarketplaceCode, product *integration.ProductPayload) (bool, error) {
	mapping, err := s.mappings.FindByEntity(ctx, product.ID, integration.EntityTypeProduct, code)
	if errors.Is(err, shared.ErrNotFound) {
		mapping, err = integration.NewMapping(product.ID, integration.EntityTypeProduct, code)
		if err != nil {
			return false, err
		}
		err = s.mappings.Create(ctx, mapping)
		if errors.Is(err, shared.ErrAlreadyExists) {
			// Another worker created it concurrently; it starts pending
			return true, nil
		}
		return err == nil, err
	}
	if err != nil {
		return false, err
	}

	switch mapping.SyncStatus {
	case integration.SyncStatusSynced:
		if !mapping.NeedsSync(product.Version) {
			return true, nil
		}
	case integration.SyncStatusInFlight:
		return false, nil
	default:
		// Pending waits its turn, failed and conflicted wait for an operator;
		// all of them push the latest snapshot when they run
		return true, nil
	}

	mapping.SyncStatus = integration.SyncStatusPending
	err = s.mappings.Transition(ctx, mapping, integration.SyncStatusSynced)
	if errors.Is(err, integration.ErrTransitionConflict) {
		// Status moved underneath us; re-examine next cycle
		return false, nil
	}
	return err == nil, err
}

// ---------------------------------------------------------------------------
// Task Execution
// ---------------------------------------------------------------------------

// processMapping claims one mapping, executes its task, and records the
// outcome. All claim and release writes go through the compare-and-set
// transition so concurrent workers never double-push.
func (s *Service) processMapping(ctx context.Context, adapter integration.Adapter, mapping *integration.Mapping, report *CycleReport) {
	task, err := s.buildTask(ctx, mapping)
	if err != nil {
		s.logger.Error("building sync task",
			zap.String("mapping_id", mapping.ID.String()),
			zap.Error(err))
		report.add(&report.Skipped)
		return
	}
	if task == nil {
		// Nothing newer than the last push; settle the mapping
		mapping.MarkSynced(mapping.LastSyncedVersion)
		if err := s.mappings.Transition(ctx, mapping, integration.SyncStatusPending); err != nil && !errors.Is(err, integration.ErrTransitionConflict) {
			s.logger.Error("settling clean mapping", zap.Error(err))
		}
		report.add(&report.Skipped)
		return
	}

	// Claim
	mapping.SyncStatus = integration.SyncStatusInFlight
	mapping.Touch()
	err = s.mappings.Transition(ctx, mapping, integration.SyncStatusPending)
	if errors.Is(err, integration.ErrTransitionConflict) {
		report.add(&report.Skipped)
		return
	}
	if err != nil {
		s.logger.Error("claiming mapping", zap.String("mapping_id", mapping.ID.String()), zap.Error(err))
		report.add(&report.Skipped)
		return
	}
	report.add(&report.Claimed)

	bucket := s.limiter.Bucket(mapping.MarketplaceCode)
	if err := bucket.Acquire(ctx); err != nil {
		// Shutdown while waiting for a token; the reaper will reclaim
		s.release(ctx, mapping, func(m *integration.Mapping) {
			m.ScheduleRetry("rate limit wait aborted", 0, s.opts.MinBackoff, s.opts.MaxBackoff)
		})
		report.add(&report.Retried)
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, s.opts.PushTimeout)
	pushErr := s.executeTask(pushCtx, adapter, task)
	cancel()

	s.settle(ctx, bucket, mapping, task, pushErr, report)
}

// settle releases an in-flight mapping according to the push outcome
func (s *Service) settle(ctx context.Context, bucket *ratelimit.Bucket, mapping *integration.Mapping, task *integration.SyncTask, pushErr error, report *CycleReport) {
	switch {
	case pushErr == nil:
		s.release(ctx, mapping, func(m *integration.Mapping) {
			m.MarkSynced(task.Version)
		})
		report.add(&report.Synced)

	// The attempt budget bounds every retry class, rate limits included; a
	// marketplace that answers 429 forever must not pin the mapping in the
	// queue indefinitely.
	case integration.IsFatal(pushErr) || mapping.Attempts+1 >= s.opts.MaxAttempts:
		if errors.Is(pushErr, integration.ErrRateLimited) {
			retryAfter, _ := integration.RetryAfterOf(pushErr)
			bucket.Penalize(retryAfter)
		}
		s.release(ctx, mapping, func(m *integration.Mapping) {
			m.MarkFailed(pushErr.Error())
		})
		report.add(&report.Failed)
		s.logger.Error("sync task failed permanently",
			zap.String("mapping_id", mapping.ID.String()),
			zap.String("marketplace", mapping.MarketplaceCode.String()),
			zap.Int("attempts", mapping.Attempts),
			zap.Error(pushErr))

	case errors.Is(pushErr, integration.ErrRateLimited):
		retryAfter, _ := integration.RetryAfterOf(pushErr)
		bucket.Penalize(retryAfter)
		s.release(ctx, mapping, func(m *integration.Mapping) {
			m.ScheduleRetry(pushErr.Error(), retryAfter, s.opts.MinBackoff, s.opts.MaxBackoff)
		})
		report.add(&report.Retried)
		s.logger.Warn("marketplace rate limited",
			zap.String("marketplace", mapping.MarketplaceCode.String()),
			zap.Duration("retry_after", retryAfter))

	default:
		s.release(ctx, mapping, func(m *integration.Mapping) {
			m.ScheduleRetry(pushErr.Error(), 0, s.opts.MinBackoff, s.opts.MaxBackoff)
		})
		report.add(&report.Retried)
		s.logger.Warn("sync task will retry",
			zap.String("mapping_id", mapping.ID.String()),
			zap.Int("attempts", mapping.Attempts),
			zap.Error(pushErr))
	}
}

// release applies an outcome mutation and transitions out of IN_FLIGHT. A
// transition conflict means the reaper got there first; the outcome is
// dropped and the work repeats, which is safe because pushes are idempotent.
func (s *Service) release(ctx context.Context, mapping *integration.Mapping, mutate func(*integration.Mapping)) {
	mutate(mapping)
	err := s.mappings.Transition(ctx, mapping, integration.SyncStatusInFlight)
	if err != nil && !errors.Is(err, integration.ErrTransitionConflict) {
		s.logger.Error("releasing mapping",
			zap.String("mapping_id", mapping.ID.String()),
			zap.Error(err))
	}
}

// buildTask loads the entity snapshot and decides what to push. Returns nil
// when the snapshot is not newer than the last synced version.
func (s *Service) buildTask(ctx context.Context, mapping *integration.Mapping) (*integration.SyncTask, error) {
	switch mapping.EntityType {
	case integration.EntityTypeProduct:
		product, err := s.catalog.GetProduct(ctx, mapping.EntityID)
		if err != nil {
			return nil, err
		}
		if !mapping.NeedsSync(product.Version) {
			return nil, nil
		}
		return &integration.SyncTask{
			Mapping:   mapping,
			Operation: productOperation(mapping, product),
			Version:   product.Version,
			Product:   product,
		}, nil

	case integration.EntityTypeOrder:
		order, err := s.catalog.GetOrder(ctx, mapping.EntityID)
		if err != nil {
			return nil, err
		}
		if !mapping.NeedsSync(order.Version) {
			return nil, nil
		}
		return &integration.SyncTask{
			Mapping:   mapping,
			Operation: integration.TaskOperationUpdateOrderStatus,
			Version:   order.Version,
			Order:     order,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported entity type %s", mapping.EntityType)
	}
}

// productOperation picks the cheapest push that covers the dirty aspects
func productOperation(mapping *integration.Mapping, product *integration.ProductPayload) integration.TaskOperation {
	if mapping.ExternalID == "" {
		return integration.TaskOperationCreate
	}
	switch {
	case product.PriceChanged && !product.StockChanged:
		return integration.TaskOperationUpdatePrice
	case product.StockChanged && !product.PriceChanged:
		return integration.TaskOperationUpdateStock
	default:
		// Both aspects or a broader edit changed; push the full listing
		return integration.TaskOperationCreate
	}
}

// executeTask performs the adapter call for one task
func (s *Service) executeTask(ctx context.Context, adapter integration.Adapter, task *integration.SyncTask) error {
	mapping := task.Mapping

	switch task.Operation {
	case integration.TaskOperationCreate:
		result, err := adapter.UpsertProduct(ctx, task.Product.Push(), mapping.ExternalID)
		if err != nil {
			return err
		}
		if mapping.ExternalID == "" {
			if err := mapping.LinkExternal(result.ExternalID); err != nil {
				return err
			}
		}
		return nil

	case integration.TaskOperationUpdatePrice:
		return adapter.UpdatePrice(ctx, mapping.ExternalID, task.Product.Price)

	case integration.TaskOperationUpdateStock:
		return adapter.UpdateStock(ctx, mapping.ExternalID, task.Product.Quantity)

	case integration.TaskOperationUpdateOrderStatus:
		return adapter.UpdateOrderStatus(ctx, mapping.ExternalID, task.Order.Status, task.Order.Shipment)

	default:
		return fmt.Errorf("unsupported task operation %s", task.Operation)
	}
}

// ---------------------------------------------------------------------------
// Management Operations
// ---------------------------------------------------------------------------

// DirtyOrder flags an order mapping back to pending after a local status
// change so the next cycle pushes the new status to the marketplace. Orders
// without a mapping are local-only and are left alone.
func (s *Service) DirtyOrder(ctx context.Context, orderID uuid.UUID, code integration.MarketplaceCode, version int64) error {
	mapping, err := s.mappings.FindByEntity(ctx, orderID, integration.EntityTypeOrder, code)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	switch mapping.SyncStatus {
	case integration.SyncStatusSynced:
		if !mapping.NeedsSync(version) {
			return nil
		}
	case integration.SyncStatusInFlight:
		// A push in flight may settle at an older version and swallow this
		// change; tell the caller to retry once the claim is released
		return integration.ErrTransitionConflict
	default:
		// Pending, failed and conflicted mappings push the latest snapshot
		// when they eventually run
		return nil
	}

	mapping.SyncStatus = integration.SyncStatusPending
	return s.mappings.Transition(ctx, mapping, integration.SyncStatusSynced)
}

// RetryMapping requeues a failed or conflicted mapping for an immediate retry
func (s *Service) RetryMapping(ctx context.Context, id uuid.UUID) (*integration.Mapping, error) {
	mapping, err := s.mappings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mapping.Requeue(); err != nil {
		return nil, err
	}
	if err := s.mappings.Update(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// Stats returns per-status mapping counts for one marketplace
func (s *Service) Stats(ctx context.Context, code integration.MarketplaceCode) (*integration.MappingStats, error) {
	if !code.IsValid() {
		return nil, integration.ErrMarketplaceNotConfigured
	}
	return s.mappings.Stats(ctx, code)
}

// ListMappings returns mappings filtered by status with pagination
func (s *Service) ListMappings(ctx context.Context, code integration.MarketplaceCode, status integration.SyncStatus, page, pageSize int) ([]*integration.Mapping, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return s.mappings.ListByStatus(ctx, code, status, (page-1)*pageSize, pageSize)
}
