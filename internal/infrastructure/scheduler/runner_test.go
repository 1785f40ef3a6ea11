package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsync "github.com/meschain/sync/internal/application/sync"
	"github.com/meschain/sync/internal/domain/integration"
)

// recordingExecutor counts cycle and pull invocations per marketplace
type recordingExecutor struct {
	mu     sync.Mutex
	cycles map[integration.MarketplaceCode]int
	pulls  map[integration.MarketplaceCode]int
	sinces []time.Time
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{
		cycles: make(map[integration.MarketplaceCode]int),
		pulls:  make(map[integration.MarketplaceCode]int),
	}
}

func (e *recordingExecutor) RunCycle(ctx context.Context, code integration.MarketplaceCode) (*appsync.CycleReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles[code]++
	return &appsync.CycleReport{MarketplaceCode: code}, nil
}

func (e *recordingExecutor) PullOrders(ctx context.Context, code integration.MarketplaceCode, since time.Time) (*appsync.PullReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pulls[code]++
	e.sinces = append(e.sinces, since)
	return &appsync.PullReport{MarketplaceCode: code}, nil
}

func (e *recordingExecutor) cycleCount(code integration.MarketplaceCode) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycles[code]
}

func (e *recordingExecutor) pullCount(code integration.MarketplaceCode) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pulls[code]
}

func testRunnerConfig(codes ...integration.MarketplaceCode) RunnerConfig {
	return RunnerConfig{
		Marketplaces:      codes,
		SyncInterval:      10 * time.Millisecond,
		OrderPullInterval: 20 * time.Millisecond,
		OrderLookback:     time.Minute,
		CycleTimeout:      time.Second,
	}
}

func TestRunnerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunnerConfig)
		wantErr error
	}{
		{"valid", func(c *RunnerConfig) {}, nil},
		{"no marketplaces", func(c *RunnerConfig) { c.Marketplaces = nil }, ErrNoMarketplaces},
		{"zero sync interval", func(c *RunnerConfig) { c.SyncInterval = 0 }, ErrInvalidConfig},
		{"zero pull interval", func(c *RunnerConfig) { c.OrderPullInterval = 0 }, ErrInvalidConfig},
		{"negative lookback", func(c *RunnerConfig) { c.OrderLookback = -time.Second }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testRunnerConfig(integration.MarketplaceCodeTrendyol)
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunner_RunsCyclesPerMarketplace(t *testing.T) {
	executor := newRecordingExecutor()
	runner, err := NewRunner(
		testRunnerConfig(integration.MarketplaceCodeTrendyol, integration.MarketplaceCodeHepsiburada),
		executor, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(stopCtx))

	assert.GreaterOrEqual(t, executor.cycleCount(integration.MarketplaceCodeTrendyol), 2)
	assert.GreaterOrEqual(t, executor.cycleCount(integration.MarketplaceCodeHepsiburada), 2)
	assert.GreaterOrEqual(t, executor.pullCount(integration.MarketplaceCodeTrendyol), 1)
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	runner, err := NewRunner(testRunnerConfig(integration.MarketplaceCodeTrendyol), newRecordingExecutor(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	require.NoError(t, runner.Stop(context.Background()))
	require.NoError(t, runner.Stop(context.Background()))
}

func TestRunner_TriggerCycle(t *testing.T) {
	executor := newRecordingExecutor()
	runner, err := NewRunner(testRunnerConfig(integration.MarketplaceCodeTrendyol), executor, zap.NewNop())
	require.NoError(t, err)

	t.Run("fails when not running", func(t *testing.T) {
		_, err := runner.TriggerCycle(context.Background(), integration.MarketplaceCodeTrendyol)
		assert.ErrorIs(t, err, ErrRunnerNotRunning)
	})

	t.Run("runs immediately when started", func(t *testing.T) {
		require.NoError(t, runner.Start(context.Background()))
		defer func() { _ = runner.Stop(context.Background()) }()

		report, err := runner.TriggerCycle(context.Background(), integration.MarketplaceCodeTrendyol)
		require.NoError(t, err)
		assert.Equal(t, integration.MarketplaceCodeTrendyol, report.MarketplaceCode)
		assert.GreaterOrEqual(t, executor.cycleCount(integration.MarketplaceCodeTrendyol), 1)
	})
}
