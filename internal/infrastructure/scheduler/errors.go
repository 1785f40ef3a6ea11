package scheduler

import "errors"

var (
	// ErrRunnerNotRunning is returned when triggering a stopped runner
	ErrRunnerNotRunning = errors.New("sync runner is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid sync runner configuration")

	// ErrNoMarketplaces is returned when no marketplaces are enabled
	ErrNoMarketplaces = errors.New("no marketplaces enabled for sync")
)
