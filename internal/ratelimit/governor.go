// Package ratelimit suspends callers when the remaining API quota runs low.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	custom_errors "github-metrics/internal/errors"
)

const (
	DefaultLowWater = 50
	DefaultMargin   = 10 * time.Second
)

// QuotaSource reports the remaining request quota and when it resets.
type QuotaSource interface {
	Quota(ctx context.Context) (remaining int, reset time.Time, err error)
}

// Governor must be consulted before every quota-consuming remote call.
// One Governor is shared by every fetch loop of a run.
type Governor struct {
	source   QuotaSource
	logger   *slog.Logger
	lowWater int
	margin   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// NewGovernor creates a Governor with the given low-water mark and safety margin.
func NewGovernor(source QuotaSource, logger *slog.Logger, lowWater int, margin time.Duration) *Governor {
	return &Governor{
		source:   source,
		logger:   logger,
		lowWater: lowWater,
		margin:   margin,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Check queries the remaining quota and, when it is below the low-water
// mark, blocks until the reset time plus the safety margin has passed.
func (g *Governor) Check(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	remaining, reset, err := g.source.Quota(ctx)
	if err != nil {
		return &custom_errors.QuotaCheckError{Err: err}
	}
	if remaining >= g.lowWater {
		return nil
	}

	wait := g.waitFor(reset)
	g.logger.Info("Rate limit low, sleeping until reset",
		"remaining", remaining,
		"reset", reset.UTC().Format(time.RFC3339),
		"wait", wait.String(),
	)
	return g.sleep(ctx, wait)
}

// waitFor returns max(reset - now, 0) + margin. The floor applies before the
// margin is added, so a reset already in the past still waits the full margin.
func (g *Governor) waitFor(reset time.Time) time.Duration {
	untilReset := reset.Sub(g.now())
	if untilReset < 0 {
		untilReset = 0
	}
	return untilReset + g.margin
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
