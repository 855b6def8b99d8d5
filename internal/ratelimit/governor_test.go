package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-metrics/internal/errors"
)

// MockQuotaSource is a mock of the QuotaSource interface.
type MockQuotaSource struct {
	mock.Mock
}

func (m *MockQuotaSource) Quota(ctx context.Context) (int, time.Time, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Get(1).(time.Time), args.Error(2)
}

func newTestGovernor(src QuotaSource, now time.Time) (*Governor, *[]time.Duration) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := NewGovernor(src, logger, DefaultLowWater, DefaultMargin)
	g.now = func() time.Time { return now }
	var slept []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept
}

func TestGovernor_Check(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("does not sleep while quota is above the low-water mark", func(t *testing.T) {
		src := new(MockQuotaSource)
		src.On("Quota", ctx).Return(50, now.Add(time.Hour), nil).Once()
		g, slept := newTestGovernor(src, now)

		require.NoError(t, g.Check(ctx))
		assert.Empty(t, *slept)
		src.AssertExpectations(t)
	})

	t.Run("sleeps until reset plus margin when quota is low", func(t *testing.T) {
		src := new(MockQuotaSource)
		src.On("Quota", ctx).Return(49, now.Add(90*time.Second), nil).Once()
		g, slept := newTestGovernor(src, now)

		require.NoError(t, g.Check(ctx))
		assert.Equal(t, []time.Duration{100 * time.Second}, *slept)
	})

	t.Run("floors a reset in the past at the margin", func(t *testing.T) {
		src := new(MockQuotaSource)
		src.On("Quota", ctx).Return(0, now.Add(-time.Minute), nil).Once()
		g, slept := newTestGovernor(src, now)

		require.NoError(t, g.Check(ctx))
		assert.Equal(t, []time.Duration{DefaultMargin}, *slept)
	})

	t.Run("quota check failure is fatal", func(t *testing.T) {
		src := new(MockQuotaSource)
		netErr := errors.New("connection reset")
		src.On("Quota", ctx).Return(0, time.Time{}, netErr).Once()
		g, slept := newTestGovernor(src, now)

		err := g.Check(ctx)

		var qErr *custom_errors.QuotaCheckError
		require.ErrorAs(t, err, &qErr)
		assert.ErrorIs(t, err, netErr)
		assert.Empty(t, *slept)
	})
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
