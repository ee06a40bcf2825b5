package health

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T9Tuco/NexusBD/internal/logger"
	"github.com/T9Tuco/NexusBD/internal/types"
)

func TestCheckAggregatesHealthyComponents(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	require.NoError(t, r.Register("cache", func(context.Context) error { return nil }))
	require.NoError(t, r.Register("scheduler", func(context.Context) error { return nil }))

	report := r.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Healthy)
	assert.Zero(t, report.Summary.Unhealthy)
	assert.Equal(t, StatusHealthy, report.Checks["cache"].Status)
}

func TestCheckMarksReportUnhealthyOnSingleFailure(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	require.NoError(t, r.Register("cache", func(context.Context) error { return nil }))
	require.NoError(t, r.Register("events", func(context.Context) error {
		return errors.New("collector unreachable")
	}))

	report := r.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, 1, report.Summary.Healthy)
	assert.Equal(t, 1, report.Summary.Unhealthy)
	assert.Equal(t, "collector unreachable", report.Checks["events"].Message)
	assert.Equal(t, StatusHealthy, report.Checks["cache"].Status)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	assert.ErrorIs(t, r.Register("", func(context.Context) error { return nil }), types.ErrInvalidParameter)
	assert.ErrorIs(t, r.Register("cache", nil), types.ErrInvalidParameter)
}

func TestCheckSurvivesPanickingChecker(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	require.NoError(t, r.Register("broken", func(context.Context) error {
		panic("boom")
	}))
	require.NoError(t, r.Register("cache", func(context.Context) error { return nil }))

	var report Report
	assert.NotPanics(t, func() { report = r.Check(context.Background()) })

	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks["broken"].Message, "panicked")
	assert.Equal(t, StatusHealthy, report.Checks["cache"].Status)
}

func TestCheckTimesOutSlowChecker(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	r.checkTimeout = 50 * time.Millisecond

	require.NoError(t, r.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	}))

	start := time.Now()
	report := r.Check(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, report.Checks["slow"].Status)
	assert.Equal(t, "health check timeout", report.Checks["slow"].Message)
}

func TestCheckWithNoCheckers(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	report := r.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Zero(t, report.Summary.Total)
}
