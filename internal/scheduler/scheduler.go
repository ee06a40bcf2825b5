package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/metrics"
	"github.com/T9Tuco/NexusBD/internal/types"
)

// Manager schedules recurring maintenance jobs on a second-granularity
// cron. Jobs run with panic recovery and per-job execution metrics.
type Manager struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   types.Logger
	recorder *metrics.Manager
	cron     *cron.Cron
	timezone *time.Location

	jobs  map[string]cron.EntryID
	mu    sync.Mutex
	state atomic.Int32
}

func NewManager(ctx context.Context, logger types.Logger, recorder *metrics.Manager, config *types.CronConfig) (*Manager, error) {
	timezone, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn("Unknown cron timezone, falling back to UTC",
			zap.String("timezone", config.Timezone),
			zap.Error(err))
		timezone = time.UTC
	}

	managerCtx, cancel := context.WithCancel(ctx)

	m := &Manager{
		ctx:      managerCtx,
		cancel:   cancel,
		logger:   logger,
		recorder: recorder,
		timezone: timezone,
		jobs:     make(map[string]cron.EntryID),
	}

	m.cron = cron.New(
		cron.WithLocation(timezone),
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)

	m.state.Store(types.StateStopped)

	return m, nil
}

func (m *Manager) Add(jobName, spec string, job func(context.Context) error) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}
	if spec == "" {
		return types.ErrCronExpressionInvalid
	}
	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "%s", jobName)
	}

	entryID, err := m.cron.AddFunc(spec, m.wrapJob(jobName, job))
	if err != nil {
		return types.WrapError(err, "failed to add cron job")
	}

	m.jobs[jobName] = entryID

	m.logger.Info("Cron job added",
		zap.String("job_name", jobName),
		zap.String("spec", spec))

	return nil
}

func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(types.StateStopped, types.StateRunning) {
		return types.ErrServerAlreadyRunning
	}

	m.cron.Start()
	m.logger.Info("Cron scheduler started",
		zap.String("timezone", m.timezone.String()),
		zap.Int("jobs", len(m.jobs)))

	return nil
}

func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(types.StateRunning, types.StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		m.state.Store(types.StateStopped)
		m.cancel()
	}()

	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
		m.logger.Info("Cron scheduler stopped gracefully")
	case <-time.After(10 * time.Second):
		m.logger.Warn("Cron scheduler stop timeout, jobs may still be running")
	}

	return nil
}

func (m *Manager) IsRunning() bool {
	return m.state.Load() == types.StateRunning
}

func (m *Manager) wrapJob(jobName string, job func(context.Context) error) func() {
	return func() {
		start := time.Now()

		err := job(m.ctx)
		duration := time.Since(start)

		result := "success"
		if err != nil {
			result = "error"
			m.logger.Error("Cron job failed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			m.logger.Debug("Cron job completed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration))
		}

		if m.recorder != nil {
			m.recorder.Counter("cron_job_executions_total", map[string]string{
				"job_name": jobName,
				"result":   result,
			}).Inc()

			m.recorder.Histogram("cron_job_duration_seconds",
				[]float64{0.1, 1.0, 10.0, 60.0, 300.0},
				map[string]string{"job_name": jobName},
			).Observe(duration.Seconds())
		}
	}
}

type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvFields(keysAndValues), zap.Error(err))
	l.logger.Error(msg, fields...)
}

func kvFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
