package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/T9Tuco/NexusBD/internal/types"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 5 * time.Second

// Checker probes one component. A nil error means the component is
// serving; the error message becomes the check's message otherwise.
type Checker func(ctx context.Context) error

type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
	Duration  string    `json:"duration"`
}

type Summary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
}

type Report struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks"`
	Summary   Summary          `json:"summary"`
}

// Registry holds component checkers and runs them concurrently on
// demand. Components register themselves during assembly.
type Registry struct {
	logger       types.Logger
	mu           sync.RWMutex
	checkers     map[string]Checker
	startTime    time.Time
	checkTimeout time.Duration
}

func NewRegistry(logger types.Logger) *Registry {
	return &Registry{
		logger:       logger,
		checkers:     make(map[string]Checker),
		startTime:    time.Now(),
		checkTimeout: defaultCheckTimeout,
	}
}

func (r *Registry) Register(name string, checker Checker) error {
	if name == "" || checker == nil {
		return types.ErrInvalidParameter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkers[name] = checker
	return nil
}

// Check runs every registered checker concurrently and aggregates the
// results. A single unhealthy component marks the whole report
// unhealthy.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, checker := range r.checkers {
		checkers[name] = checker
	}
	r.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(checkCtx)
	checks := make(map[string]Check, len(checkers))
	var resultMu sync.Mutex

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := r.runCheck(gCtx, name, checker)

			resultMu.Lock()
			checks[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Warn("Health check run incomplete", zap.Error(err))
	}

	return r.buildReport(checks)
}

func (r *Registry) runCheck(ctx context.Context, name string, checker Checker) Check {
	start := time.Now()
	resultCh := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- fmt.Errorf("health check panicked: %v", rec)
			}
		}()
		resultCh <- checker(ctx)
	}()

	check := Check{
		Name:      name,
		Status:    StatusHealthy,
		LastCheck: time.Now(),
	}

	select {
	case err := <-resultCh:
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
	case <-ctx.Done():
		check.Status = StatusUnhealthy
		check.Message = "health check timeout"
	}

	check.Duration = time.Since(start).Round(time.Microsecond).String()
	return check
}

func (r *Registry) buildReport(checks map[string]Check) Report {
	summary := Summary{Total: len(checks)}

	status := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusHealthy {
			summary.Healthy++
			continue
		}
		summary.Unhealthy++
		status = StatusUnhealthy
	}

	return Report{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(r.startTime).Round(time.Second).String(),
		Checks:    checks,
		Summary:   summary,
	}
}
