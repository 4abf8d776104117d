package scheduler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/models"
)

// Runner performs one pass
type Runner interface {
	Run(ctx context.Context) *models.PassReport
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) *models.PassReport

// Run calls f(ctx)
func (f RunnerFunc) Run(ctx context.Context) *models.PassReport {
	return f(ctx)
}

// Scheduler fires a Runner once at start and then at a fixed interval.
// At most one pass is in flight; a tick that fires during a pass is skipped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   logging.Logger

	inflight *semaphore.Weighted
	wg       sync.WaitGroup
	trigger  chan struct{}
	pending  atomic.Bool

	// OnReport, when set, receives every finished pass report
	OnReport func(*models.PassReport)
}

// New creates a scheduler. interval must be positive.
func New(runner Runner, interval time.Duration, logger logging.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		inflight: semaphore.NewWeighted(1),
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Start runs passes until ctx is done, then waits for the in-flight pass
// to return before returning itself.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info(ctx, fmt.Sprintf("Scheduler started, interval %s", s.interval), nil)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping, waiting for the running pass to finish", nil)
			s.wg.Wait()
			s.logger.Info(ctx, "Scheduler stopped", nil)
			return nil
		case <-ticker.C:
			if !s.fire(ctx) {
				s.logger.Warn(ctx, "Previous pass still running, tick skipped", nil)
			}
		case <-s.trigger:
			if s.fire(ctx) {
				continue
			}
			// Re-run once the current pass ends so late changes are not lost.
			// That pass may have ended between the two calls, so try again.
			s.pending.Store(true)
			if !s.fire(ctx) {
				s.logger.Debug(ctx, "Change detected during a pass, queued", nil)
			}
		}
	}
}

// Trigger requests an extra pass outside the interval. It never blocks;
// requests made while one is already queued are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// fire starts a pass unless one is running and reports whether it did
func (s *Scheduler) fire(ctx context.Context) bool {
	if !s.inflight.TryAcquire(1) {
		return false
	}
	// This pass covers whatever was queued
	s.pending.Store(false)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		report := s.runner.Run(ctx)
		if s.OnReport != nil && report != nil {
			s.OnReport(report)
		}

		// Release before looking at pending: a request queued after the
		// check can then always start its own pass
		s.inflight.Release(1)
		if s.pending.Swap(false) && ctx.Err() == nil {
			s.Trigger()
		}
	}()
	return true
}

// ParseInterval parses a positive number of seconds, fractional values
// allowed ("2", "0.5", "1e1").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("interval is required")
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: not a number", s)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, fmt.Errorf("invalid interval %q: must be a positive number of seconds", s)
	}
	if secs > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("invalid interval %q: too large", s)
	}

	d := time.Duration(secs * float64(time.Second))
	if d <= 0 {
		return 0, fmt.Errorf("invalid interval %q: too small", s)
	}
	return d, nil
}
