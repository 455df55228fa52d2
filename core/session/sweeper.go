package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/salonbot/core/logger"
)

const (
	// DefaultSweepPeriod is both the sweep interval and the idle age that triggers eviction.
	DefaultSweepPeriod = 60 * time.Minute
	// DefaultSweepAttempts bounds retries of a failing sweep cycle.
	DefaultSweepAttempts = 3
	// DefaultSweepRetryDelay is the fixed delay between retries.
	DefaultSweepRetryDelay = 5 * time.Second

	sweeperComponent = "session.sweeper"
)

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	Period      time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// OnSweep observes every finished cycle.
	OnSweep func(SweepResult)
}

// SweepResult summarises one sweep cycle.
type SweepResult struct {
	Evicted  []ID
	Attempts int
	Err      error
}

// SweeperStats accumulates sweeper totals since start.
type SweeperStats struct {
	Runs     uint64
	Evicted  uint64
	Failures uint64
}

// Sweeper periodically evicts idle sessions from a Store.
type Sweeper struct {
	store *Store
	opts  SweeperOptions

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	runs     atomic.Uint64
	evicted  atomic.Uint64
	failures atomic.Uint64
}

// NewSweeper creates a sweeper, filling zero options with defaults.
func NewSweeper(store *Store, opts SweeperOptions) *Sweeper {
	if opts.Period <= 0 {
		opts.Period = DefaultSweepPeriod
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultSweepAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultSweepRetryDelay
	}
	return &Sweeper{store: store, opts: opts}
}

// Period returns the configured sweep period.
func (s *Sweeper) Period() time.Duration {
	return s.opts.Period
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(loopCtx, s.done)

	logger.Info(ctx, sweeperComponent, "sweeper.start",
		slog.String("status", "ok"),
		slog.Duration("period", s.opts.Period),
		slog.Int("attempts", s.opts.MaxAttempts),
		slog.Duration("backoff", s.opts.RetryDelay),
	)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns accumulated totals.
func (s *Sweeper) Stats() SweeperStats {
	return SweeperStats{
		Runs:     s.runs.Load(),
		Evicted:  s.evicted.Load(),
		Failures: s.failures.Load(),
	}
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		close(done)
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), sweeperComponent, "sweeper.stop",
				slog.String("status", "ok"),
			)
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single cycle, retrying failed evictions with a fixed delay.
// The failure of a cycle is logged and returned but never escalates further.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	now := s.store.Now()
	res := SweepResult{}

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt
		evicted, err := s.store.EvictIdle(now, s.opts.Period)
		res.Evicted = append(res.Evicted, evicted...)
		res.Err = err
		if err == nil {
			break
		}
		if attempt == s.opts.MaxAttempts {
			logger.Error(ctx, sweeperComponent, "sweep.fail",
				slog.String("status", "fail"),
				slog.Int("attempts", attempt),
				slog.String("err", err.Error()),
			)
			break
		}
		logger.Warn(ctx, sweeperComponent, "sweep.retry",
			slog.String("status", "retry"),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", s.opts.RetryDelay),
			slog.String("err", err.Error()),
		)
		if !sleepCtx(ctx, s.opts.RetryDelay) {
			res.Err = ctx.Err()
			break
		}
	}

	s.runs.Add(1)
	s.evicted.Add(uint64(len(res.Evicted)))
	if res.Err != nil {
		s.failures.Add(1)
	}
	if len(res.Evicted) > 0 || logger.Sampled() {
		logger.Info(ctx, sweeperComponent, "sweep.done",
			slog.String("status", logger.Status(res.Err)),
			slog.Int("count", len(res.Evicted)),
			slog.Int("attempts", res.Attempts),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	if s.opts.OnSweep != nil {
		s.opts.OnSweep(res)
	}
	return res, res.Err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
