// Package sender runs outbound Telegram calls on a small worker pool.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job did not fit into the queue.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tune the dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize int // 256
	Workers   int // 4
	// MaxRetries is the number of extra attempts for retryable errors.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number. A flood wait
	// reported by Telegram replaces it when longer.
	RetryBackoff time.Duration // 2s
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration // 12s
	// OnDone observes the final result of every job.
	OnDone func(action string, err error)
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts Options
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	failed atomic.Uint64
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go d.work()
	}
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.done(j, d.process(j))
	}
}

// Enqueue schedules run. It never blocks: a full queue yields ErrQueueFull.
// run may be called more than once when it fails with a retryable error.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// ErrorCount returns the number of jobs that finished with an error.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits until the queued ones are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}

	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = j.run(); err == nil {
			logger.Debug(j.ctx, component, "send.success", append(attrs,
				slog.Int("attempt", attempt),
				slog.Duration("elapsed", time.Since(start)),
			)...)
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}
		delay := max(d.opts.RetryBackoff*time.Duration(attempt), netutil.RetryAfter(err))
		logger.Debug(j.ctx, component, "send.retry", append(attrs,
			slog.Int("attempt", attempt),
			slog.String("error_kind", string(netutil.Classify(err))),
			slog.Duration("backoff", delay),
		)...)
		if werr := sleep(ctx, delay); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	d.failed.Add(1)
	logger.Error(j.ctx, component, "send.fail", append(attrs,
		slog.String("status", logger.Status(err)),
		slog.String("err", netutil.Redact(err)),
		slog.String("error_kind", string(netutil.Classify(err))),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(start)),
	)...)
	return err
}

func (d *Dispatcher) done(j job, err error) {
	if d.opts.OnDone != nil {
		d.opts.OnDone(j.action, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
