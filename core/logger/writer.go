package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// sink is one output. Lines below min are not written to it.
type sink struct {
	w   *bufio.Writer
	min slog.Level
}

// line is a queued record. A line with a non-nil ack is a flush request.
type line struct {
	data  []byte
	level slog.Level
	ack   chan error
}

// asyncWriter moves formatting results off the caller goroutine.
// A single loop owns the sinks, so they need no locking.
type asyncWriter struct {
	queue     chan line
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newAsyncWriter(sinks []sink) *asyncWriter {
	w := &asyncWriter{
		queue: make(chan line, 256),
		done:  make(chan struct{}),
	}
	go w.run(sinks)
	return w
}

func newSink(w io.Writer, min slog.Level) sink {
	return sink{w: bufio.NewWriterSize(w, 32*1024), min: min}
}

func (w *asyncWriter) run(sinks []sink) {
	defer close(w.done)
	for l := range w.queue {
		if l.ack != nil {
			l.ack <- flushSinks(sinks)
			continue
		}
		for _, s := range sinks {
			if l.level < s.min {
				continue
			}
			if _, err := s.w.Write(l.data); err != nil {
				w.fail(err)
			}
		}
		// Keep tail -f usable: flush once the burst is drained.
		if len(w.queue) == 0 {
			if err := flushSinks(sinks); err != nil {
				w.fail(err)
			}
		}
	}
	if err := flushSinks(sinks); err != nil {
		w.fail(err)
	}
}

func flushSinks(sinks []sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write queues a copy of p. It blocks while the queue is full.
func (w *asyncWriter) Write(level slog.Level, p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- line{data: append([]byte(nil), p...), level: level}
	return nil
}

// Flush waits until every line queued before it reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	w.queue <- line{ack: ack}
	return <-ack
}

// Close drains the queue. Write and Flush must not be called afterwards.
func (w *asyncWriter) Close() error {
	w.closeOnce.Do(func() { close(w.queue) })
	<-w.done
	return w.Err()
}

// Err reports the first write error seen by the loop.
func (w *asyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
