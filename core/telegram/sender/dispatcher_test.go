package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	action string
	err    error
}

func newTestDispatcher(t *testing.T, retries int) (*Dispatcher, chan result) {
	t.Helper()
	done := make(chan result, 8)
	d := NewDispatcher(Options{
		Workers:      1,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
		MaxDuration:  time.Second,
		OnDone:       func(action string, err error) { done <- result{action, err} },
	})
	t.Cleanup(d.Close)
	return d, done
}

func waitResult(t *testing.T, ch chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
		return result{}
	}
}

func TestDispatcher_RetriesTransientErrors(t *testing.T) {
	d, done := newTestDispatcher(t, 2)
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "delete", "deleteMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	}))

	r := waitResult(t, done)
	assert.Equal(t, "delete", r.action)
	assert.NoError(t, r.err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcher_PermanentErrorIsNotRetried(t *testing.T) {
	d, done := newTestDispatcher(t, 3)
	boom := errors.New("Bad Request: message to delete not found")
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "delete", "deleteMessage", func() error {
		calls.Add(1)
		return boom
	}))

	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, boom)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcher_CanceledContextSkipsJob(t *testing.T) {
	d, done := newTestDispatcher(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	require.NoError(t, d.Enqueue(ctx, "notify", "sendMessage", func() error {
		ran = true
		return nil
	}))

	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.False(t, ran)
}

func TestDispatcher_Closed(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), "send", "sendMessage", nil))
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	t.Cleanup(d.Close)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	started := make(chan struct{})
	ctx := context.Background()
	require.NoError(t, d.Enqueue(ctx, "menu", "sendMessage", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(ctx, "menu", "sendMessage", func() error { return nil }))
	assert.Equal(t, 1, d.Pending())
	assert.ErrorIs(t, d.Enqueue(ctx, "menu", "sendMessage", func() error { return nil }), ErrQueueFull)
}
