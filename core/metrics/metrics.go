// Package metrics exposes bot counters to prometheus.
//
// A nil *Collector is valid and discards every observation, so callers may
// wire it unconditionally and leave it nil when metrics are disabled.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/session"
)

const (
	component = "metrics"
	namespace = "salonbot"
)

// Collector owns a private prometheus registry and the bot's metric families.
type Collector struct {
	registry *prometheus.Registry

	updates     *prometheus.CounterVec
	replies     *prometheus.CounterVec
	rateLimited prometheus.Counter
	outbound    *prometheus.CounterVec
	transitions *prometheus.CounterVec

	sweeps   *prometheus.CounterVec
	evicted  prometheus.Counter
	attempts prometheus.Histogram
}

// New registers the metric families together with the Go runtime collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "replies_total",
			Help:      "Messages sent or edited from update handlers, by keyboard presence.",
		}, []string{"keyboard"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "outbound_total",
			Help:      "Bot API calls made by the booking transport, by operation and status.",
		}, []string{"op", "status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "actions_total",
			Help:      "Handled booking actions, by action and outcome.",
		}, []string{"action", "outcome"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "sweeps_total",
			Help:      "Idle session sweeps, by status.",
		}, []string{"status"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "evicted_total",
			Help:      "Sessions removed by the idle sweeper.",
		}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "sweep_attempts",
			Help:      "Attempts needed per sweep.",
			Buckets:   []float64{1, 2, 3, 5},
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.updates, c.replies, c.rateLimited, c.outbound, c.transitions,
		c.sweeps, c.evicted, c.attempts,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// WatchSessions exports the live session and marker counts of store.
func (c *Collector) WatchSessions(store *session.Store) error {
	if c == nil || store == nil {
		return nil
	}
	live := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "live",
		Help:      "Conversations currently held in memory.",
	}, func() float64 { return float64(store.Len()) })
	markers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "calendar_markers",
		Help:      "Calendar markers currently issued.",
	}, func() float64 { return float64(store.Stats().Markers) })
	for _, g := range []prometheus.Collector{live, markers} {
		if err := c.registry.Register(g); err != nil {
			return fmt.Errorf("metrics: register session gauge: %w", err)
		}
	}
	return nil
}

// Update counts one incoming update.
func (c *Collector) Update(kind string) {
	if c == nil {
		return
	}
	c.updates.WithLabelValues(kind).Inc()
}

// Replies counts messages produced by one handler.
func (c *Collector) Replies(n int, keyboard bool) {
	if c == nil || n <= 0 {
		return
	}
	kb := "no"
	if keyboard {
		kb = "yes"
	}
	c.replies.WithLabelValues(kb).Add(float64(n))
}

// RateLimited counts one dropped update.
func (c *Collector) RateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

// Outbound counts one bot API call made outside an update handler.
func (c *Collector) Outbound(op string, err error) {
	if c == nil {
		return
	}
	c.outbound.WithLabelValues(op, statusLabel(err)).Inc()
}

// Transition counts one handled booking action.
func (c *Collector) Transition(action, outcome string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(action, outcome).Inc()
}

// Sweep records the result of one sweeper run.
func (c *Collector) Sweep(r session.SweepResult) {
	if c == nil {
		return
	}
	c.sweeps.WithLabelValues(statusLabel(r.Err)).Inc()
	c.evicted.Add(float64(len(r.Evicted)))
	if r.Attempts > 0 {
		c.attempts.Observe(float64(r.Attempts))
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Server serves the collector over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and starts serving path in the background.
func (c *Collector) Listen(ctx context.Context, addr, path string) (*Server, error) {
	if path == "" {
		path = "/metrics"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error(ctx, component, "metrics.listen",
			slog.String("status", "fail"),
			slog.String("addr", addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, component, "metrics.serve",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.Info(ctx, component, "metrics.listen",
		slog.String("status", "ok"),
		slog.String("addr", ln.Addr().String()),
		slog.String("path", path),
	)
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	logger.Info(ctx, component, "metrics.shutdown", slog.String("status", logger.Status(err)))
	return err
}
