// Package logger is the structured slog setup shared by the bot packages.
//
// Lines are flat key=value (or JSON) records with component and event first,
// followed by the update metadata attached via WithMeta.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/salonbot/core/buildinfo"
	coreconfig "github.com/m3rciful/salonbot/core/config"
)

var (
	initOnce sync.Once
	stopOnce sync.Once

	writer  *asyncWriter
	files   []io.Closer
	level   slog.LevelVar
	debug   sampler
	tracing bool

	// L is the base logger. Prefer the ctx helpers below.
	L *slog.Logger
)

// InitLogger installs the global logger. Calls after the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		if cfg == nil {
			cfg = &coreconfig.Config{}
		}
		lc := cfg.Logging
		level.Set(parseLevel(lc.Level))
		debug.set(debugSample(lc.DebugSample))
		tracing = truthy(os.Getenv("LOG_TRACE")) || truthy(os.Getenv("TRACE"))

		var sinks []sink
		sinks, err = openSinks(lc)
		if err != nil {
			return
		}
		writer = newAsyncWriter(sinks)
		L = slog.New(newStructuredHandler(handlerConfig{
			level:  &level,
			writer: writer,
			format: pickFormat(lc),
			order:  pickOrder(lc.KeysOrder),
			source: truthy(lc.Stacks),
		}))
		slog.SetDefault(L)

		build := buildinfo.Read()
		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", build.Version),
			slog.String("build_commit", build.Commit),
			slog.String("build_time", build.Date),
			slog.String("cfg_profile", profile(lc)),
		)
	})
	return err
}

// Shutdown flushes pending lines and closes log files.
func Shutdown() error {
	var err error
	stopOnce.Do(func() {
		var errs []error
		if writer != nil {
			errs = append(errs, writer.Close())
		}
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

// openSinks returns stdout plus the optional bot and errors files under Logging.Dir.
// The errors file only receives warn and error lines.
func openSinks(lc coreconfig.LoggingConfig) ([]sink, error) {
	sinks := []sink{newSink(os.Stdout, slog.LevelDebug)}
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		return sinks, nil
	}
	targets := []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(lc.BotFile), slog.LevelDebug},
		{strings.TrimSpace(lc.ErrorsFile), slog.LevelWarn},
	}
	for _, t := range targets {
		if t.name == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logger: create %s: %w", dir, err)
		}
		path := filepath.Join(dir, t.name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			for _, c := range files {
				_ = c.Close()
			}
			files = nil
			return nil, fmt.Errorf("logger: open %s: %w", path, err)
		}
		files = append(files, f)
		sinks = append(sinks, newSink(f, t.min))
	}
	return sinks, nil
}

func pickFormat(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
		return formatJSON
	case "kv", "text", "pretty":
		return formatKV
	}
	switch profile(lc) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

// pickOrder parses a comma separated key list; "" and "default" keep the built-in order.
func pickOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

// debugSample defaults to one in fifty; "0" turns sampling off.
func debugSample(spec string) (int, int) {
	if strings.TrimSpace(spec) == "" {
		return 1, 50
	}
	return parseSample(spec)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Sampled reports whether a high volume debug event should be written.
// LOG_TRACE=1 lets every event through.
func Sampled() bool {
	return tracing || debug.allow()
}

// Component returns L scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With(slog.String("component", name))
}

func emit(ctx context.Context, component string, lvl slog.Level, event string, attrs []slog.Attr) {
	log := FromContext(ctx)
	if log == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !log.Enabled(ctx, lvl) {
		return
	}
	// Skip Callers, emit and the level helper.
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), lvl, event, pcs[0])
	if component != "" {
		r.AddAttrs(slog.String("component", component))
	}
	r.AddAttrs(slog.String("event", event))
	r.AddAttrs(attrs...)
	_ = log.Handler().Handle(ctx, r)
}

// Debug logs event at debug level.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelDebug, event, attrs)
}

// Info logs event at info level.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelInfo, event, attrs)
}

// Warn logs event at warn level.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelWarn, event, attrs)
}

// Error logs event at error level.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, component, slog.LevelError, event, attrs)
}
