package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type handlerConfig struct {
	level  slog.Leveler
	writer *asyncWriter
	format logFormat
	order  []string
	// source adds src=file:line to warn and error lines.
	source bool
}

// structuredHandler writes one flat line per record with a stable key order.
// Groups are flattened into dotted keys.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.order) == 0 {
		cfg.order = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	fields := make(map[string]any, 8+len(h.attrs)+r.NumAttrs())
	for _, a := range MetaFrom(ctx).attrs() {
		h.put(fields, "", a)
	}
	for _, a := range h.attrs {
		h.put(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.put(fields, h.prefix, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	fields["ts"] = ts.UTC().Format(tsLayout)
	fields["level"] = levelName(r.Level)
	if s, _ := fields["event"].(string); s == "" {
		fields["event"] = cmp.Or(r.Message, "unknown")
	}
	if s, _ := fields["component"].(string); s == "" {
		fields["component"] = "app"
	}
	if h.cfg.source && r.Level >= slog.LevelWarn && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			fields["src"] = trimPath(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
	}
	checkEnums(fields)

	var (
		out []byte
		err error
	)
	keys := orderKeys(fields, h.cfg.order)
	if h.cfg.format == formatJSON {
		out, err = encodeJSON(fields, keys)
	} else {
		out = encodeKV(fields, keys)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(r.Level, append(out, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

// put flattens a into fields. Empty strings and nil values are skipped.
func (h *structuredHandler) put(fields map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			h.put(fields, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	k, v := fieldValue(key, a.Value)
	if v == nil {
		return
	}
	if s, ok := v.(string); ok && s == "" {
		return
	}
	fields[k] = v
}

// fieldValue converts v to a JSON friendly value. Durations become
// integer milliseconds under a key ending in _ms.
func fieldValue(key string, v slog.Value) (string, any) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String())
	case slog.KindBool:
		return key, v.Bool()
	case slog.KindInt64:
		return key, v.Int64()
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u)
		}
		return key, v.Uint64()
	case slog.KindFloat64:
		return key, v.Float64()
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano)
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil
	case error:
		return key, x.Error()
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds()
	case fmt.Stringer:
		return key, x.String()
	default:
		return key, fmt.Sprint(x)
	}
}

func msKey(key string) string {
	switch {
	case strings.HasSuffix(key, "_ms"):
		return key
	case key == "duration":
		return "duration_ms"
	default:
		return key + "_ms"
	}
}

// orderKeys returns the keys of fields listed in order first, then the rest sorted.
func orderKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for k := range fields {
		if !listed[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func encodeJSON(fields map[string]any, keys []string) ([]byte, error) {
	out := make([]byte, 0, 256)
	out = append(out, '{')
	for i, k := range keys {
		v, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("logger: field %s: %w", k, err)
		}
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, k)
		out = append(out, ':')
		out = append(out, v...)
	}
	return append(out, '}'), nil
}

func encodeKV(fields map[string]any, keys []string) []byte {
	out := make([]byte, 0, 256)
	for i, k := range keys {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, k...)
		out = append(out, '=')
		s := fmt.Sprint(fields[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			out = strconv.AppendQuote(out, s)
		} else {
			out = append(out, s...)
		}
	}
	return out
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// trimPath keeps the last two path elements.
func trimPath(file string) string {
	if i := strings.LastIndexByte(file, '/'); i > 0 {
		if j := strings.LastIndexByte(file[:i], '/'); j >= 0 {
			return file[j+1:]
		}
	}
	return file
}
