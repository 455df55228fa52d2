package logger

import (
	"log/slog"
	"strings"
)

// Values of the status field.
const (
	StatusOK          = "ok"
	StatusFail        = "fail"
	StatusSkip        = "skip"
	StatusRetry       = "retry"
	StatusCancelled   = "cancelled"
	StatusRateLimited = "rate_limited"
)

// enums lists the accepted values of closed fields. Unknown values are dropped,
// except for status which is kept as written.
var enums = map[string]map[string]bool{
	"status": {
		StatusOK: true, StatusFail: true, StatusSkip: true,
		StatusRetry: true, StatusCancelled: true, StatusRateLimited: true,
	},
	"outcome": {"ok": true, "fail": true, "cancelled": true, "rate_limited": true},
	"cache":   {"hit": true, "miss": true, "refresh": true, "invalidate": true},
}

// defaultKeyOrder puts identity first, then booking context, then timing and errors.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "update_id", "user_id", "chat_id", "chat_type", "handler",
	"action", "cb_key", "payload", "master", "date", "slot", "kind",
	"op", "outcome", "cache", "count", "found", "claimed",
	"duration_ms", "elapsed_ms", "attempt", "attempts", "backoff_ms",
	"err", "err_code", "cause", "reason", "src",
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func checkEnums(fields map[string]any) {
	for key, allowed := range enums {
		raw, ok := fields[key].(string)
		if !ok {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case allowed[v]:
			fields[key] = v
		case key == "status" && v != "":
			fields[key] = v
		default:
			delete(fields, key)
		}
	}
}
