package logger

import (
	"strconv"
	"strings"
	"unicode"
)

// NewRID builds a short correlation id from the update, chat and user ids.
// Each part is base36 encoded: update 123, chat 456, user 789 give "3f.co.lx".
func NewRID(updateID int, chatID, userID int64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(int64(updateID), 36))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(chatID, 36))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(userID, 36))
	return b.String()
}

// Clip strips control runes from s and cuts it to max runes.
// Client input such as names and callback payloads goes through Clip before logging.
func Clip(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		if r != '\n' && r != '\t' && (unicode.IsControl(r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Preview joins at most limit values and reports whether some were left out.
func Preview(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) > limit {
		return strings.Join(values[:limit], ", "), true
	}
	return strings.Join(values, ", "), false
}
