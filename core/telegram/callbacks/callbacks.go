// Package callbacks decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits Telebot's "\f<unique>|<payload>" encoding into key and payload.
// A populated cb.Unique wins over the raw data.
func Parse(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(key), payload
}

// Key returns the route key of the current callback.
func Key(c tele.Context) string {
	k, _ := Parse(c.Callback())
	return k
}

// Payload returns the data carried after the route key.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}
