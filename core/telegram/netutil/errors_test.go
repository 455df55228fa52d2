package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		kind  Kind
		retry bool
	}{
		{"nil", nil, KindNone, false},
		{"cancelled", fmt.Errorf("send: %w", context.Canceled), KindCancelled, false},
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("no route")}, KindDial, true},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindDial, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, KindReset, true},
		{"eof", fmt.Errorf("telebot: %w", io.ErrUnexpectedEOF), KindReset, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.telegram.org", IsNotFound: true}, KindDNS, false},
		{"server", errors.New("telegram: Bad Gateway (502)"), KindServer, true},
		{"client", errors.New("telegram: Bad Request: message to delete not found (400)"), KindClient, false},
		{"plain", errors.New("Bad Request: message to delete not found"), KindUnknown, false},
		{"api", &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}, KindClient, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, Classify(tc.err))
			assert.Equal(t, tc.retry, ShouldRetry(tc.err))
		})
	}
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 0, StatusCode(nil))
	assert.Equal(t, 400, StatusCode(errors.New("telegram: chat not found (400)")))
	assert.Equal(t, 0, StatusCode(errors.New("slot (10:00)")))
	assert.Equal(t, 0, StatusCode(errors.New("no code")))
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, RetryAfter(errors.New("x")))
	// errors.Join keeps the wrapped error unformatted.
	flood := errors.Join(tele.FloodError{RetryAfter: 3})
	assert.Equal(t, 3*time.Second, RetryAfter(flood))
	assert.Equal(t, KindFlood, Classify(flood))
	assert.True(t, ShouldRetry(flood))
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_CC/sendMessage": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, Redact(err))
	assert.Empty(t, Redact(nil))
}
