// Package netutil classifies failures of Telegram API calls.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind is a coarse failure class used for retries and the error_kind log field.
type Kind string

const (
	KindNone      Kind = ""
	KindCancelled Kind = "cancelled"
	KindTimeout   Kind = "timeout"
	KindDNS       Kind = "dns"
	KindDial      Kind = "dial"
	KindReset     Kind = "reset"
	KindTLS       Kind = "tls"
	KindFlood     Kind = "flood"
	KindServer    Kind = "http_5xx"
	KindClient    Kind = "http_4xx"
	KindUnknown   Kind = "unknown"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify maps err to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindDial
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return KindReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	var alert tls.AlertError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &alert) || errors.As(err, &certErr) {
		return KindTLS
	}

	switch code := StatusCode(err); {
	case code == http.StatusTooManyRequests:
		return KindFlood
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindClient
	}
	return KindUnknown
}

// ShouldRetry reports whether repeating the call may succeed.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindDial, KindReset, KindFlood, KindServer:
		return true
	}
	return false
}

// RetryAfter returns the wait Telegram asked for on a flood error, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// StatusCode extracts the Bot API error code from err, or zero.
// Besides telebot's typed errors it understands a trailing "(400)".
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	msg := strings.TrimSpace(err.Error())
	if !strings.HasSuffix(msg, ")") {
		return 0
	}
	open := strings.LastIndexByte(msg, '(')
	if open < 0 {
		return 0
	}
	code, convErr := strconv.Atoi(msg[open+1 : len(msg)-1])
	if convErr != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}

// Redact returns the error text with bot tokens masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
