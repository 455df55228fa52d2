package telegram

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	"github.com/m3rciful/salonbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultPollTimeout = 10 * time.Second
	dialTimeout        = 5 * time.Second
	dialAttempts       = 3
	dialBackoff        = 500 * time.Millisecond
)

// NewBot builds a bot for the configured run mode.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: newPoller(cfg),
		Client: newHTTPClient(pollTimeout(cfg.Telegram)),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

func pollTimeout(tc coreconfig.TelegramConfig) time.Duration {
	if tc.LongPollTimeoutSeconds > 0 {
		return time.Duration(tc.LongPollTimeoutSeconds) * time.Second
	}
	return defaultPollTimeout
}

func newPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: pollTimeout(cfg.Telegram)}
}

// newHTTPClient sizes the client timeout so a long poll never hits it.
func newHTTPClient(poll time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   poll + 20*time.Second,
		Transport: &dialRetry{base: base, attempts: dialAttempts, backoff: dialBackoff},
	}
}

// dialRetry repeats requests that failed before reaching Telegram.
// Requests that may have been delivered are not repeated, so a booking
// confirmation is never sent twice from this layer.
type dialRetry struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *dialRetry) RoundTrip(req *http.Request) (*http.Response, error) {
	var err error
	for attempt := 1; ; attempt++ {
		r := req
		if attempt > 1 {
			if req.Body != nil && req.GetBody == nil {
				return nil, err
			}
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, berr := req.GetBody()
				if berr != nil {
					return nil, berr
				}
				r.Body = body
			}
		}

		var resp *http.Response
		resp, err = t.base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		if attempt >= t.attempts || netutil.Classify(err) != netutil.KindDial {
			return nil, err
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
