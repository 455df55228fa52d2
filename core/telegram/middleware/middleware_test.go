package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/salonbot/core/logger"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b
}

func messageFrom(b *tele.Bot, userID int64) tele.Context {
	return b.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   "hi",
		},
	})
}

func callbackFrom(b *tele.Bot, userID int64) tele.Context {
	return b.NewContext(tele.Update{
		ID: 2,
		Callback: &tele.Callback{
			Sender: &tele.User{ID: userID},
			Data:   "\fmenu|",
		},
	})
}

func counting(n *int) tele.HandlerFunc {
	return func(tele.Context) error {
		*n++
		return nil
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	b := offlineBot(t)
	now := time.Date(2025, 5, 22, 10, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Burst:     2,
		Exclude:   []string{"callback"},
		OnLimited: counting(&limited),
		Now:       func() time.Time { return now },
	})
	served := 0
	h := mw(counting(&served))

	for range 3 {
		require.NoError(t, h(messageFrom(b, 1)))
	}
	assert.Equal(t, 2, served, "burst of two")
	assert.Equal(t, 1, limited)

	require.NoError(t, h(messageFrom(b, 2)))
	assert.Equal(t, 3, served, "users have separate buckets")

	require.NoError(t, h(callbackFrom(b, 1)))
	assert.Equal(t, 4, served, "excluded kinds bypass the limiter")

	now = now.Add(time.Second)
	require.NoError(t, h(messageFrom(b, 1)))
	assert.Equal(t, 5, served, "a token is refilled after the interval")
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	b := offlineBot(t)
	served := 0
	h := RateLimitMiddleware(RateLimitOptions{})(counting(&served))
	for range 5 {
		require.NoError(t, h(messageFrom(b, 1)))
	}
	assert.Equal(t, 5, served)
}

func TestBuckets_IdleEviction(t *testing.T) {
	b := newBuckets(time.Second, 1, time.Minute)
	now := time.Date(2025, 5, 22, 10, 0, 0, 0, time.UTC)
	b.take(1, now)
	b.take(2, now.Add(50*time.Second))
	assert.Len(t, b.byUser, 2, "no sweep within the idle period")

	b.take(2, now.Add(2*time.Minute))
	assert.NotContains(t, b.byUser, int64(1))
	assert.Contains(t, b.byUser, int64(2))
}

func TestAdminOnlyMiddleware(t *testing.T) {
	b := offlineBot(t)
	rejected, served := 0, 0
	h := AdminOnlyMiddleware(AdminOptions{AdminID: 42, OnReject: counting(&rejected)})(counting(&served))

	require.NoError(t, h(messageFrom(b, 42)))
	require.NoError(t, h(messageFrom(b, 7)))
	assert.Equal(t, 1, served)
	assert.Equal(t, 1, rejected)

	open := AdminOnlyMiddleware(AdminOptions{})(counting(&served))
	require.NoError(t, open(messageFrom(b, 42)))
	assert.Equal(t, 1, served, "no admin configured rejects everyone")
}

func TestRecover(t *testing.T) {
	b := offlineBot(t)
	boom := func(tele.Context) error { panic("boom") }

	assert.NotPanics(t, func() {
		assert.NoError(t, Recover(nil)(boom)(messageFrom(b, 1)))
	})

	answered := 0
	assert.NotPanics(t, func() {
		assert.NoError(t, Recover(counting(&answered))(boom)(messageFrom(b, 1)))
	})
	assert.Equal(t, 1, answered)

	served := 0
	require.NoError(t, Recover(counting(&answered))(counting(&served))(messageFrom(b, 1)))
	assert.Equal(t, 1, served)
	assert.Equal(t, 1, answered, "onPanic only runs after a panic")
}

func TestIsAdmin(t *testing.T) {
	b := offlineBot(t)
	assert.True(t, IsAdmin(messageFrom(b, 42), 42))
	assert.False(t, IsAdmin(messageFrom(b, 7), 42))
	assert.False(t, IsAdmin(messageFrom(b, 0), 0))
	assert.False(t, IsAdmin(b.NewContext(tele.Update{}), 42))
}

type stubSend struct{ tele.Context }

func (stubSend) Send(interface{}, ...interface{}) error { return nil }

type recorder struct {
	kinds   []string
	replies int
	kb      bool
}

func (r *recorder) Update(kind string) { r.kinds = append(r.kinds, kind) }
func (r *recorder) Replies(n int, kb bool) {
	r.replies += n
	r.kb = r.kb || kb
}

func TestMessageMetrics(t *testing.T) {
	b := offlineBot(t)
	rec := &recorder{}
	h := MessageMetrics(rec)(func(c tele.Context) error {
		if err := c.Send("one"); err != nil {
			return err
		}
		return c.Send("two", &tele.ReplyMarkup{})
	})

	c := messageFrom(b, 1)
	require.NoError(t, h(stubSend{c}))

	msgs, kb := GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
	assert.Equal(t, []string{"message"}, rec.kinds)
	assert.Equal(t, 2, rec.replies)
}

func TestGetCounters_WithoutMetrics(t *testing.T) {
	msgs, kb := GetCounters(messageFrom(offlineBot(t), 1))
	assert.Zero(t, msgs)
	assert.False(t, kb)
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "inline_query", UpdateKind(tele.Update{Query: &tele.Query{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

func TestLoggerMiddleware_StoresMeta(t *testing.T) {
	b := offlineBot(t)
	calls := 0
	h := LoggerMiddleware(LoggerMiddleware(counting(&calls)))

	c := b.NewContext(tele.Update{ID: 123, Message: &tele.Message{
		Sender: &tele.User{ID: 789},
		Chat:   &tele.Chat{ID: 456, Type: tele.ChatPrivate},
		Text:   "+372 5555 5555",
	}})
	require.NoError(t, h(c))
	assert.Equal(t, 1, calls)
	assert.Equal(t, true, c.Get(loggedKey))

	ctx, ok := tghelpers.ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, logger.Meta{RID: "3f.co.lx", UpdateID: 123, UserID: 789, ChatID: 456}, logger.MetaFrom(ctx))

	attrs := receivedAttrs(c)
	for _, a := range attrs {
		assert.NotEqual(t, "payload", a.Key, "message text stays out of logs")
	}
}
