package booking

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/salonbot/core/session"
)

type sentView struct {
	ChatID session.ID
	Handle Handle
	View   View
}

type editedView struct {
	Handle Handle
	View   View
}

type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentView
	edits    []editedView
	deleted  []Handle
	notes    []string
	editErr  error
	notifyFn func(ctx context.Context) error
}

func (t *fakeTransport) Send(_ context.Context, chatID session.ID, v View) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	h := Handle{ChatID: int64(chatID), MessageID: t.nextID}
	t.sent = append(t.sent, sentView{ChatID: chatID, Handle: h, View: v})
	return h, nil
}

func (t *fakeTransport) Edit(_ context.Context, h Handle, v View) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.editErr != nil {
		return t.editErr
	}
	t.edits = append(t.edits, editedView{Handle: h, View: v})
	return nil
}

func (t *fakeTransport) Delete(_ context.Context, h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleted = append(t.deleted, h)
	return nil
}

func (t *fakeTransport) Notify(ctx context.Context, _ session.ID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.notifyFn != nil {
		if err := t.notifyFn(ctx); err != nil {
			return err
		}
	}
	t.notes = append(t.notes, text)
	return nil
}

func (t *fakeTransport) lastSent() sentView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent[len(t.sent)-1]
}

func (t *fakeTransport) lastEdit() editedView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits[len(t.edits)-1]
}

type fakeCatalog struct {
	services map[string][]string
	err      error
}

func (c *fakeCatalog) ListServices(context.Context) (map[string][]string, error) {
	return c.services, c.err
}

type fakeAvailability struct {
	mu      sync.Mutex
	dates   []time.Time
	times   map[string]bool
	queries []Query
	block   bool
}

func (a *fakeAvailability) ListAvailableDates(ctx context.Context, q Query) ([]time.Time, error) {
	a.mu.Lock()
	a.queries = append(a.queries, q)
	block := a.block
	dates := append([]time.Time(nil), a.dates...)
	a.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return dates, nil
}

func (a *fakeAvailability) ListAvailableTimes(_ context.Context, q Query) (map[string]bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, q)
	out := make(map[string]bool, len(a.times))
	for k, v := range a.times {
		out[k] = v
	}
	return out, nil
}

type commitCall struct {
	Booking Booking
	UserKey string
}

type fakeLog struct {
	mu        sync.Mutex
	bookings  map[string][]Booking
	accept    bool
	commits   []commitCall
	cancels   []commitCall
	cancelOK  bool
	listCalls int
	// gate, when set, holds commits and cancels until it is closed.
	gate chan struct{}
}

func (l *fakeLog) calls() (commits, cancels int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.commits), len(l.cancels)
}

func (l *fakeLog) ListBookings(_ context.Context, userKey string) ([]Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listCalls++
	return append([]Booking(nil), l.bookings[userKey]...), nil
}

func (l *fakeLog) CommitBooking(_ context.Context, b Booking, userKey string) (bool, error) {
	l.mu.Lock()
	l.commits = append(l.commits, commitCall{Booking: b, UserKey: userKey})
	accept, gate := l.accept, l.gate
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return accept, nil
}

func (l *fakeLog) CancelBooking(_ context.Context, b Booking, userKey string) (bool, error) {
	l.mu.Lock()
	l.cancels = append(l.cancels, commitCall{Booking: b, UserKey: userKey})
	ok, gate := l.cancelOK, l.gate
	l.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return ok, nil
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) Transition(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, action+":"+outcome)
}
