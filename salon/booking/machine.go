package booking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/session"
)

const component = "booking"

// DefaultRequestTimeout bounds the collaborator calls of one action.
const DefaultRequestTimeout = 10 * time.Second

// ErrBadPayload rejects malformed button payloads.
var ErrBadPayload = errors.New("booking: malformed payload")

// Transition outcomes reported to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeStale    = "stale"
	OutcomeReset    = "reset"
	OutcomeFail     = "fail"
)

// Observer receives the outcome of every handled action.
type Observer interface {
	Transition(action, outcome string)
}

// Action is one user intent addressed to the machine.
type Action struct {
	Kind   ActionKind
	ChatID session.ID
	Client Client
	// Origin is the message that carried the tapped button, zero for commands.
	Origin  Handle
	Payload string
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Store        *session.Store
	Transport    Transport
	Catalog      Catalog
	Availability Availability
	Log          Log
	Observer     Observer
}

// Options tune a Machine.
type Options struct {
	RequestTimeout time.Duration
	Location       *time.Location
}

// Machine drives the booking conversation. Collaborators are called outside
// the store lock and results are applied with a stage compare-and-set.
type Machine struct {
	store     *session.Store
	transport Transport
	catalog   Catalog
	avail     Availability
	log       Log
	observer  Observer

	timeout time.Duration
	loc     *time.Location
}

// NewMachine validates deps and builds a Machine.
func NewMachine(deps Deps, opts Options) (*Machine, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("booking: store is required")
	case deps.Transport == nil:
		return nil, errors.New("booking: transport is required")
	case deps.Catalog == nil:
		return nil, errors.New("booking: catalog is required")
	case deps.Availability == nil:
		return nil, errors.New("booking: availability is required")
	case deps.Log == nil:
		return nil, errors.New("booking: booking log is required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Machine{
		store:     deps.Store,
		transport: deps.Transport,
		catalog:   deps.Catalog,
		avail:     deps.Availability,
		log:       deps.Log,
		observer:  deps.Observer,
		timeout:   opts.RequestTimeout,
		loc:       opts.Location,
	}, nil
}

// Handle processes act. Stale taps are dropped, illegal ones return the user
// to the main menu and collaborator failures end with a "try again" notice.
// The returned error is non-nil only when the user could not be informed.
func (m *Machine) Handle(ctx context.Context, act Action) error {
	if !act.ChatID.Valid() {
		return session.ErrInvalidID
	}
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.dispatch(reqCtx, act)
	cancel()

	outcome := OutcomeOK
	attrs := []slog.Attr{
		slog.String("action", string(act.Kind)),
		slog.Int64("chat_id", int64(act.ChatID)),
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrBadPayload), errors.Is(err, ErrUnknownAction):
		outcome = OutcomeRejected
		logger.Warn(ctx, component, "booking.reject", append(attrs,
			slog.String("status", "skip"),
			slog.String("err", err.Error()),
		)...)
		err = nil
	case errors.Is(err, ErrStaleAction):
		outcome = OutcomeStale
		logger.Debug(ctx, component, "booking.stale", append(attrs,
			slog.String("status", "skip"),
			slog.String("err", err.Error()),
		)...)
		err = nil
	case errors.Is(err, ErrIllegalTransition), errors.Is(err, session.ErrNotFound):
		outcome = OutcomeReset
		logger.Info(ctx, component, "booking.reset", append(attrs,
			slog.String("status", "skip"),
			slog.String("reason", err.Error()),
		)...)
		fctx, fcancel := m.fallbackContext(ctx)
		err = m.showMenu(fctx, act.ChatID, act.Origin)
		fcancel()
	default:
		outcome = OutcomeFail
		logger.Error(ctx, component, "booking.fail", append(attrs,
			slog.String("status", "fail"),
			slog.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			slog.String("err", err.Error()),
		)...)
		fctx, fcancel := m.fallbackContext(ctx)
		if nerr := m.transport.Notify(fctx, act.ChatID, textTryAgain); nerr != nil {
			err = errors.Join(err, fmt.Errorf("notify: %w", nerr))
		} else {
			err = nil
		}
		fcancel()
	}

	if outcome == OutcomeOK {
		logger.Debug(ctx, component, "booking.handle", append(attrs,
			slog.String("status", "ok"),
			slog.Duration("duration", logger.Took(start)),
		)...)
	}
	if m.observer != nil {
		m.observer.Transition(string(act.Kind), outcome)
	}
	return err
}

func (m *Machine) fallbackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
}

func (m *Machine) dispatch(ctx context.Context, act Action) error {
	switch act.Kind {
	case ActMenu:
		return m.showMenu(ctx, act.ChatID, act.Origin)
	case ActBook:
		return m.book(ctx, act)
	case ActSelectService:
		return m.selectService(ctx, act)
	case ActSelectMaster:
		return m.selectMaster(ctx, act)
	case ActCalendar:
		return m.calendar(ctx, act)
	case ActSelectTime:
		return m.selectTime(ctx, act)
	case ActConfirm:
		return m.confirm(ctx, act)
	case ActMyBookings:
		return m.myBookings(ctx, act)
	case ActCancelList:
		return m.cancelList(ctx, act)
	case ActCancelPick:
		return m.cancelPick(ctx, act)
	case ActCancelApprove:
		return m.cancelApprove(ctx, act)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, act.Kind)
	}
}

func stageOf(rec *session.Record) session.Stage {
	if rec == nil || rec.Stage == "" {
		return StageIdle
	}
	return rec.Stage
}

// advance applies fn when the record is still at from. With create set the
// record is allocated on demand.
func (m *Machine) advance(id session.ID, from session.Stage, create bool, fn func(*session.Record)) error {
	apply := func(rec *session.Record) error {
		if cur := stageOf(rec); cur != from {
			return fmt.Errorf("%w: stage %s, expected %s", ErrStaleAction, cur, from)
		}
		fn(rec)
		return nil
	}
	if create {
		return m.store.Mutate(id, apply)
	}
	if err := m.store.Update(id, apply); err != nil {
		return err
	}
	m.store.Touch(id)
	return nil
}

func resetFlow(rec *session.Record) {
	rec.Service = ""
	rec.Master = ""
	rec.BookingDate = ""
	rec.BookingTime = ""
	rec.AvailableDates = nil
	rec.AvailableTimes = nil
	rec.Bookings = nil
	rec.PendingCancel = nil
}

// render shows v in place of origin, sending a new message when there is no
// origin or the edit fails. An identical view on the same message is skipped.
func (m *Machine) render(ctx context.Context, id session.ID, origin Handle, v View) error {
	fp := v.Fingerprint()
	if !origin.IsZero() {
		if rec, ok := m.store.Get(id); ok && rec.Rendered != nil &&
			rec.Rendered.ChatID == origin.ChatID &&
			rec.Rendered.MessageID == origin.MessageID &&
			rec.Rendered.Fingerprint == fp {
			logger.Debug(ctx, component, "render.skip",
				slog.Int64("chat_id", int64(id)),
				slog.Int("message_id", origin.MessageID),
			)
			return nil
		}
	}
	h, err := m.editOrSend(ctx, id, origin, v)
	if err != nil {
		return err
	}
	_ = m.store.Update(id, func(rec *session.Record) error {
		rec.Rendered = &session.Presentation{ChatID: h.ChatID, MessageID: h.MessageID, Fingerprint: fp}
		return nil
	})
	return nil
}

func (m *Machine) editOrSend(ctx context.Context, id session.ID, origin Handle, v View) (Handle, error) {
	if !origin.IsZero() {
		err := m.transport.Edit(ctx, origin, v)
		if err == nil {
			return origin, nil
		}
		if ctx.Err() != nil {
			return Handle{}, fmt.Errorf("edit view: %w", err)
		}
		logger.Warn(ctx, component, "render.edit",
			slog.String("status", "fail"),
			slog.Int64("chat_id", int64(id)),
			slog.String("err", err.Error()),
		)
	}
	h, err := m.transport.Send(ctx, id, v)
	if err != nil {
		return Handle{}, fmt.Errorf("send view: %w", err)
	}
	return h, nil
}

func (m *Machine) sendMenu(ctx context.Context, id session.ID) (Handle, error) {
	h, err := m.transport.Send(ctx, id, menuView())
	if err != nil {
		return Handle{}, fmt.Errorf("send menu: %w", err)
	}
	return h, nil
}

// showMenu resets the flow, removes the previous presentation and sends the
// main menu.
func (m *Machine) showMenu(ctx context.Context, id session.ID, origin Handle) error {
	m.store.SoftClear(id, false, false)
	if !origin.IsZero() {
		if err := m.transport.Delete(ctx, origin); err != nil {
			logger.Warn(ctx, component, "render.delete",
				slog.String("status", "fail"),
				slog.Int64("chat_id", int64(id)),
				slog.String("err", err.Error()),
			)
		}
	}
	h, err := m.sendMenu(ctx, id)
	if err != nil {
		return err
	}
	fp := menuView().Fingerprint()
	_ = m.store.Update(id, func(rec *session.Record) error {
		rec.Rendered = &session.Presentation{ChatID: h.ChatID, MessageID: h.MessageID, Fingerprint: fp}
		return nil
	})
	return nil
}

func (m *Machine) book(ctx context.Context, act Action) error {
	snap, _ := m.store.Get(act.ChatID)
	from := stageOf(&snap)
	next, _, err := Next(from, ActBook)
	if err != nil {
		return err
	}
	services, err := m.catalog.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	err = m.advance(act.ChatID, from, true, func(rec *session.Record) {
		resetFlow(rec)
		rec.Stage = next
	})
	if err != nil {
		return err
	}
	m.store.DropMarker(act.ChatID)
	return m.render(ctx, act.ChatID, act.Origin, servicesView(services))
}

func (m *Machine) selectService(ctx context.Context, act Action) error {
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	from := stageOf(&snap)
	next, _, err := Next(from, ActSelectService)
	if err != nil {
		return err
	}
	if act.Payload == "" {
		return fmt.Errorf("%w: empty service", ErrBadPayload)
	}
	services, err := m.catalog.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	masters, ok := services[act.Payload]
	if !ok {
		return fmt.Errorf("%w: service %q is not offered", ErrStaleAction, act.Payload)
	}
	err = m.advance(act.ChatID, from, false, func(rec *session.Record) {
		resetFlow(rec)
		rec.Service = act.Payload
		rec.Stage = next
	})
	if err != nil {
		return err
	}
	m.store.DropMarker(act.ChatID)
	return m.render(ctx, act.ChatID, act.Origin, mastersView(masters))
}

func (m *Machine) selectMaster(ctx context.Context, act Action) error {
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	from := stageOf(&snap)
	next, _, err := Next(from, ActSelectMaster)
	if err != nil {
		return err
	}
	if snap.Service == "" {
		return fmt.Errorf("%w: no service chosen", ErrIllegalTransition)
	}
	master := act.Payload
	switch master {
	case "":
		return fmt.Errorf("%w: empty master", ErrBadPayload)
	case AnyMaster:
		master = ""
	default:
		services, err := m.catalog.ListServices(ctx)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		if !slices.Contains(services[snap.Service], master) {
			return fmt.Errorf("%w: master %q does not offer %q", ErrStaleAction, master, snap.Service)
		}
	}

	dates, err := m.avail.ListAvailableDates(ctx, Query{Service: snap.Service, Master: master})
	if err != nil {
		return fmt.Errorf("list dates: %w", err)
	}
	if len(dates) == 0 {
		return m.render(ctx, act.ChatID, act.Origin, noDatesView(snap.Service))
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	err = m.advance(act.ChatID, from, false, func(rec *session.Record) {
		rec.Master = master
		rec.BookingDate = ""
		rec.BookingTime = ""
		rec.AvailableDates = dates
		rec.AvailableTimes = nil
		rec.Stage = next
	})
	if err != nil {
		return err
	}
	marker, err := m.store.IssueMarker(act.ChatID)
	if err != nil {
		return fmt.Errorf("issue marker: %w", err)
	}
	return m.render(ctx, act.ChatID, act.Origin, calendarView(marker, dates[0], dates, snap.Service))
}

func (m *Machine) calendar(ctx context.Context, act Action) error {
	p, err := parseCalendarPayload(act.Payload, m.loc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if p.Op == calNoop {
		return nil
	}
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	if marker, ok := m.store.Marker(act.ChatID); !ok || marker != p.Marker {
		return fmt.Errorf("%w: calendar marker mismatch", ErrStaleAction)
	}

	if p.Op == calDay {
		return m.selectDate(ctx, act, snap, p.Date)
	}
	if _, _, err := Next(stageOf(&snap), ActCalendarPage); err != nil {
		return err
	}
	m.store.Touch(act.ChatID)
	return m.render(ctx, act.ChatID, act.Origin, calendarView(p.Marker, p.Date, snap.AvailableDates, snap.Service))
}

func (m *Machine) selectDate(ctx context.Context, act Action, snap session.Record, day time.Time) error {
	from := stageOf(&snap)
	next, _, err := Next(from, ActSelectDate)
	if err != nil {
		return err
	}
	if !containsDay(snap.AvailableDates, day) {
		return fmt.Errorf("%w: %s is not offered", ErrStaleAction, dayKey(day))
	}
	times, err := m.avail.ListAvailableTimes(ctx, Query{Service: snap.Service, Master: snap.Master, Date: day})
	if err != nil {
		return fmt.Errorf("list times: %w", err)
	}
	free := freeTimes(times)
	if len(free) == 0 {
		return m.render(ctx, act.ChatID, act.Origin, noTimesView(snap.Master))
	}

	err = m.advance(act.ChatID, from, false, func(rec *session.Record) {
		rec.BookingDate = day.Format(DateLayout)
		rec.BookingTime = ""
		rec.AvailableDates = nil
		rec.AvailableTimes = times
		rec.Stage = next
	})
	if err != nil {
		return err
	}
	m.store.DropMarker(act.ChatID)
	return m.render(ctx, act.ChatID, act.Origin, timesView(free, snap.Master))
}

func freeTimes(times map[string]bool) []string {
	free := make([]string, 0, len(times))
	for t, ok := range times {
		if ok {
			free = append(free, t)
		}
	}
	slices.Sort(free)
	return free
}

func (m *Machine) selectTime(ctx context.Context, act Action) error {
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	from := stageOf(&snap)
	next, _, err := Next(from, ActSelectTime)
	if err != nil {
		return err
	}
	if !snap.AvailableTimes[act.Payload] {
		return fmt.Errorf("%w: time %q is not free", ErrStaleAction, act.Payload)
	}
	err = m.advance(act.ChatID, from, false, func(rec *session.Record) {
		rec.BookingTime = act.Payload
		rec.Stage = next
	})
	if err != nil {
		return err
	}

	b := Booking{Date: snap.BookingDate, Time: act.Payload, Service: snap.Service, Master: snap.Master}
	if err := m.render(ctx, act.ChatID, act.Origin, summaryView(b)); err != nil {
		return err
	}
	shown, _, err := Next(next, ActSummaryShown)
	if err != nil {
		return err
	}
	return m.advance(act.ChatID, next, false, func(rec *session.Record) {
		rec.AvailableTimes = nil
		rec.Stage = shown
	})
}

func (m *Machine) confirm(ctx context.Context, act Action) error {
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	from := stageOf(&snap)
	if from == StageCommitting {
		return fmt.Errorf("%w: booking commit in progress", ErrStaleAction)
	}
	next, _, err := Next(from, ActConfirm)
	if err != nil {
		return err
	}

	var b Booking
	err = m.claim(act.ChatID, from, StageCommitting, func(rec *session.Record) error {
		if !rec.HasBooking() {
			return fmt.Errorf("%w: booking is incomplete", ErrIllegalTransition)
		}
		b = Booking{Date: rec.BookingDate, Time: rec.BookingTime, Service: rec.Service, Master: rec.Master}
		return nil
	})
	if err != nil {
		return err
	}

	committed, err := m.log.CommitBooking(ctx, b, act.Client.Key())
	if err != nil {
		m.release(act.ChatID, StageCommitting, from)
		return fmt.Errorf("commit booking: %w", err)
	}
	if !committed {
		m.release(act.ChatID, StageCommitting, from)
		logger.Info(ctx, component, "booking.commit",
			slog.String("status", "skip"),
			slog.Int64("chat_id", int64(act.ChatID)),
			slog.String("reason", "slot_taken"),
		)
		if err := m.transport.Notify(ctx, act.ChatID, textSlotTaken); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return nil
	}
	logger.Info(ctx, component, "booking.commit",
		slog.String("status", "ok"),
		slog.Int64("chat_id", int64(act.ChatID)),
		slog.String("service", b.Service),
		slog.String("date", b.Date),
		slog.String("time", b.Time),
	)

	err = m.advance(act.ChatID, StageCommitting, false, func(rec *session.Record) {
		rec.Stage = next
	})
	switch {
	case err == nil:
		if err := m.render(ctx, act.ChatID, act.Origin, bookedView(b)); err != nil {
			return err
		}
	case errors.Is(err, ErrStaleAction), errors.Is(err, session.ErrNotFound):
		// The session moved on while committing; the booking still stands.
		logger.Info(ctx, component, "booking.commit.detached",
			slog.Int64("chat_id", int64(act.ChatID)),
			slog.String("reason", err.Error()),
		)
	default:
		return err
	}
	if err := m.transport.Notify(ctx, act.ChatID, textConfirmedNote); err != nil {
		logger.Warn(ctx, component, "booking.notify",
			slog.String("status", "fail"),
			slog.Int64("chat_id", int64(act.ChatID)),
			slog.String("err", err.Error()),
		)
	}
	return nil
}

// claim moves the session from from to the in-flight stage under the store
// lock, after read has copied what the booking log call needs.
func (m *Machine) claim(id session.ID, from, inflight session.Stage, read func(*session.Record) error) error {
	err := m.store.Update(id, func(rec *session.Record) error {
		if cur := stageOf(rec); cur != from {
			return fmt.Errorf("%w: stage %s, expected %s", ErrStaleAction, cur, from)
		}
		if err := read(rec); err != nil {
			return err
		}
		rec.Stage = inflight
		return nil
	})
	if err != nil {
		return err
	}
	m.store.Touch(id)
	return nil
}

// release puts a session still in the in-flight stage back to back.
func (m *Machine) release(id session.ID, inflight, back session.Stage) {
	_ = m.store.Update(id, func(rec *session.Record) error {
		if stageOf(rec) == inflight {
			rec.Stage = back
		}
		return nil
	})
}

// sortBookings orders by date, time, then service.
func sortBookings(list []Booking) {
	parse := func(s string) time.Time {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	slices.SortStableFunc(list, func(a, b Booking) int {
		return cmp.Or(
			parse(a.Date).Compare(parse(b.Date)),
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Time, b.Time),
			cmp.Compare(a.Service, b.Service),
		)
	})
}

func (m *Machine) myBookings(ctx context.Context, act Action) error {
	if _, _, err := Next(StageIdle, ActMyBookings); err != nil {
		return err
	}
	list, err := m.log.ListBookings(ctx, act.Client.Key())
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	sortBookings(list)
	if _, err := m.editOrSend(ctx, act.ChatID, act.Origin, bookingsView(list)); err != nil {
		return err
	}
	_, err = m.sendMenu(ctx, act.ChatID)
	return err
}

func (m *Machine) cancelList(ctx context.Context, act Action) error {
	snap, _ := m.store.Get(act.ChatID)
	from := stageOf(&snap)
	next, _, err := Next(from, ActCancelList)
	if err != nil {
		return err
	}
	list, err := m.log.ListBookings(ctx, act.Client.Key())
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	if len(list) == 0 {
		if _, err := m.editOrSend(ctx, act.ChatID, act.Origin, View{Text: textNothingCancel}); err != nil {
			return err
		}
		_, err = m.sendMenu(ctx, act.ChatID)
		return err
	}
	sortBookings(list)

	err = m.advance(act.ChatID, from, true, func(rec *session.Record) {
		resetFlow(rec)
		rec.Bookings = list
		rec.Stage = next
	})
	if err != nil {
		return err
	}
	m.store.DropMarker(act.ChatID)
	return m.render(ctx, act.ChatID, act.Origin, cancelListView(list))
}

func (m *Machine) cancelPick(ctx context.Context, act Action) error {
	idx, err := strconv.Atoi(act.Payload)
	if err != nil {
		return fmt.Errorf("%w: cancel index %q", ErrBadPayload, act.Payload)
	}
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	from := stageOf(&snap)
	next, _, err := Next(from, ActCancelPick)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(snap.Bookings) {
		return fmt.Errorf("%w: no listed booking at %d", session.ErrNotFound, idx)
	}
	target := snap.Bookings[idx]
	err = m.advance(act.ChatID, from, false, func(rec *session.Record) {
		picked := target
		rec.PendingCancel = &picked
		rec.Stage = next
	})
	if err != nil {
		return err
	}
	return m.render(ctx, act.ChatID, act.Origin, askCancelView(target))
}

func (m *Machine) cancelApprove(ctx context.Context, act Action) error {
	snap, ok := m.store.Get(act.ChatID)
	if !ok {
		return session.ErrNotFound
	}
	from := stageOf(&snap)
	if from == StageCancelling {
		return fmt.Errorf("%w: cancellation in progress", ErrStaleAction)
	}
	next, _, err := Next(from, ActCancelApprove)
	if err != nil {
		return err
	}

	var target Booking
	err = m.claim(act.ChatID, from, StageCancelling, func(rec *session.Record) error {
		if rec.PendingCancel == nil {
			return fmt.Errorf("%w: nothing picked for cancellation", session.ErrNotFound)
		}
		target = *rec.PendingCancel
		return nil
	})
	if err != nil {
		return err
	}

	cancelled, err := m.log.CancelBooking(ctx, target, act.Client.Key())
	if err != nil {
		m.release(act.ChatID, StageCancelling, from)
		return fmt.Errorf("cancel booking: %w", err)
	}

	text, status := textCancelFailed, "fail"
	if cancelled {
		text, status = textCancelled, "ok"
		err = m.advance(act.ChatID, StageCancelling, false, func(rec *session.Record) {
			rec.PendingCancel = nil
			rec.Stage = next
		})
		if err != nil && !errors.Is(err, ErrStaleAction) && !errors.Is(err, session.ErrNotFound) {
			return err
		}
	} else {
		m.release(act.ChatID, StageCancelling, from)
	}
	logger.Info(ctx, component, "booking.cancel",
		slog.String("status", status),
		slog.Int64("chat_id", int64(act.ChatID)),
		slog.String("date", target.Date),
		slog.String("time", target.Time),
	)
	if _, err := m.editOrSend(ctx, act.ChatID, act.Origin, View{Text: text}); err != nil {
		return err
	}
	return m.showMenu(ctx, act.ChatID, Handle{})
}
