package session

import (
	"errors"
	"maps"
	"slices"
	"time"
)

// ID identifies a session. The bot uses the Telegram chat id directly.
type ID int64

// Valid reports whether id can key a session.
func (id ID) Valid() bool {
	return id != 0
}

// Stage identifies a step of the conversation a session is in.
type Stage string

const (
	// StageIdle indicates there is no booking in progress.
	StageIdle Stage = "idle"
)

var (
	// ErrInvalidID is returned for malformed session identifiers.
	ErrInvalidID = errors.New("session: invalid id")
	// ErrNotFound is returned when an operation requires an existing record.
	ErrNotFound = errors.New("session: not found")
	// ErrInternal wraps faults recovered while the store lock was held.
	ErrInternal = errors.New("session: internal fault")
)

// Slot describes one booked appointment.
type Slot struct {
	Date    string // dd.mm.yy
	Time    string
	Service string
	Master  string
}

// Presentation remembers the last message rendered for a session.
type Presentation struct {
	ChatID      int64
	MessageID   int
	Fingerprint string
}

// Record is the booking-in-progress state of one session.
// Zero values mean "absent"; an empty Master past master selection means any master.
type Record struct {
	Stage Stage

	Service     string
	Master      string
	BookingDate string
	BookingTime string

	AvailableDates []time.Time
	AvailableTimes map[string]bool

	Bookings      []Slot
	PendingCancel *Slot

	Rendered *Presentation
}

// Clone returns a deep copy safe to read without the store lock.
func (r *Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	out := *r
	out.AvailableDates = slices.Clone(r.AvailableDates)
	if r.AvailableTimes != nil {
		out.AvailableTimes = maps.Clone(r.AvailableTimes)
	}
	out.Bookings = slices.Clone(r.Bookings)
	if r.PendingCancel != nil {
		pc := *r.PendingCancel
		out.PendingCancel = &pc
	}
	if r.Rendered != nil {
		p := *r.Rendered
		out.Rendered = &p
	}
	return out
}

// HasBooking reports whether every field required to commit a booking is set.
func (r *Record) HasBooking() bool {
	return r != nil && r.Service != "" && r.BookingDate != "" && r.BookingTime != ""
}

func (r *Record) clearTransient() {
	r.AvailableDates = nil
	r.AvailableTimes = nil
	r.Bookings = nil
	r.PendingCancel = nil
	r.Rendered = nil
}

func (r *Record) clearBooking() {
	r.Service = ""
	r.Master = ""
	r.BookingDate = ""
	r.BookingTime = ""
	r.Stage = StageIdle
}

// ClearResult is the outcome of Store.SoftClear.
type ClearResult int

const (
	// ClearFailed reports a malformed id or an internal fault.
	ClearFailed ClearResult = iota
	// ClearNotFound reports that no record exists for the id.
	ClearNotFound
	// Cleared reports that the record was reset.
	Cleared
)

// String implements fmt.Stringer.
func (r ClearResult) String() string {
	switch r {
	case Cleared:
		return "cleared"
	case ClearNotFound:
		return "not_found"
	default:
		return "failed"
	}
}
