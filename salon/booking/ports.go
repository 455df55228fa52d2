package booking

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/m3rciful/salonbot/core/session"
)

// DateLayout is the dd.mm.yy format used by the booking log.
const DateLayout = "02.01.06"

// Booking is one appointment as stored in the booking log.
type Booking = session.Slot

// Handle addresses a rendered message.
type Handle struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the handle points nowhere.
func (h Handle) IsZero() bool {
	return h.ChatID == 0 || h.MessageID == 0
}

// Option is a selectable button of a View.
type Option struct {
	Text    string
	Key     string
	Payload string
}

// View is a text with rows of options.
type View struct {
	Text string
	Rows [][]Option
}

// Fingerprint identifies the rendered content of v.
func (v View) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%q", v.Text)
	for _, row := range v.Rows {
		h.Write([]byte{'\n'})
		for _, o := range row {
			fmt.Fprintf(h, "[%q|%q|%q]", o.Text, o.Key, o.Payload)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Transport delivers views to the user.
type Transport interface {
	Send(ctx context.Context, chatID session.ID, v View) (Handle, error)
	Edit(ctx context.Context, h Handle, v View) error
	Delete(ctx context.Context, h Handle) error
	Notify(ctx context.Context, chatID session.ID, text string) error
}

// Catalog lists services and the masters offering each.
type Catalog interface {
	ListServices(ctx context.Context) (map[string][]string, error)
}

// Query narrows availability lookups. An empty Master means any master.
type Query struct {
	Service string
	Master  string
	Date    time.Time
}

// Availability reports free dates and times.
type Availability interface {
	ListAvailableDates(ctx context.Context, q Query) ([]time.Time, error)
	ListAvailableTimes(ctx context.Context, q Query) (map[string]bool, error)
}

// Log persists bookings.
type Log interface {
	ListBookings(ctx context.Context, userKey string) ([]Booking, error)
	CommitBooking(ctx context.Context, b Booking, userKey string) (bool, error)
	CancelBooking(ctx context.Context, b Booking, userKey string) (bool, error)
}

// Client identifies the person booking.
type Client struct {
	ID       int64
	Username string
	Phone    string
}

// Key renders the client reference written to the booking log.
func (c Client) Key() string {
	phone := c.Phone
	if phone == "" {
		phone = "None"
	}
	return fmt.Sprintf("id: %d\n@%s\ntel: %s", c.ID, c.Username, phone)
}
