// Package storage keeps the salon schedule, bookings and client phones in
// PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/salon/booking"
)

const component = "db"

// Repository implements the booking log, availability and catalog source on
// top of the slots table.
type Repository struct {
	db  *sqlx.DB
	loc *time.Location
	now func() time.Time
}

// Option customises a Repository.
type Option func(*Repository)

// WithLocation sets the salon time zone used for dates.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// New wraps an open database handle.
func New(db *sqlx.DB, opts ...Option) *Repository {
	r := &Repository{db: db, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// today is the current salon date as a DATE literal.
func (r *Repository) today() string {
	return r.now().In(r.loc).Format(time.DateOnly)
}

func (r *Repository) logQuery(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	attrs = append(attrs,
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	if err != nil {
		logger.Error(ctx, component, "db.query", append(attrs, slog.String("err", err.Error()))...)
		return
	}
	logger.Debug(ctx, component, "db.query", attrs...)
}

const listServicesQuery = `
SELECT DISTINCT service, master
FROM slots
ORDER BY service, master`

// ListServices derives the catalog from the schedule.
func (r *Repository) ListServices(ctx context.Context) (map[string][]string, error) {
	start := time.Now()
	var rows []struct {
		Service string `db:"service"`
		Master  string `db:"master"`
	}
	err := r.db.SelectContext(ctx, &rows, listServicesQuery)
	r.logQuery(ctx, "list_services", start, err, slog.Int("count", len(rows)))
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	out := make(map[string][]string)
	for _, row := range rows {
		out[row.Service] = append(out[row.Service], row.Master)
	}
	return out, nil
}

const listDatesQuery = `
SELECT DISTINCT slot_date
FROM slots
WHERE service = $1
  AND ($2::text = '' OR master = $2)
  AND client_key IS NULL
  AND slot_date >= $3
ORDER BY slot_date`

// ListAvailableDates returns the upcoming days with at least one free slot.
func (r *Repository) ListAvailableDates(ctx context.Context, q booking.Query) ([]time.Time, error) {
	start := time.Now()
	var days []time.Time
	err := r.db.SelectContext(ctx, &days, listDatesQuery, q.Service, q.Master, r.today())
	r.logQuery(ctx, "list_dates", start, err, slog.Int("count", len(days)))
	if err != nil {
		return nil, fmt.Errorf("list available dates: %w", err)
	}
	for i, d := range days {
		days[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
	}
	return days, nil
}

const listTimesQuery = `
SELECT slot_time, bool_or(client_key IS NULL) AS free
FROM slots
WHERE service = $1
  AND ($2::text = '' OR master = $2)
  AND slot_date = $3
GROUP BY slot_time
ORDER BY slot_time`

// ListAvailableTimes maps every scheduled time of the day to whether a slot
// is still free.
func (r *Repository) ListAvailableTimes(ctx context.Context, q booking.Query) (map[string]bool, error) {
	start := time.Now()
	var rows []struct {
		Time string `db:"slot_time"`
		Free bool   `db:"free"`
	}
	err := r.db.SelectContext(ctx, &rows, listTimesQuery, q.Service, q.Master, q.Date.Format(time.DateOnly))
	r.logQuery(ctx, "list_times", start, err, slog.Int("count", len(rows)))
	if err != nil {
		return nil, fmt.Errorf("list available times: %w", err)
	}
	out := make(map[string]bool, len(rows))
	for _, row := range rows {
		out[row.Time] = row.Free
	}
	return out, nil
}

const listBookingsQuery = `
SELECT slot_date, slot_time, service, master
FROM slots
WHERE client_key = $1
  AND slot_date >= $2
ORDER BY slot_date, slot_time, service`

type bookingRow struct {
	Date    time.Time `db:"slot_date"`
	Time    string    `db:"slot_time"`
	Service string    `db:"service"`
	Master  string    `db:"master"`
}

// ListBookings returns the upcoming bookings made under userKey.
func (r *Repository) ListBookings(ctx context.Context, userKey string) ([]booking.Booking, error) {
	start := time.Now()
	var rows []bookingRow
	err := r.db.SelectContext(ctx, &rows, listBookingsQuery, userKey, r.today())
	r.logQuery(ctx, "list_bookings", start, err, slog.Int("count", len(rows)))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, booking.Booking{
			Date:    row.Date.Format(booking.DateLayout),
			Time:    row.Time,
			Service: row.Service,
			Master:  row.Master,
		})
	}
	return out, nil
}

const commitQuery = `
UPDATE slots SET client_key = $1, booked_at = now()
WHERE id = (
    SELECT id FROM slots
    WHERE service = $2
      AND ($3::text = '' OR master = $3)
      AND slot_date = $4
      AND slot_time = $5
      AND client_key IS NULL
    ORDER BY master
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING master`

// CommitBooking claims a free slot for userKey. It reports false when the
// slot is already taken. An empty master claims the first free master.
func (r *Repository) CommitBooking(ctx context.Context, b booking.Booking, userKey string) (bool, error) {
	day, err := time.ParseInLocation(booking.DateLayout, b.Date, r.loc)
	if err != nil {
		return false, fmt.Errorf("commit booking: date %q: %w", b.Date, err)
	}
	start := time.Now()
	var master string
	err = r.db.GetContext(ctx, &master, commitQuery,
		userKey, b.Service, b.Master, day.Format(time.DateOnly), b.Time)
	if errors.Is(err, sql.ErrNoRows) {
		r.logQuery(ctx, "commit", start, nil, slog.Bool("claimed", false))
		return false, nil
	}
	r.logQuery(ctx, "commit", start, err, slog.Bool("claimed", err == nil), slog.String("master", master))
	if err != nil {
		return false, fmt.Errorf("commit booking: %w", err)
	}
	return true, nil
}

const cancelQuery = `
UPDATE slots SET client_key = NULL, booked_at = NULL
WHERE client_key = $1
  AND service = $2
  AND ($3::text = '' OR master = $3)
  AND slot_date = $4
  AND slot_time = $5`

// CancelBooking releases a slot held by userKey. It reports false when no
// matching booking exists.
func (r *Repository) CancelBooking(ctx context.Context, b booking.Booking, userKey string) (bool, error) {
	day, err := time.ParseInLocation(booking.DateLayout, b.Date, r.loc)
	if err != nil {
		return false, fmt.Errorf("cancel booking: date %q: %w", b.Date, err)
	}
	start := time.Now()
	res, err := r.db.ExecContext(ctx, cancelQuery,
		userKey, b.Service, b.Master, day.Format(time.DateOnly), b.Time)
	var n int64
	if err == nil {
		n, err = res.RowsAffected()
	}
	r.logQuery(ctx, "cancel", start, err, slog.Int64("rows", n))
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	return n > 0, nil
}

// Occupancy counts upcoming slots.
type Occupancy struct {
	Booked int `db:"booked"`
	Free   int `db:"free"`
}

const occupancyQuery = `
SELECT count(client_key) AS booked, count(*) - count(client_key) AS free
FROM slots
WHERE slot_date >= $1`

// Occupancy reports how many upcoming slots are booked and free.
func (r *Repository) Occupancy(ctx context.Context) (Occupancy, error) {
	start := time.Now()
	var o Occupancy
	err := r.db.GetContext(ctx, &o, occupancyQuery, r.today())
	r.logQuery(ctx, "occupancy", start, err)
	if err != nil {
		return Occupancy{}, fmt.Errorf("occupancy: %w", err)
	}
	return o, nil
}
