package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar callback operations.
const (
	calDay  = "day"
	calPrev = "prev"
	calNext = "next"
	calNoop = "noop"
)

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var weekdayNames = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// calendarPayload is the decoded payload of a calendar button.
type calendarPayload struct {
	Marker string
	Op     string
	Date   time.Time
}

func (p calendarPayload) String() string {
	return fmt.Sprintf("%s:%s:%04d:%02d:%02d",
		p.Marker, p.Op, p.Date.Year(), int(p.Date.Month()), p.Date.Day())
}

func parseCalendarPayload(s string, loc *time.Location) (calendarPayload, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 || parts[0] == "" {
		return calendarPayload{}, fmt.Errorf("calendar payload %q: want 5 fields", s)
	}
	var nums [3]int
	for i, raw := range parts[2:] {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return calendarPayload{}, fmt.Errorf("calendar payload %q: %w", s, err)
		}
		nums[i] = n
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
		return calendarPayload{}, fmt.Errorf("calendar payload %q: date out of range", s)
	}
	switch parts[1] {
	case calDay, calPrev, calNext, calNoop:
	default:
		return calendarPayload{}, fmt.Errorf("calendar payload %q: unknown op %q", s, parts[1])
	}
	return calendarPayload{
		Marker: parts[0],
		Op:     parts[1],
		Date:   time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, loc),
	}, nil
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func containsDay(dates []time.Time, d time.Time) bool {
	k := dayKey(d)
	for _, x := range dates {
		if dayKey(x) == k {
			return true
		}
	}
	return false
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// calendarView renders a Monday-first month grid where available days carry a
// check mark and are selectable.
func calendarView(marker string, month time.Time, dates []time.Time, service string) View {
	first := firstOfMonth(month)
	btn := func(text, op string, d time.Time) Option {
		return Option{
			Text:    text,
			Key:     string(ActCalendar),
			Payload: calendarPayload{Marker: marker, Op: op, Date: d}.String(),
		}
	}

	rows := [][]Option{{btn(fmt.Sprintf("%s %d", monthNames[first.Month()-1], first.Year()), calNoop, first)}}

	header := make([]Option, 0, len(weekdayNames))
	for _, wd := range weekdayNames {
		header = append(header, btn(wd, calNoop, first))
	}
	rows = append(rows, header)

	offset := (int(first.Weekday()) + 6) % 7
	week := make([]Option, 0, 7)
	for range offset {
		week = append(week, btn(" ", calNoop, first))
	}
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if containsDay(dates, d) {
			week = append(week, btn(strconv.Itoa(d.Day())+"✅", calDay, d))
		} else {
			week = append(week, btn(strconv.Itoa(d.Day()), calNoop, d))
		}
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]Option, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, btn(" ", calNoop, first))
		}
		rows = append(rows, week)
	}

	rows = append(rows,
		[]Option{
			btn("<", calPrev, first.AddDate(0, -1, 0)),
			btn(">", calNext, first.AddDate(0, 1, 0)),
		},
		backToServiceRow(service),
	)
	return View{Text: textChooseDate, Rows: rows}
}
