package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarPayloadRoundTrip(t *testing.T) {
	p := calendarPayload{Marker: "3f2c", Op: calDay, Date: day(2025, 5, 2)}
	assert.Equal(t, "3f2c:day:2025:05:02", p.String())

	got, err := parseCalendarPayload(p.String(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParseCalendarPayloadRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		":day:2025:05:02",
		"m:day:2025:13:02",
		"m:day:2025:05:xx",
		"m:jump:2025:05:02",
		"m:day:2025:05",
	} {
		_, err := parseCalendarPayload(raw, time.UTC)
		assert.Error(t, err, raw)
	}
}

func TestCalendarView(t *testing.T) {
	v := calendarView("m1", day(2025, 5, 14), []time.Time{day(2025, 5, 22)}, testService)

	assert.Equal(t, textChooseDate, v.Text)
	assert.Equal(t, "Май 2025", v.Rows[0][0].Text)
	assert.Len(t, v.Rows[1], 7)

	// May 2025 starts on a Thursday.
	firstWeek := v.Rows[2]
	assert.Equal(t, " ", firstWeek[2].Text)
	assert.Equal(t, "1", firstWeek[3].Text)

	var selectable []Option
	for _, row := range v.Rows[2 : len(v.Rows)-2] {
		assert.Len(t, row, 7)
		for _, o := range row {
			if o.Text == "22✅" {
				selectable = append(selectable, o)
			}
		}
	}
	require.Len(t, selectable, 1)
	assert.Equal(t, "m1:day:2025:05:22", selectable[0].Payload)

	nav := v.Rows[len(v.Rows)-2]
	assert.Equal(t, "m1:prev:2025:04:01", nav[0].Payload)
	assert.Equal(t, "m1:next:2025:06:01", nav[1].Payload)

	back := v.Rows[len(v.Rows)-1]
	assert.Equal(t, Option{Text: labelBack, Key: string(ActSelectService), Payload: testService}, back[0])
}

func TestViewFingerprint(t *testing.T) {
	a := menuView()
	b := menuView()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Rows[0][0].Payload = "x"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), View{Text: a.Text}.Fingerprint())
}
