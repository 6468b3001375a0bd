// Package calendar implements working-day arithmetic over a models.Calendar.
//
// A nil *Calendar is valid and treats every day as a working day, so
// schedules without a calendar go through the same shifting code as
// schedules with one.
package calendar

import (
	"strings"
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// DateLayout is the civil date format used on the command line and in SQLite.
const DateLayout = "2006-01-02"

// maxIdleDays bounds a scan through consecutive non-working days.
const maxIdleDays = 3660

type monthDay struct {
	month time.Month
	day   int
}

// Calendar classifies dates. Build one with New.
type Calendar struct {
	name      string
	weekdays  [7]bool
	exact     map[time.Time]bool
	recurring map[monthDay]bool
}

// New compiles a calendar definition. A nil definition yields a nil
// *Calendar, which treats every day as working.
func New(def *models.Calendar) *Calendar {
	if def == nil {
		return nil
	}
	c := &Calendar{
		name:      def.Name,
		exact:     make(map[time.Time]bool),
		recurring: make(map[monthDay]bool),
	}
	for _, wd := range def.WorkingDays {
		if wd >= time.Sunday && wd <= time.Saturday {
			c.weekdays[wd] = true
		}
	}
	for _, ex := range def.Exceptions {
		working := ex.Type == models.ExceptionWorking
		d := Day(ex.Date)
		if ex.Recurring {
			c.recurring[monthDay{d.Month(), d.Day()}] = working
		} else {
			c.exact[d] = working
		}
	}
	return c
}

// Name returns the calendar name, or "" for the nil calendar.
func (c *Calendar) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// IsWorkingDay applies the exact-date exception first, then a recurring
// month/day exception, then weekday membership.
func (c *Calendar) IsWorkingDay(date time.Time) bool {
	if c == nil {
		return true
	}
	d := Day(date)
	if working, ok := c.exact[d]; ok {
		return working
	}
	if working, ok := c.recurring[monthDay{d.Month(), d.Day()}]; ok {
		return working
	}
	return c.weekdays[d.Weekday()]
}

// ShiftForward returns the n-th working day strictly after date.
func (c *Calendar) ShiftForward(date time.Time, n int) (time.Time, error) {
	return c.step(date, n, 1, "shift forward")
}

// ShiftBackward returns the n-th working day strictly before date.
func (c *Calendar) ShiftBackward(date time.Time, n int) (time.Time, error) {
	return c.step(date, n, -1, "shift backward")
}

// Shift moves date by a signed lag: forward for lag >= 0, backward otherwise.
func (c *Calendar) Shift(date time.Time, lag int) (time.Time, error) {
	if lag < 0 {
		return c.ShiftBackward(date, -lag)
	}
	return c.ShiftForward(date, lag)
}

func (c *Calendar) step(date time.Time, n, dir int, op string) (time.Time, error) {
	if n < 0 {
		return time.Time{}, apperr.Validationf(op, "day count must not be negative, got %d", n)
	}
	d := Day(date)
	idle := 0
	for n > 0 {
		d = d.AddDate(0, 0, dir)
		if c.IsWorkingDay(d) {
			n--
			idle = 0
			continue
		}
		idle++
		if idle > maxIdleDays {
			return time.Time{}, apperr.Validationf(op, "calendar %q has no working days after %s", c.Name(), Format(date))
		}
	}
	return d, nil
}

// CountWorkingDaysBetween counts the working days in (a, b]. Equal dates
// give 0 and b before a gives the negated count of (b, a], which makes it
// the inverse of ShiftForward.
func (c *Calendar) CountWorkingDaysBetween(a, b time.Time) int {
	a, b = Day(a), Day(b)
	if a.Equal(b) {
		return 0
	}
	sign := 1
	if b.Before(a) {
		a, b = b, a
		sign = -1
	}
	count := 0
	for d := a.AddDate(0, 0, 1); !d.After(b); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			count++
		}
	}
	return sign * count
}

// Day truncates t to its civil date at midnight UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.New(apperr.ErrValidation, "parse date",
			"expected YYYY-MM-DD, got "+s, apperr.WithErr(err))
	}
	return Day(t), nil
}

// Format renders a date as YYYY-MM-DD, or "-" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}

// ParseWeekdays parses a comma separated list of weekday numbers (0 = Sunday).
func ParseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		wd, ok := weekdayNames[strings.ToLower(part)]
		if !ok {
			return nil, apperr.Validationf("parse weekdays", "unknown weekday %q", part)
		}
		if !seen[wd] {
			seen[wd] = true
			days = append(days, wd)
		}
	}
	if len(days) == 0 {
		return nil, apperr.Validationf("parse weekdays", "at least one working day is required")
	}
	return days, nil
}

var weekdayNames = map[string]time.Weekday{
	"0": time.Sunday, "sun": time.Sunday, "sunday": time.Sunday,
	"1": time.Monday, "mon": time.Monday, "monday": time.Monday,
	"2": time.Tuesday, "tue": time.Tuesday, "tuesday": time.Tuesday,
	"3": time.Wednesday, "wed": time.Wednesday, "wednesday": time.Wednesday,
	"4": time.Thursday, "thu": time.Thursday, "thursday": time.Thursday,
	"5": time.Friday, "fri": time.Friday, "friday": time.Friday,
	"6": time.Saturday, "sat": time.Saturday, "saturday": time.Saturday,
}
