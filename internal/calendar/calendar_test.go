package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

func date(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func standard(exceptions ...models.Exception) *Calendar {
	return New(&models.Calendar{
		Name:        "standard",
		WorkingDays: models.DefaultWorkingDays(),
		Exceptions:  exceptions,
	})
}

func TestIsWorkingDay(t *testing.T) {
	cal := standard(
		models.Exception{Date: date("2020-12-25"), Type: models.ExceptionNonWorking, Recurring: true},
		models.Exception{Date: date("2023-12-25"), Type: models.ExceptionWorking},
		models.Exception{Date: date("2024-01-06"), Type: models.ExceptionWorking},
	)

	tests := []struct {
		name string
		date string
		want bool
	}{
		{"weekday", "2024-01-01", true},
		{"saturday", "2024-01-13", false},
		{"sunday", "2024-01-07", false},
		{"recurring holiday", "2024-12-25", false},
		{"exact overrides recurring", "2023-12-25", true},
		{"working saturday", "2024-01-06", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsWorkingDay(date(tt.date)))
		})
	}
}

func TestShiftForward(t *testing.T) {
	cal := standard()

	tests := []struct {
		name  string
		start string
		n     int
		want  string
	}{
		{"zero returns input", "2024-01-06", 0, "2024-01-06"},
		{"within week", "2024-01-01", 3, "2024-01-04"},
		{"over weekend", "2024-01-05", 1, "2024-01-08"},
		{"from saturday", "2024-01-06", 1, "2024-01-08"},
		{"two weeks", "2024-01-01", 10, "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.ShiftForward(date(tt.start), tt.n)
			require.NoError(t, err)
			assert.Equal(t, date(tt.want), got)
		})
	}
}

func TestShiftBackward(t *testing.T) {
	cal := standard()

	got, err := cal.ShiftBackward(date("2024-01-08"), 1)
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-05"), got)

	got, err = cal.ShiftBackward(date("2024-01-04"), 3)
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-01"), got)
}

func TestShiftNegativeCount(t *testing.T) {
	cal := standard()

	_, err := cal.ShiftForward(date("2024-01-01"), -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = cal.ShiftBackward(date("2024-01-01"), -2)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestShiftSignedLag(t *testing.T) {
	cal := standard()

	got, err := cal.Shift(date("2024-01-05"), 1)
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-08"), got)

	got, err = cal.Shift(date("2024-01-08"), -1)
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-05"), got)
}

func TestShiftSkipsException(t *testing.T) {
	cal := standard(models.Exception{Date: date("2024-01-02"), Type: models.ExceptionNonWorking})

	got, err := cal.ShiftForward(date("2024-01-01"), 3)
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-05"), got)
}

func TestNilCalendarEveryDayWorks(t *testing.T) {
	var cal *Calendar

	assert.True(t, cal.IsWorkingDay(date("2024-01-06")))

	got, err := cal.ShiftForward(date("2024-01-05"), 2)
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-07"), got)
	assert.Equal(t, 7, cal.CountWorkingDaysBetween(date("2024-01-01"), date("2024-01-08")))
	assert.Nil(t, New(nil))
}

func TestCountWorkingDaysBetween(t *testing.T) {
	cal := standard()

	assert.Equal(t, 0, cal.CountWorkingDaysBetween(date("2024-01-03"), date("2024-01-03")))
	assert.Equal(t, 3, cal.CountWorkingDaysBetween(date("2024-01-01"), date("2024-01-04")))
	assert.Equal(t, -3, cal.CountWorkingDaysBetween(date("2024-01-04"), date("2024-01-01")))
	assert.Equal(t, 1, cal.CountWorkingDaysBetween(date("2024-01-05"), date("2024-01-08")))
	assert.Equal(t, 0, cal.CountWorkingDaysBetween(date("2024-01-06"), date("2024-01-07")))
}

func TestCountInvertsShiftForward(t *testing.T) {
	cal := standard(
		models.Exception{Date: date("2024-01-02"), Type: models.ExceptionNonWorking},
		models.Exception{Date: date("2024-01-13"), Type: models.ExceptionWorking},
	)

	for offset := 0; offset < 14; offset++ {
		start := date("2024-01-01").AddDate(0, 0, offset)
		for n := 0; n <= 12; n++ {
			end, err := cal.ShiftForward(start, n)
			require.NoError(t, err)
			assert.Equal(t, n, cal.CountWorkingDaysBetween(start, end), "start=%s n=%d", Format(start), n)

			back, err := cal.ShiftBackward(end, n)
			require.NoError(t, err)
			assert.False(t, back.After(start), "start=%s n=%d overshoots", Format(start), n)
			if cal.IsWorkingDay(start) || n == 0 {
				assert.Equal(t, start, back, "start=%s n=%d", Format(start), n)
			}
		}
	}
}

func TestNoWorkingDays(t *testing.T) {
	cal := New(&models.Calendar{Name: "closed"})

	_, err := cal.ShiftForward(date("2024-01-01"), 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("29/02/2024")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDayNormalizes(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	d := Day(time.Date(2024, 3, 10, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), d)
	assert.True(t, Day(time.Time{}).IsZero())
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays("1, 2,3,wed,fri")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Friday}, days)

	_, err = ParseWeekdays("8")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ParseWeekdays(" , ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
