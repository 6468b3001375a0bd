package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// CreateCalendar stores a calendar with the given working days.
func (s *Service) CreateCalendar(name string, days []time.Weekday) (*models.Calendar, error) {
	if len(days) == 0 {
		return nil, apperr.Validationf("create calendar", "at least one working day is required")
	}
	if strings.EqualFold(strings.TrimSpace(name), NoCalendar) {
		return nil, apperr.Validationf("create calendar", "%q is reserved", NoCalendar)
	}

	now := s.now()
	cal := &models.Calendar{
		Name:        strings.TrimSpace(name),
		WorkingDays: append([]time.Weekday(nil), days...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateCalendar(cal); err != nil {
		return nil, err
	}
	s.log.Info("calendar created", "calendar", cal.Name, "days", len(days))
	return cal, nil
}

// EnsureCalendar returns the named calendar, creating it first when missing.
func (s *Service) EnsureCalendar(name string, days []time.Weekday) (*models.Calendar, error) {
	if s.store.CalendarExists(name) {
		return s.store.LoadCalendar(name)
	}
	return s.CreateCalendar(name, days)
}

// GetCalendar returns a copy of the named calendar.
func (s *Service) GetCalendar(name string) (*models.Calendar, error) {
	return s.store.LoadCalendar(name)
}

// ListCalendars returns every stored calendar name.
func (s *Service) ListCalendars() ([]string, error) {
	return s.store.ListCalendars()
}

// SchedulesUsing returns the names of schedules bound to the calendar.
func (s *Service) SchedulesUsing(calName string) ([]string, error) {
	schedules, err := s.store.GetAllSchedules()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, sc := range schedules {
		if sc.Calendar == calName {
			names = append(names, sc.Name)
		}
	}
	return names, nil
}

// RemoveCalendar deletes a calendar no schedule uses.
func (s *Service) RemoveCalendar(name string) error {
	users, err := s.SchedulesUsing(name)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return apperr.Validationf("remove calendar", "calendar '%s' is used by %s", name, strings.Join(users, ", "))
	}
	if err := s.store.DeleteCalendar(name); err != nil {
		return err
	}
	s.log.Info("calendar removed", "calendar", name)
	return nil
}

// SetWorkingDays replaces the weekday rule and re-dates every schedule
// using the calendar.
func (s *Service) SetWorkingDays(name string, days []time.Weekday) ([]string, error) {
	if len(days) == 0 {
		return nil, apperr.Validationf("set working days", "at least one working day is required")
	}
	return s.editCalendar(name, func(cal *models.Calendar) error {
		cal.WorkingDays = append([]time.Weekday(nil), days...)
		return nil
	})
}

// AddException records a working or non-working date. An existing
// exception on the same date is replaced, as is a recurring one on the same
// month and day when the new exception recurs.
func (s *Service) AddException(name string, ex models.Exception) ([]string, error) {
	if !ex.Type.IsValid() {
		return nil, apperr.Validationf("add exception", "unknown exception type %q (use WORKING or NON_WORKING)", ex.Type)
	}
	ex.Date = calendar.Day(ex.Date)
	if ex.Date.IsZero() {
		return nil, apperr.Validationf("add exception", "exception date is required")
	}

	refreshed, err := s.editCalendar(name, func(cal *models.Calendar) error {
		kept := cal.Exceptions[:0:0]
		for _, e := range cal.Exceptions {
			if !sameException(e, ex) {
				kept = append(kept, e)
			}
		}
		cal.Exceptions = append(kept, ex)
		return nil
	})
	if err == nil {
		s.log.Info("calendar exception added", "calendar", name, "date", calendar.Format(ex.Date), "type", ex.Type)
	}
	return refreshed, err
}

func sameException(a, b models.Exception) bool {
	if calendar.Day(a.Date).Equal(calendar.Day(b.Date)) {
		return true
	}
	return a.Recurring && b.Recurring &&
		a.Date.Month() == b.Date.Month() && a.Date.Day() == b.Date.Day()
}

// RemoveException drops the exception recorded for date.
func (s *Service) RemoveException(name string, date time.Time) ([]string, error) {
	date = calendar.Day(date)
	refreshed, err := s.editCalendar(name, func(cal *models.Calendar) error {
		kept := cal.Exceptions[:0:0]
		for _, e := range cal.Exceptions {
			if !e.Date.Equal(date) {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(cal.Exceptions) {
			return apperr.NotFoundf("remove exception", "calendar '%s' has no exception on %s", name, calendar.Format(date))
		}
		cal.Exceptions = kept
		return nil
	})
	if err == nil {
		s.log.Info("calendar exception removed", "calendar", name, "date", calendar.Format(date))
	}
	return refreshed, err
}

// IsWorkingDay classifies a date under the named calendar.
func (s *Service) IsWorkingDay(name string, date time.Time) (bool, error) {
	def, err := s.store.LoadCalendar(name)
	if err != nil {
		return false, err
	}
	return calendar.New(def).IsWorkingDay(date), nil
}

// ShiftDate moves date by n working days, backwards when n is negative.
func (s *Service) ShiftDate(name string, date time.Time, n int) (time.Time, error) {
	def, err := s.store.LoadCalendar(name)
	if err != nil {
		return time.Time{}, err
	}
	return calendar.New(def).Shift(date, n)
}

// editCalendar applies fn to the calendar and saves the result only when
// every schedule bound to it can be re-dated under it. The schedules are
// then refreshed.
func (s *Service) editCalendar(name string, fn func(*models.Calendar) error) ([]string, error) {
	err := s.store.UpdateCalendar(name, func(cal *models.Calendar) error {
		if err := fn(cal); err != nil {
			return err
		}
		return s.checkRedate(cal)
	})
	if err != nil {
		return nil, err
	}
	return s.refreshSchedules(name)
}

// checkRedate re-dates copies of the schedules bound to def and discards
// them, reporting the first schedule that cannot be re-dated.
func (s *Service) checkRedate(def *models.Calendar) error {
	users, err := s.SchedulesUsing(def.Name)
	if err != nil {
		return err
	}
	cal := calendar.New(def)
	for _, name := range users {
		sc, err := s.store.LoadSchedule(name)
		if err != nil {
			return err
		}
		snap, err := engine.NewSnapshot(sc, cal)
		if err == nil {
			_, err = s.settleAll(snap)
		}
		if err == nil {
			_, err = snap.Recalculate()
		}
		if err != nil {
			return fmt.Errorf("schedule %s cannot be re-dated under calendar %s: %w", name, def.Name, err)
		}
	}
	return nil
}

// refreshSchedules re-dates every schedule bound to the calendar. All
// schedules are attempted; the first failure is returned.
func (s *Service) refreshSchedules(calName string) ([]string, error) {
	users, err := s.SchedulesUsing(calName)
	if err != nil {
		return nil, err
	}

	var refreshed []string
	var firstErr error
	for _, name := range users {
		if _, err := s.SetCalendar(name, calName); err != nil {
			s.log.Error("refresh failed", "schedule", name, "calendar", calName, "err", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to refresh schedule %s: %w", name, err)
			}
			continue
		}
		refreshed = append(refreshed, name)
	}
	return refreshed, firstErr
}
