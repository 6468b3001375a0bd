package storage

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// Provider persists schedules and calendars. Implementations return
// apperr.ErrNotFound for missing records.
type Provider interface {
	// Lifecycle
	Init() error
	Close() error

	// Schedules
	LoadSchedule(name string) (*models.Schedule, error)
	SaveSchedule(schedule *models.Schedule) error
	DeleteSchedule(name string) error
	ListSchedules() ([]string, error)
	ScheduleExists(name string) bool

	// Calendars
	LoadCalendar(name string) (*models.Calendar, error)
	SaveCalendar(cal *models.Calendar) error
	DeleteCalendar(name string) error
	ListCalendars() ([]string, error)
	CalendarExists(name string) bool
}

// ValidateName checks that a schedule or calendar name can be stored.
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validationf("validate name", "%s name is required", kind)
	}
	if slug.Make(name) == "" {
		return apperr.Validationf("validate name", "%s name %q has no usable characters", kind, name)
	}
	return nil
}

// fileKey is the file name stem used for a record name.
func fileKey(name string) string {
	return slug.Make(name)
}
