// Package planner runs every editing flow of the scheduler: it loads one
// schedule through storage, applies the change to an engine snapshot,
// re-dates what the change affects, refreshes the critical path and writes
// the schedule back in a single save. A failed step discards the whole
// edit.
package planner

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/logging"
	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/storage"
)

// NoCalendar schedules on every day of the week.
const NoCalendar = "none"

// Options configures calendar defaults for new schedules.
type Options struct {
	// DefaultCalendar is used when a schedule is created without one. It is
	// created on first use with WorkingDays.
	DefaultCalendar string
	WorkingDays     []time.Weekday
}

// Service applies editing flows to stored schedules.
type Service struct {
	store *storage.Storage
	opts  Options
	log   *log.Logger
	now   func() time.Time
}

func New(store *storage.Storage, opts Options) *Service {
	if len(opts.WorkingDays) == 0 {
		opts.WorkingDays = models.DefaultWorkingDays()
	}
	return &Service{
		store: store,
		opts:  opts,
		log:   logging.With("component", "planner"),
		now:   time.Now,
	}
}

// FromConfig builds a Service from the configured default calendar.
func FromConfig(store *storage.Storage, cfg *config.Config) (*Service, error) {
	days, err := calendar.ParseWeekdays(cfg.WorkingDays)
	if err != nil {
		return nil, err
	}
	return New(store, Options{DefaultCalendar: cfg.DefaultCalendar, WorkingDays: days}), nil
}

// Store exposes the underlying storage for read-only commands.
func (s *Service) Store() *storage.Storage {
	return s.store
}

// calendarFor resolves the schedule's calendar. An empty name means every
// day is a working day.
func (s *Service) calendarFor(sc *models.Schedule) (*calendar.Calendar, error) {
	if sc.Calendar == "" {
		return nil, nil
	}
	def, err := s.store.LoadCalendar(sc.Calendar)
	if err != nil {
		return nil, err
	}
	return calendar.New(def), nil
}

// CalendarOf returns the compiled calendar a schedule is dated on.
func (s *Service) CalendarOf(sc *models.Schedule) (*calendar.Calendar, error) {
	return s.calendarFor(sc)
}

func (s *Service) snapshot(sc *models.Schedule) (*engine.Snapshot, error) {
	cal, err := s.calendarFor(sc)
	if err != nil {
		return nil, err
	}
	return engine.NewSnapshot(sc, cal)
}

// update runs fn against a snapshot of the named schedule and finishes with
// a critical path run, all inside one storage update.
func (s *Service) update(name string, fn func(*engine.Snapshot) error) (*engine.CPMResult, error) {
	var result *engine.CPMResult
	err := s.store.UpdateSchedule(name, func(sc *models.Schedule) error {
		snap, err := s.snapshot(sc)
		if err != nil {
			return err
		}
		if err := fn(snap); err != nil {
			return err
		}
		result, err = s.finish(snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// finish refreshes CPM fields so nothing persisted is stale.
func (s *Service) finish(snap *engine.Snapshot) (*engine.CPMResult, error) {
	result, err := snap.Recalculate()
	if err != nil {
		return nil, err
	}
	now := s.now()
	snap.Schedule.LastCalculatedAt = &now
	s.log.Debug("recalculated", "schedule", snap.Schedule.Name,
		"end", calendar.Format(result.ProjectEnd), "critical", len(result.CriticalPath))
	return result, nil
}

// settle re-dates everything downstream of seeds and rolls the moved tasks
// up the hierarchy. Summary tasks have no dependencies, so a rolled-up span
// never feeds back into the cascade.
func (s *Service) settle(snap *engine.Snapshot, seeds ...string) ([]*models.Task, error) {
	moved, err := snap.RescheduleFrom(seeds...)
	if err != nil {
		return nil, err
	}
	touched := append([]*models.Task(nil), moved...)
	for _, id := range seeds {
		if t, err := snap.Task(id); err == nil {
			touched = append(touched, t)
		}
	}
	rolled, err := snap.RollupAncestors(touched)
	if err != nil {
		return nil, err
	}

	changed := make(map[string]bool, len(moved)+len(rolled))
	for _, t := range moved {
		changed[t.ID] = true
	}
	for _, t := range rolled {
		changed[t.ID] = true
	}
	out := make([]*models.Task, 0, len(changed))
	for _, t := range snap.Schedule.Tasks {
		if changed[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// settleAll re-derives every date, used when the calendar or the schedule
// start changed.
func (s *Service) settleAll(snap *engine.Snapshot) ([]*models.Task, error) {
	if _, err := snap.RederiveEnds(); err != nil {
		return nil, err
	}
	for _, t := range snap.Schedule.Tasks {
		if t.HasChildren() {
			if _, err := snap.RollupDates(t.ID); err != nil {
				return nil, err
			}
		}
	}
	return s.settle(snap, snap.Graph().Roots()...)
}

func (s *Service) touch(tasks ...*models.Task) {
	now := s.now()
	for _, t := range tasks {
		t.UpdatedAt = now
	}
}
