package planner

import (
	"sort"
	"strings"
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// ScheduleInput describes a new schedule. An empty Calendar selects the
// default calendar; NoCalendar selects none.
type ScheduleInput struct {
	Name        string
	Description string
	Start       time.Time
	Calendar    string
}

// Summary holds the headline figures of a schedule.
type Summary struct {
	Tasks      int
	Milestones int
	Summaries  int
	Critical   int
	Start      time.Time
	End        time.Time
	Calculated bool
}

// CreateSchedule validates and stores a new, empty schedule.
func (s *Service) CreateSchedule(in ScheduleInput) (*models.Schedule, error) {
	start := calendar.Day(in.Start)
	if start.IsZero() {
		return nil, apperr.Validationf("create schedule", "start date is required")
	}

	calName, err := s.resolveCalendar(in.Calendar)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sc := &models.Schedule{
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		StartDate:    start,
		EndDate:      start,
		Calendar:     calName,
		Tasks:        make([]*models.Task, 0),
		Dependencies: make([]models.Dependency, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateSchedule(sc); err != nil {
		return nil, err
	}

	s.log.Info("schedule created", "schedule", sc.Name, "start", calendar.Format(start), "calendar", calName)
	return sc, nil
}

func (s *Service) resolveCalendar(name string) (string, error) {
	switch strings.TrimSpace(name) {
	case NoCalendar:
		return "", nil
	case "":
		if s.opts.DefaultCalendar == "" {
			return "", nil
		}
		if _, err := s.EnsureCalendar(s.opts.DefaultCalendar, s.opts.WorkingDays); err != nil {
			return "", err
		}
		return s.opts.DefaultCalendar, nil
	}
	if !s.store.CalendarExists(name) {
		return "", apperr.NotFoundf("resolve calendar", "calendar '%s' not found", name)
	}
	return name, nil
}

// GetSchedule returns a copy of the named schedule.
func (s *Service) GetSchedule(name string) (*models.Schedule, error) {
	return s.store.LoadSchedule(name)
}

// ListSchedules returns every stored schedule.
func (s *Service) ListSchedules() ([]*models.Schedule, error) {
	return s.store.GetAllSchedules()
}

// RemoveSchedule deletes a schedule with its tasks and dependencies.
func (s *Service) RemoveSchedule(name string) error {
	if err := s.store.DeleteSchedule(name); err != nil {
		return err
	}
	s.log.Info("schedule removed", "schedule", name)
	return nil
}

// Recalculate runs the critical path method without re-dating any task.
func (s *Service) Recalculate(name string) (*engine.CPMResult, error) {
	return s.update(name, func(*engine.Snapshot) error { return nil })
}

// SetStart moves the schedule start and re-dates every AUTO task.
func (s *Service) SetStart(name string, start time.Time) (*engine.CPMResult, error) {
	start = calendar.Day(start)
	if start.IsZero() {
		return nil, apperr.Validationf("set start", "start date is required")
	}
	return s.update(name, func(snap *engine.Snapshot) error {
		snap.Schedule.StartDate = start
		changed, err := s.settleAll(snap)
		if err != nil {
			return err
		}
		s.touch(changed...)
		return nil
	})
}

// SetCalendar switches the schedule to another calendar, or to none, and
// re-dates every task under it.
func (s *Service) SetCalendar(name, calName string) (*engine.CPMResult, error) {
	if calName == NoCalendar {
		calName = ""
	} else if !s.store.CalendarExists(calName) {
		return nil, apperr.NotFoundf("set calendar", "calendar '%s' not found", calName)
	}

	var result *engine.CPMResult
	err := s.store.UpdateSchedule(name, func(sc *models.Schedule) error {
		sc.Calendar = calName
		snap, err := s.snapshot(sc)
		if err != nil {
			return err
		}
		changed, err := s.settleAll(snap)
		if err != nil {
			return err
		}
		s.touch(changed...)
		result, err = s.finish(snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("calendar assigned", "schedule", name, "calendar", calName)
	return result, nil
}

// Summarize computes headline figures from the stored schedule.
func Summarize(sc *models.Schedule) Summary {
	sum := Summary{
		Tasks:      len(sc.Tasks),
		Milestones: sc.CountMilestones(),
		Critical:   len(sc.CriticalTasks()),
		Start:      sc.StartDate,
		End:        sc.EndDate,
		Calculated: sc.IsCalculated(),
	}
	for _, t := range sc.Tasks {
		if t.HasChildren() {
			sum.Summaries++
		}
	}
	return sum
}

// CriticalPath returns the critical tasks ordered by early start.
func CriticalPath(sc *models.Schedule) []*models.Task {
	tasks := sc.CriticalTasks()
	sort.SliceStable(tasks, func(i, j int) bool {
		return earlyStart(tasks[i]).Before(earlyStart(tasks[j]))
	})
	return tasks
}

// ByFloat returns the tasks ordered by total float, least first.
func ByFloat(sc *models.Schedule) []*models.Task {
	tasks := append([]*models.Task(nil), sc.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].TotalFloat != tasks[j].TotalFloat {
			return tasks[i].TotalFloat < tasks[j].TotalFloat
		}
		return earlyStart(tasks[i]).Before(earlyStart(tasks[j]))
	})
	return tasks
}

func earlyStart(t *models.Task) time.Time {
	if t.EarlyStart != nil {
		return *t.EarlyStart
	}
	return t.Start
}
