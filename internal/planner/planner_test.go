package planner

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/storage"
)

var fixedNow = time.Date(2024, time.February, 1, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(
		storage.NewJSONStore(filepath.Join(dir, "schedules"), filepath.Join(dir, "calendars")),
		filepath.Join(dir, "index.json"),
	)
	require.NoError(t, err)

	svc := New(store, Options{DefaultCalendar: "standard"})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// newDemo creates schedule "demo" starting Monday 2024-01-01 on the
// default Monday to Friday calendar.
func newDemo(t *testing.T, svc *Service) {
	t.Helper()
	_, err := svc.CreateSchedule(ScheduleInput{Name: "demo", Start: day("2024-01-01")})
	require.NoError(t, err)
}

func addTask(t *testing.T, svc *Service, name string, duration int, mode models.ScheduleMode) *models.Task {
	t.Helper()
	task, err := svc.AddTask("demo", TaskInput{Name: name, Duration: duration, Mode: mode})
	require.NoError(t, err)
	return task
}

func task(t *testing.T, svc *Service, id string) *models.Task {
	t.Helper()
	got, err := svc.GetTask("demo", id)
	require.NoError(t, err)
	return got
}

func TestCreateSchedule(t *testing.T) {
	svc := newService(t)

	sc, err := svc.CreateSchedule(ScheduleInput{Name: "demo", Start: day("2024-01-01")})
	require.NoError(t, err)
	assert.Equal(t, "standard", sc.Calendar)
	assert.Equal(t, day("2024-01-01"), sc.EndDate)

	cal, err := svc.GetCalendar("standard")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWorkingDays(), cal.WorkingDays)

	sc, err = svc.CreateSchedule(ScheduleInput{Name: "free", Start: day("2024-01-01"), Calendar: NoCalendar})
	require.NoError(t, err)
	assert.Empty(t, sc.Calendar)

	_, err = svc.CreateSchedule(ScheduleInput{Name: "x", Start: day("2024-01-01"), Calendar: "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CreateSchedule(ScheduleInput{Name: "y"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateSchedule(ScheduleInput{Name: "demo", Start: day("2024-01-01")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestChainIsScheduledAndCalculated(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)

	a := addTask(t, svc, "A", 3, models.ModeManual)
	b := addTask(t, svc, "B", 2, models.ModeAuto)
	_, err := svc.AddDependency("demo", a.ID, b.ID, "FS", 0)
	require.NoError(t, err)

	gotA, gotB := task(t, svc, a.ID), task(t, svc, b.ID)
	assert.Equal(t, day("2024-01-04"), gotA.End)
	assert.Equal(t, day("2024-01-04"), gotB.Start)
	assert.Equal(t, day("2024-01-08"), gotB.End)
	assert.True(t, gotA.Critical)
	assert.True(t, gotB.Critical)
	require.NotNil(t, gotB.EarlyFinish)
	assert.Equal(t, day("2024-01-08"), *gotB.EarlyFinish)

	sc, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-08"), sc.EndDate)
	require.NotNil(t, sc.LastCalculatedAt)
	assert.Equal(t, fixedNow, *sc.LastCalculatedAt)
}

func TestCalendarExceptionRedatesSchedules(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)

	a := addTask(t, svc, "A", 3, models.ModeManual)
	b := addTask(t, svc, "B", 2, models.ModeAuto)
	_, err := svc.AddDependency("demo", a.ID, b.ID, "FINISH_TO_START", 0)
	require.NoError(t, err)

	refreshed, err := svc.AddException("standard", models.Exception{
		Date: day("2024-01-02"), Type: models.ExceptionNonWorking, Description: "closed",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"demo"}, refreshed)

	gotA, gotB := task(t, svc, a.ID), task(t, svc, b.ID)
	assert.Equal(t, day("2024-01-05"), gotA.End)
	require.NotNil(t, gotA.EarlyFinish)
	assert.Equal(t, day("2024-01-05"), *gotA.EarlyFinish)
	assert.Equal(t, day("2024-01-05"), gotB.Start)
	assert.Equal(t, day("2024-01-09"), gotB.End)

	working, err := svc.IsWorkingDay("standard", day("2024-01-02"))
	require.NoError(t, err)
	assert.False(t, working)

	_, err = svc.RemoveException("standard", day("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-04"), task(t, svc, a.ID).End)

	_, err = svc.RemoveException("standard", day("2024-01-02"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AddException("standard", models.Exception{Date: day("2024-01-03"), Type: "HOLIDAY"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCalendarEditRejectedWhenScheduleCannotBeRedated(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeManual)

	// A schedule written by hand with a negative duration
	require.NoError(t, svc.store.UpdateSchedule("demo", func(sc *models.Schedule) error {
		sc.FindTask(a.ID).Duration = -1
		return nil
	}))

	_, err := svc.AddException("standard", models.Exception{Date: day("2024-01-02"), Type: models.ExceptionNonWorking})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.SetWorkingDays("standard", []time.Weekday{time.Monday})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	cal, err := svc.GetCalendar("standard")
	require.NoError(t, err)
	assert.Empty(t, cal.Exceptions)
	assert.Equal(t, models.DefaultWorkingDays(), cal.WorkingDays)
}

func TestRecurringExceptionReplacesSameMonthDay(t *testing.T) {
	svc := newService(t)
	_, err := svc.CreateCalendar("office", models.DefaultWorkingDays())
	require.NoError(t, err)

	_, err = svc.AddException("office", models.Exception{
		Date: day("2023-12-25"), Type: models.ExceptionNonWorking, Recurring: true,
	})
	require.NoError(t, err)
	_, err = svc.AddException("office", models.Exception{
		Date: day("2024-12-25"), Type: models.ExceptionWorking, Recurring: true,
	})
	require.NoError(t, err)
	_, err = svc.AddException("office", models.Exception{
		Date: day("2026-12-25"), Type: models.ExceptionNonWorking,
	})
	require.NoError(t, err)

	cal, err := svc.GetCalendar("office")
	require.NoError(t, err)
	require.Len(t, cal.Exceptions, 2)
	assert.Equal(t, day("2024-12-25"), cal.Exceptions[0].Date)
	assert.Equal(t, models.ExceptionWorking, cal.Exceptions[0].Type)

	// A Saturday, working only through the recurring exception
	working, err := svc.IsWorkingDay("office", day("2027-12-25"))
	require.NoError(t, err)
	assert.True(t, working)

	// The exact date still wins over the recurring one
	working, err = svc.IsWorkingDay("office", day("2026-12-25"))
	require.NoError(t, err)
	assert.False(t, working)
}

func TestWorkingDaysChangeRedatesSchedules(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeManual)

	_, err := svc.SetWorkingDays("standard", []time.Weekday{time.Monday, time.Wednesday, time.Friday})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-08"), task(t, svc, a.ID).End)

	_, err = svc.SetWorkingDays("standard", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEditTaskCascades(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeManual)
	b := addTask(t, svc, "B", 2, models.ModeAuto)
	_, err := svc.AddDependency("demo", a.ID, b.ID, "FS", 0)
	require.NoError(t, err)

	five := 5
	edited, err := svc.EditTask("demo", a.ID, engine.TaskPatch{Duration: &five})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-08"), edited.End)
	assert.Equal(t, fixedNow, edited.UpdatedAt)

	gotB := task(t, svc, b.ID)
	assert.Equal(t, day("2024-01-08"), gotB.Start)
	assert.Equal(t, day("2024-01-10"), gotB.End)
}

func TestFailedEditLeavesScheduleUntouched(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	b := addTask(t, svc, "B", 2, models.ModeAuto)

	before, err := svc.GetSchedule("demo")
	require.NoError(t, err)

	start := day("2024-01-10")
	_, err = svc.EditTask("demo", b.ID, engine.TaskPatch{Start: &start})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	after, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = svc.EditTask("demo", "nope", engine.TaskPatch{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDependencyValidation(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 1, models.ModeManual)
	b := addTask(t, svc, "B", 1, models.ModeAuto)

	_, err := svc.AddDependency("demo", a.ID, b.ID, "XX", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddDependency("demo", a.ID, b.ID, "ss", 1)
	require.NoError(t, err)

	_, err = svc.AddDependency("demo", b.ID, a.ID, "FS", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddDependency("demo", a.ID, a.ID, "FS", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddDependency("demo", a.ID, "ghost", "FS", 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	sc, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	require.Len(t, sc.Dependencies, 1)
	assert.Equal(t, models.StartToStart, sc.Dependencies[0].Type)

	removed, err := svc.RemoveDependency("demo", a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed.Lag)

	_, err = svc.RemoveDependency("demo", a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRemoveTaskRedatesSuccessors(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeManual)
	b := addTask(t, svc, "B", 2, models.ModeAuto)
	_, err := svc.AddDependency("demo", a.ID, b.ID, "FS", 0)
	require.NoError(t, err)

	removed, err := svc.RemoveTask("demo", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", removed.Name)

	gotB := task(t, svc, b.ID)
	assert.Equal(t, day("2024-01-01"), gotB.Start)
	assert.Equal(t, day("2024-01-03"), gotB.End)

	sc, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	assert.Empty(t, sc.Dependencies)

	_, _, err = svc.FindTask(a.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHierarchyRollup(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	p := addTask(t, svc, "Phase", 1, models.ModeManual)
	c1, err := svc.AddTask("demo", TaskInput{Name: "Design", Duration: 3, ParentID: p.ID})
	require.NoError(t, err)
	c2 := addTask(t, svc, "Build", 2, models.ModeManual)

	start := day("2024-01-08")
	_, err = svc.EditTask("demo", c2.ID, engine.TaskPatch{Start: &start})
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask("demo", c2.ID, p.ID))

	phase := task(t, svc, p.ID)
	assert.Equal(t, day("2024-01-01"), phase.Start)
	assert.Equal(t, day("2024-01-10"), phase.End)
	assert.Equal(t, 7, phase.Duration)
	assert.Equal(t, []string{c1.ID, c2.ID}, phase.Children)
	assert.Equal(t, "1.2", task(t, svc, c2.ID).WBSCode)

	require.NoError(t, svc.UnlinkTask("demo", c2.ID))
	phase = task(t, svc, p.ID)
	assert.Equal(t, day("2024-01-04"), phase.End)
	assert.Equal(t, 3, phase.Duration)
	assert.Equal(t, "2", task(t, svc, c2.ID).WBSCode)

	assert.ErrorIs(t, svc.UnlinkTask("demo", c2.ID), apperr.ErrValidation)
	assert.ErrorIs(t, svc.LinkTask("demo", p.ID, c1.ID), apperr.ErrValidation)
}

func TestSummaryChildDrivesProjectEnd(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeAuto)
	p := addTask(t, svc, "Phase", 1, models.ModeManual)
	b, err := svc.AddTask("demo", TaskInput{Name: "Build", Duration: 2, Mode: models.ModeAuto, ParentID: p.ID})
	require.NoError(t, err)
	x := addTask(t, svc, "Ship", 1, models.ModeAuto)

	_, err = svc.AddDependency("demo", a.ID, b.ID, "FS", 0)
	require.NoError(t, err)
	_, err = svc.AddDependency("demo", p.ID, x.ID, "FS", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddDependency("demo", b.ID, x.ID, "FS", 0)
	require.NoError(t, err)

	sc, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	ship := sc.FindTask(x.ID)
	assert.Equal(t, day("2024-01-09"), ship.End)
	assert.Equal(t, ship.End, sc.EndDate)
	assert.True(t, ship.Critical)
	assert.Equal(t, 0, ship.TotalFloat)

	phase := sc.FindTask(p.ID)
	assert.Equal(t, day("2024-01-04"), phase.Start)
	assert.Equal(t, day("2024-01-08"), phase.End)
	assert.True(t, phase.Critical)

	four := 4
	_, err = svc.EditTask("demo", b.ID, engine.TaskPatch{Duration: &four})
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-10"), task(t, svc, p.ID).End)
	assert.Equal(t, day("2024-01-10"), task(t, svc, x.ID).Start)
}

func TestDependencyInsideOneBranchIsRejected(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	p := addTask(t, svc, "Phase", 1, models.ModeManual)
	c, err := svc.AddTask("demo", TaskInput{Name: "Work", Duration: 2, Mode: models.ModeAuto, ParentID: p.ID})
	require.NoError(t, err)
	before, err := svc.GetSchedule("demo")
	require.NoError(t, err)

	_, err = svc.AddDependency("demo", p.ID, c.ID, "FS", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NotErrorIs(t, err, apperr.ErrInvariant)
	_, err = svc.AddDependency("demo", c.ID, p.ID, "SS", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	after, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	assert.Equal(t, before.Dependencies, after.Dependencies)

	other := addTask(t, svc, "Other", 1, models.ModeManual)
	_, err = svc.AddDependency("demo", other.ID, c.ID, "FS", 0)
	require.NoError(t, err)
	loose := addTask(t, svc, "Loose", 1, models.ModeManual)
	assert.ErrorIs(t, svc.LinkTask("demo", loose.ID, other.ID), apperr.ErrValidation)
}

func TestSetStartMovesAutoTasks(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 2, models.ModeAuto)
	m := addTask(t, svc, "M", 1, models.ModeManual)

	result, err := svc.SetStart("demo", day("2024-01-08"))
	require.NoError(t, err)

	assert.Equal(t, day("2024-01-08"), task(t, svc, a.ID).Start)
	assert.Equal(t, day("2024-01-01"), task(t, svc, m.ID).Start)
	assert.Equal(t, day("2024-01-08"), result.ProjectStart)

	_, err = svc.SetStart("demo", time.Time{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCalendarRemovalRequiresNoUsers(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	addTask(t, svc, "A", 3, models.ModeManual)

	assert.ErrorIs(t, svc.RemoveCalendar("standard"), apperr.ErrValidation)

	_, err := svc.SetCalendar("demo", NoCalendar)
	require.NoError(t, err)
	sc, err := svc.GetSchedule("demo")
	require.NoError(t, err)
	assert.Empty(t, sc.Calendar)
	// Every day works without a calendar
	assert.Equal(t, day("2024-01-04"), sc.EndDate)

	require.NoError(t, svc.RemoveCalendar("standard"))
	assert.ErrorIs(t, svc.RemoveCalendar("standard"), apperr.ErrNotFound)

	_, err = svc.SetCalendar("demo", "standard")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateCalendarValidation(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateCalendar("empty", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.CreateCalendar("None", models.DefaultWorkingDays())
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CreateCalendar("six", []time.Weekday{time.Monday, time.Saturday})
	require.NoError(t, err)
	_, err = svc.CreateCalendar("six", []time.Weekday{time.Monday})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	names, err := svc.ListCalendars()
	require.NoError(t, err)
	assert.Equal(t, []string{"six"}, names)
}

func TestShiftDate(t *testing.T) {
	svc := newService(t)
	_, err := svc.CreateCalendar("standard", models.DefaultWorkingDays())
	require.NoError(t, err)

	got, err := svc.ShiftDate("standard", day("2024-01-05"), 1)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-08"), got)

	got, err = svc.ShiftDate("standard", day("2024-01-08"), -1)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-05"), got)

	_, err = svc.ShiftDate("missing", day("2024-01-08"), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFindTaskUsesIndex(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 1, models.ModeManual)

	name, found, err := svc.FindTask(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", name)
	assert.Equal(t, "A", found.Name)
}

func TestRescheduleTaskReportsChanges(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeManual)

	changed, err := svc.RescheduleTask("demo", a.ID)
	require.NoError(t, err)
	assert.Empty(t, changed)

	_, err = svc.RescheduleTask("demo", "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReportsOrdering(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)
	a := addTask(t, svc, "A", 3, models.ModeManual)
	b := addTask(t, svc, "B", 1, models.ModeManual)
	c := addTask(t, svc, "C", 2, models.ModeAuto)
	_, err := svc.AddDependency("demo", a.ID, c.ID, "FS", 0)
	require.NoError(t, err)

	sc, err := svc.GetSchedule("demo")
	require.NoError(t, err)

	var critical []string
	for _, ct := range CriticalPath(sc) {
		critical = append(critical, ct.ID)
	}
	assert.Equal(t, []string{a.ID, c.ID}, critical)

	byFloat := ByFloat(sc)
	assert.Equal(t, b.ID, byFloat[len(byFloat)-1].ID)
	assert.Positive(t, byFloat[len(byFloat)-1].TotalFloat)

	sum := Summarize(sc)
	assert.Equal(t, 3, sum.Tasks)
	assert.Equal(t, 2, sum.Critical)
	assert.True(t, sum.Calculated)
}

func TestRemoveSchedule(t *testing.T) {
	svc := newService(t)
	newDemo(t, svc)

	require.NoError(t, svc.RemoveSchedule("demo"))
	assert.ErrorIs(t, svc.RemoveSchedule("demo"), apperr.ErrNotFound)

	_, err := svc.Recalculate("demo")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
