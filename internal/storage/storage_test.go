package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

func stamp(day int) time.Time {
	return time.Date(2024, time.January, day, 9, 30, 0, 0, time.UTC)
}

func date(day int) time.Time {
	return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func sampleSchedule(name string) *models.Schedule {
	calculated := stamp(5)
	return &models.Schedule{
		Name:        name,
		Description: "office move",
		StartDate:   date(1),
		EndDate:     date(10),
		Calendar:    "standard",
		Tasks: []*models.Task{
			{
				ID: "p1", Name: "Phase", Duration: 8, Mode: models.ModeManual,
				Start: date(1), End: date(10), Children: []string{"a1", "b1"},
				Level: 0, WBSCode: "1", CreatedAt: stamp(1), UpdatedAt: stamp(2),
			},
			{
				ID: "a1", Name: "Pack", Duration: 3, Mode: models.ModeManual,
				Start: date(1), End: date(3),
				EarlyStart: ptr(date(1)), EarlyFinish: ptr(date(3)),
				LateStart: ptr(date(1)), LateFinish: ptr(date(3)),
				Critical: true, ParentID: "p1", Level: 1, WBSCode: "1.1",
				CreatedAt: stamp(1), UpdatedAt: stamp(2),
			},
			{
				ID: "b1", Name: "Ship", Duration: 5, Mode: models.ModeAuto,
				Start: date(4), End: date(10),
				EarlyStart: ptr(date(4)), EarlyFinish: ptr(date(10)),
				LateStart: ptr(date(4)), LateFinish: ptr(date(10)),
				TotalFloat: 2, FreeFloat: 1, ParentID: "p1", Level: 1, WBSCode: "1.2",
				CreatedAt: stamp(1), UpdatedAt: stamp(2),
			},
		},
		Dependencies: []models.Dependency{
			{PredecessorID: "a1", SuccessorID: "b1", Type: models.FinishToStart, Lag: -1, CreatedAt: stamp(3)},
		},
		LastCalculatedAt: &calculated,
		CreatedAt:        stamp(1),
		UpdatedAt:        stamp(5),
	}
}

func providers(t *testing.T) map[string]Provider {
	dir := t.TempDir()
	return map[string]Provider{
		"json":   NewJSONStore(filepath.Join(dir, "schedules"), filepath.Join(dir, "calendars")),
		"sqlite": NewSQLiteStore(filepath.Join(dir, "db", "qsched.db")),
	}
}

func TestProviderScheduleRoundTrip(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Init())
			defer p.Close()

			want := sampleSchedule("Office Move")
			require.NoError(t, p.SaveSchedule(want))
			assert.True(t, p.ScheduleExists("Office Move"))

			got, err := p.LoadSchedule("Office Move")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// Saving again replaces tasks and dependencies
			want.Tasks = want.Tasks[:1]
			want.Tasks[0].Children = nil
			want.Dependencies = []models.Dependency{}
			require.NoError(t, p.SaveSchedule(want))

			got, err = p.LoadSchedule("Office Move")
			require.NoError(t, err)
			assert.Len(t, got.Tasks, 1)
			assert.Empty(t, got.Dependencies)

			names, err := p.ListSchedules()
			require.NoError(t, err)
			assert.Equal(t, []string{"Office Move"}, names)

			require.NoError(t, p.DeleteSchedule("Office Move"))
			assert.False(t, p.ScheduleExists("Office Move"))
		})
	}
}

func TestProviderCalendarRoundTrip(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Init())
			defer p.Close()

			cal := &models.Calendar{
				Name:        "standard",
				WorkingDays: models.DefaultWorkingDays(),
				Exceptions: []models.Exception{
					{Date: date(1), Type: models.ExceptionNonWorking, Recurring: true, Description: "New Year"},
					{Date: date(6), Type: models.ExceptionWorking},
				},
				CreatedAt: stamp(1),
				UpdatedAt: stamp(1),
			}
			require.NoError(t, p.SaveCalendar(cal))

			got, err := p.LoadCalendar("standard")
			require.NoError(t, err)
			assert.Equal(t, cal.WorkingDays, got.WorkingDays)
			assert.Equal(t, cal.Exceptions, got.Exceptions)
			assert.True(t, cal.CreatedAt.Equal(got.CreatedAt))

			names, err := p.ListCalendars()
			require.NoError(t, err)
			assert.Equal(t, []string{"standard"}, names)

			require.NoError(t, p.DeleteCalendar("standard"))
			assert.False(t, p.CalendarExists("standard"))
		})
	}
}

func TestProviderNotFound(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Init())
			defer p.Close()

			_, err := p.LoadSchedule("missing")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
			assert.ErrorIs(t, p.DeleteSchedule("missing"), apperr.ErrNotFound)

			_, err = p.LoadCalendar("missing")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
			assert.ErrorIs(t, p.DeleteCalendar("missing"), apperr.ErrNotFound)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qsched.db")

	first := NewSQLiteStore(path)
	require.NoError(t, first.Init())
	require.NoError(t, first.SaveSchedule(sampleSchedule("alpha")))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Init())
	defer second.Close()

	got, err := second.LoadSchedule("alpha")
	require.NoError(t, err)
	assert.Len(t, got.Tasks, 3)
	assert.Equal(t, "1.2", got.FindTask("b1").WBSCode)
}

func newJSONStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	s, err := New(NewJSONStore(filepath.Join(dir, "schedules"), filepath.Join(dir, "calendars")),
		filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	return s
}

func TestCreateScheduleRejectsDuplicates(t *testing.T) {
	s := newJSONStorage(t)

	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))
	err := s.CreateSchedule(sampleSchedule("alpha"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.ErrorIs(t, s.CreateSchedule(sampleSchedule("  ")), apperr.ErrValidation)
	assert.ErrorIs(t, s.CreateSchedule(sampleSchedule("!!!")), apperr.ErrValidation)
}

func TestLoadScheduleReturnsCopy(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))

	loaded, err := s.LoadSchedule("alpha")
	require.NoError(t, err)
	loaded.Tasks[0].Name = "changed"

	again, err := s.LoadSchedule("alpha")
	require.NoError(t, err)
	assert.Equal(t, "Phase", again.Tasks[0].Name)
}

func TestUpdateScheduleDiscardsFailedUpdate(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))

	boom := errors.New("boom")
	err := s.UpdateSchedule("alpha", func(sc *models.Schedule) error {
		sc.Tasks = nil
		sc.Description = "half done"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.LoadSchedule("alpha")
	require.NoError(t, err)
	assert.Len(t, got.Tasks, 3)
	assert.Equal(t, "office move", got.Description)

	// The file on disk is untouched as well
	s.ClearCache()
	got, err = s.LoadSchedule("alpha")
	require.NoError(t, err)
	assert.Equal(t, "office move", got.Description)
}

func TestUpdateSchedulePersists(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))

	err := s.UpdateSchedule("alpha", func(sc *models.Schedule) error {
		sc.Tasks = append(sc.Tasks, &models.Task{ID: "c1", Name: "Unpack", Duration: 1, Mode: models.ModeManual})
		return nil
	})
	require.NoError(t, err)

	s.ClearCache()
	got, err := s.LoadSchedule("alpha")
	require.NoError(t, err)
	assert.NotNil(t, got.FindTask("c1"))
	assert.True(t, got.UpdatedAt.After(stamp(5)))

	owner, err := s.LookupTask("c1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", owner)

	assert.ErrorIs(t, s.UpdateSchedule("missing", func(*models.Schedule) error { return nil }), apperr.ErrNotFound)
}

func TestTaskIndexFollowsSchedules(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))

	owner, err := s.LookupTask("a1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", owner)

	stats := s.GetIndexStats()
	assert.Equal(t, 3, stats["total_tasks"])

	problems, err := s.ValidateIndex()
	require.NoError(t, err)
	assert.Empty(t, problems)

	require.NoError(t, s.DeleteSchedule("alpha"))
	_, err = s.LookupTask("a1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSchedule("alpha"), apperr.ErrNotFound)
}

func TestRebuildIndexRepairsDrift(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))

	s.cache.mu.Lock()
	delete(s.cache.index, "a1")
	s.cache.index["ghost"] = "alpha"
	s.cache.mu.Unlock()

	problems, err := s.ValidateIndex()
	require.NoError(t, err)
	assert.Len(t, problems, 2)

	require.NoError(t, s.RebuildIndex())
	problems, err = s.ValidateIndex()
	require.NoError(t, err)
	assert.Empty(t, problems)

	// The rebuilt index is what a fresh process sees
	reopened, err := New(s.provider, s.indexFile)
	require.NoError(t, err)
	owner, err := reopened.LookupTask("a1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", owner)
}

func TestCompactIndexDropsUnknownSchedules(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))

	s.cache.mu.Lock()
	s.cache.index["stray"] = "gone"
	s.cache.mu.Unlock()

	require.NoError(t, s.CompactIndex())
	_, err := s.LookupTask("stray")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.LookupTask("a1")
	assert.NoError(t, err)
}

func TestIndexStaleWhenMissing(t *testing.T) {
	s := newJSONStorage(t)

	stale, err := s.IsIndexStale()
	require.NoError(t, err)
	assert.True(t, stale)

	require.NoError(t, s.EnsureIndexFresh())
	_, err = os.Stat(s.indexFile)
	assert.NoError(t, err)
}

func TestFindOrphanedReferences(t *testing.T) {
	s := newJSONStorage(t)
	sc := sampleSchedule("alpha")
	sc.Tasks[1].ParentID = "nope"
	sc.Tasks[0].Children = append(sc.Tasks[0].Children, "lost")
	sc.Dependencies = append(sc.Dependencies, models.Dependency{
		PredecessorID: "b1", SuccessorID: "zz", Type: models.FinishToStart,
	})
	require.NoError(t, s.CreateSchedule(sc))

	orphans, err := s.FindOrphanedReferences("alpha")
	require.NoError(t, err)
	assert.Len(t, orphans["parent_references"], 1)
	assert.Len(t, orphans["child_references"], 1)
	assert.Len(t, orphans["dependency_references"], 1)
	assert.Len(t, orphans["calendar_references"], 1)

	require.NoError(t, s.CreateCalendar(&models.Calendar{Name: "standard", WorkingDays: models.DefaultWorkingDays()}))
	orphans, err = s.FindOrphanedReferences("alpha")
	require.NoError(t, err)
	assert.Empty(t, orphans["calendar_references"])
}

func TestCalendarLifecycle(t *testing.T) {
	s := newJSONStorage(t)
	cal := &models.Calendar{Name: "standard", WorkingDays: models.DefaultWorkingDays()}

	require.NoError(t, s.CreateCalendar(cal))
	assert.ErrorIs(t, s.CreateCalendar(cal), apperr.ErrValidation)

	err := s.UpdateCalendar("standard", func(c *models.Calendar) error {
		c.WorkingDays = []time.Weekday{time.Monday}
		return nil
	})
	require.NoError(t, err)

	got, err := s.LoadCalendar("standard")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday}, got.WorkingDays)

	names, err := s.ListCalendars()
	require.NoError(t, err)
	assert.Equal(t, []string{"standard"}, names)

	require.NoError(t, s.DeleteCalendar("standard"))
	_, err = s.LoadCalendar("standard")
	assert.True(t, IsNotFound(err))
}

func TestSQLiteBackedStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := New(NewSQLiteStore(filepath.Join(dir, "qsched.db")), filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateSchedule(sampleSchedule("alpha")))
	require.NoError(t, s.UpdateSchedule("alpha", func(sc *models.Schedule) error {
		sc.Description = "updated"
		return nil
	}))

	s.ClearCache()
	got, err := s.LoadSchedule("alpha")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)

	stale, err := s.IsIndexStale()
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestNamesSharingAFileDoNotAlias(t *testing.T) {
	s := newJSONStorage(t)
	require.NoError(t, s.CreateSchedule(sampleSchedule("Alpha")))

	_, err := s.LoadSchedule("alpha")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.UpdateSchedule("ALPHA", func(sc *models.Schedule) error {
		sc.Description = "changed"
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.CreateSchedule(sampleSchedule("alpha")), apperr.ErrValidation)
	assert.ErrorIs(t, s.DeleteSchedule("alpha"), apperr.ErrNotFound)

	got, err := s.LoadSchedule("Alpha")
	require.NoError(t, err)
	assert.Equal(t, "office move", got.Description)

	require.NoError(t, s.CreateCalendar(&models.Calendar{Name: "Standard", WorkingDays: models.DefaultWorkingDays()}))
	_, err = s.LoadCalendar("standard")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCalendar("STANDARD"), apperr.ErrNotFound)
	assert.True(t, s.CalendarExists("Standard"))

	assert.Same(t, s.lockFor("schedule", "Alpha"), s.lockFor("schedule", "alpha"))
	assert.NotSame(t, s.lockFor("schedule", "Alpha"), s.lockFor("calendar", "Alpha"))
}
