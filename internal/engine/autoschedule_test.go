package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

func ids(tasks []*models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestRescheduleFromCascades(t *testing.T) {
	snap := newSnapshot(t, weekdays())
	a := addTask(t, snap, "a", 3, models.ModeManual)
	b := addTask(t, snap, "b", 2, models.ModeAuto)
	link(t, snap, "a", "b", models.FinishToStart, 0)

	changed, err := snap.RescheduleFrom("a")
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, ids(changed))
	assert.Equal(t, day("2024-01-01"), a.Start)
	assert.Equal(t, day("2024-01-04"), a.End)
	assert.Equal(t, day("2024-01-04"), b.Start)
	assert.Equal(t, day("2024-01-08"), b.End)

	changed, err = snap.RescheduleFrom("a")
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestRescheduleDiamond(t *testing.T) {
	// a -> b(1) -> d
	// a -> c(3) -> d
	snap := newSnapshot(t, weekdays())
	addTask(t, snap, "a", 1, models.ModeManual)
	addTask(t, snap, "b", 1, models.ModeAuto)
	c := addTask(t, snap, "c", 3, models.ModeAuto)
	d := addTask(t, snap, "d", 1, models.ModeAuto)
	link(t, snap, "a", "b", models.FinishToStart, 0)
	link(t, snap, "a", "c", models.FinishToStart, 0)
	link(t, snap, "b", "d", models.FinishToStart, 0)
	link(t, snap, "c", "d", models.FinishToStart, 0)

	changed, err := snap.RescheduleFrom("a")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"b", "c", "d"}, ids(changed))
	assert.Equal(t, day("2024-01-05"), c.End)
	assert.Equal(t, c.End, d.Start)
	assert.Equal(t, day("2024-01-08"), d.End)
}

func TestRescheduleThroughManualTask(t *testing.T) {
	snap := newSnapshot(t, weekdays())
	a := addTask(t, snap, "a", 2, models.ModeAuto)
	m := addTask(t, snap, "m", 1, models.ModeManual)
	c := addTask(t, snap, "c", 1, models.ModeAuto)
	link(t, snap, "a", "m", models.FinishToStart, 0)
	link(t, snap, "m", "c", models.FinishToStart, 0)

	start := day("2024-01-15")
	require.NoError(t, snap.UpdateTask("m", TaskPatch{Start: &start}))

	changed, err := snap.RescheduleFrom("a")
	require.NoError(t, err)

	assert.Equal(t, []string{"c"}, ids(changed))
	assert.Equal(t, day("2024-01-01"), a.Start)
	assert.Equal(t, day("2024-01-15"), m.Start)
	assert.Equal(t, day("2024-01-16"), c.Start)
	assert.Equal(t, day("2024-01-17"), c.End)
}

func TestRescheduleAutoRootAnchorsToScheduleStart(t *testing.T) {
	snap := newSnapshot(t, weekdays())
	a := addTask(t, snap, "a", 2, models.ModeAuto)

	snap.Schedule.StartDate = day("2024-02-05")
	changed, err := snap.RescheduleAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ids(changed))
	assert.Equal(t, day("2024-02-05"), a.Start)
	assert.Equal(t, day("2024-02-07"), a.End)
}

func TestRescheduleErrors(t *testing.T) {
	snap := newSnapshot(t, weekdays())
	addTask(t, snap, "a", 1, models.ModeManual)
	b := addTask(t, snap, "b", 1, models.ModeAuto)
	link(t, snap, "a", "b", models.FinishToStart, 0)

	_, err := snap.RescheduleFrom("missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	a, _ := snap.Task("a")
	a.Start = time.Time{}
	before := b.Start

	_, err = snap.RescheduleFrom("a")
	assert.ErrorIs(t, err, apperr.ErrInvariant)
	assert.Equal(t, before, b.Start)
}

func TestRescheduleSkipsSummaryTasks(t *testing.T) {
	snap := newSnapshot(t, weekdays())
	p := addTask(t, snap, "p", 0, models.ModeAuto)
	require.NoError(t, snap.AddTask(&models.Task{ID: "c", Name: "child", Duration: 1, ParentID: "p"}))
	start := day("2024-01-03")
	p.Start, p.End = start, start

	changed, err := snap.RescheduleFrom("p")
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, start, p.Start)
}

func TestRederiveEndsAfterCalendarChange(t *testing.T) {
	snap := newSnapshot(t, weekdays())
	a := addTask(t, snap, "a", 3, models.ModeManual)
	m := addTask(t, snap, "m", 0, models.ModeManual)
	require.Equal(t, day("2024-01-04"), a.End)

	changed, err := snap.RederiveEnds()
	require.NoError(t, err)
	assert.Empty(t, changed)

	snap.Calendar = weekdays(models.Exception{Date: day("2024-01-02"), Type: models.ExceptionNonWorking})
	changed, err = snap.RederiveEnds()
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ids(changed))
	assert.Equal(t, day("2024-01-05"), a.End)
	assert.Equal(t, m.Start, m.End)
}
