// Package engine computes task dates for one schedule held in memory.
//
// A Snapshot indexes the schedule's tasks by ID and builds the precedence
// graph once. The solvers (Recalculate, RescheduleFrom, RollupDates) stage
// their results and commit them only when the whole operation succeeded, so
// a failed call leaves every task untouched. Nothing in this package does
// I/O; callers load the schedule before and persist it after.
package engine

import (
	"strings"
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/graph"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// Snapshot is the in-memory arena for one schedule.
type Snapshot struct {
	Schedule *models.Schedule
	Calendar *calendar.Calendar

	tasks map[string]*models.Task
	graph *graph.Graph
}

// TaskPatch carries the editable task fields. Nil fields are left unchanged.
type TaskPatch struct {
	Name     *string
	Duration *int
	Start    *time.Time
	Mode     *models.ScheduleMode
}

// NewSnapshot indexes the schedule. The schedule is mutated in place by
// later calls; pass a clone when the caller needs to discard failures.
func NewSnapshot(schedule *models.Schedule, cal *calendar.Calendar) (*Snapshot, error) {
	if schedule == nil {
		return nil, apperr.NotFoundf("load snapshot", "schedule is nil")
	}

	s := &Snapshot{
		Schedule: schedule,
		Calendar: cal,
		tasks:    make(map[string]*models.Task, len(schedule.Tasks)),
	}
	for _, t := range schedule.Tasks {
		if _, dup := s.tasks[t.ID]; dup {
			return nil, apperr.Invariantf("load snapshot", "duplicate task id %s in schedule %s", t.ID, schedule.Name)
		}
		s.tasks[t.ID] = t
	}

	g, err := graph.Build(schedule.Tasks, schedule.Dependencies)
	if err != nil {
		return nil, err
	}
	s.graph = g

	if err := s.checkHierarchy(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) checkHierarchy() error {
	for _, t := range s.Schedule.Tasks {
		if t.ParentID != "" {
			parent, ok := s.tasks[t.ParentID]
			if !ok {
				return apperr.Invariantf("load snapshot", "task %s has unknown parent %s", t.ID, t.ParentID)
			}
			if !contains(parent.Children, t.ID) {
				return apperr.Invariantf("load snapshot", "task %s is not listed under its parent %s", t.ID, t.ParentID)
			}
		}
		for _, child := range t.Children {
			c, ok := s.tasks[child]
			if !ok || c.ParentID != t.ID {
				return apperr.Invariantf("load snapshot", "task %s lists %s as a child it does not own", t.ID, child)
			}
		}
	}

	for _, e := range s.graph.Edges() {
		for _, id := range []string{e.From, e.To} {
			if s.tasks[id].HasChildren() {
				return apperr.Invariantf("load snapshot", "summary task %s has dependency %s", id, e)
			}
		}
	}

	for _, t := range s.Schedule.Tasks {
		seen := map[string]bool{t.ID: true}
		for p := t.ParentID; p != ""; p = s.tasks[p].ParentID {
			if seen[p] {
				return apperr.Invariantf("load snapshot", "task hierarchy loops through %s", p)
			}
			seen[p] = true
		}
	}
	return nil
}

// Graph exposes the precedence graph for read-only use.
func (s *Snapshot) Graph() *graph.Graph {
	return s.graph
}

// Task returns the task with the given ID.
func (s *Snapshot) Task(id string) (*models.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, apperr.NotFoundf("find task", "task %s not found in schedule %s", id, s.Schedule.Name)
	}
	return t, nil
}

// AddTask inserts a new task. Mode defaults to MANUAL, a zero Start is
// anchored to the schedule start and End is derived from the duration.
func (s *Snapshot) AddTask(t *models.Task) error {
	if t.ID == "" {
		return apperr.Validationf("add task", "task id is required")
	}
	if _, exists := s.tasks[t.ID]; exists {
		return apperr.Validationf("add task", "task %s already exists", t.ID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return apperr.Validationf("add task", "task name is required")
	}
	if t.Duration < 0 {
		return apperr.Validationf("add task", "duration must not be negative, got %d", t.Duration)
	}
	if t.Mode == "" {
		t.Mode = models.ModeManual
	}
	if !t.Mode.IsValid() {
		return apperr.Validationf("add task", "unknown schedule mode %q", t.Mode)
	}
	if t.ParentID != "" {
		if _, ok := s.tasks[t.ParentID]; !ok {
			return apperr.NotFoundf("add task", "parent task %s not found", t.ParentID)
		}
		if err := s.checkCanParent("add task", t.ParentID); err != nil {
			return err
		}
	}
	if len(t.Children) > 0 {
		return apperr.Validationf("add task", "a new task cannot have children")
	}

	if t.Start.IsZero() {
		t.Start = s.Schedule.StartDate
	}
	t.Start = calendar.Day(t.Start)
	if t.Start.IsZero() {
		return apperr.Validationf("add task", "schedule %s has no start date", s.Schedule.Name)
	}
	end, err := s.Calendar.ShiftForward(t.Start, t.Duration)
	if err != nil {
		return err
	}
	t.End = end

	parentID := t.ParentID
	t.ParentID = ""
	s.tasks[t.ID] = t
	s.Schedule.Tasks = append(s.Schedule.Tasks, t)
	s.graph.AddNode(t.ID)

	if parentID != "" {
		return s.SetParent(t.ID, parentID)
	}
	s.Renumber()
	return nil
}

// UpdateTask applies a patch to a task's own fields. Start edits are only
// accepted on MANUAL tasks; summary tasks derive both dates and duration
// from their children.
func (s *Snapshot) UpdateTask(id string, patch TaskPatch) error {
	t, err := s.Task(id)
	if err != nil {
		return err
	}

	name := t.Name
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		if name == "" {
			return apperr.Validationf("update task", "task name is required")
		}
	}
	mode := t.Mode
	if patch.Mode != nil {
		if !patch.Mode.IsValid() {
			return apperr.Validationf("update task", "unknown schedule mode %q", *patch.Mode)
		}
		mode = *patch.Mode
	}
	duration := t.Duration
	if patch.Duration != nil {
		if *patch.Duration < 0 {
			return apperr.Validationf("update task", "duration must not be negative, got %d", *patch.Duration)
		}
		if t.HasChildren() && *patch.Duration != t.Duration {
			return apperr.Validationf("update task", "duration of summary task %s is derived from its children", id)
		}
		duration = *patch.Duration
	}
	start := t.Start
	if patch.Start != nil {
		if t.HasChildren() {
			return apperr.Validationf("update task", "dates of summary task %s are derived from its children", id)
		}
		if mode == models.ModeAuto {
			return apperr.Validationf("update task", "start of AUTO task %s is derived from its predecessors", id)
		}
		start = calendar.Day(*patch.Start)
		if start.IsZero() {
			return apperr.Validationf("update task", "start date is required")
		}
	}

	end := t.End
	if !t.HasChildren() && (duration != t.Duration || !start.Equal(t.Start)) {
		if end, err = s.Calendar.ShiftForward(start, duration); err != nil {
			return err
		}
	}

	t.Name = name
	t.Mode = mode
	t.Duration = duration
	t.Start = start
	t.End = end
	return nil
}

// RemoveTask deletes a task and every edge touching it. Its children move
// up to its former parent, codes are renumbered and the former parent is
// rolled up.
func (s *Snapshot) RemoveTask(id string) (*models.Task, error) {
	t, err := s.Task(id)
	if err != nil {
		return nil, err
	}

	if _, err := s.graph.RemoveNode(id); err != nil {
		return nil, err
	}
	deps := s.Schedule.Dependencies[:0:0]
	for _, d := range s.Schedule.Dependencies {
		if d.PredecessorID != id && d.SuccessorID != id {
			deps = append(deps, d)
		}
	}
	s.Schedule.Dependencies = deps

	for _, child := range t.Children {
		s.tasks[child].ParentID = t.ParentID
	}
	if t.ParentID != "" {
		parent := s.tasks[t.ParentID]
		var children []string
		for _, c := range parent.Children {
			if c == id {
				children = append(children, t.Children...)
				continue
			}
			children = append(children, c)
		}
		parent.Children = children
	}

	delete(s.tasks, id)
	tasks := s.Schedule.Tasks[:0:0]
	for _, other := range s.Schedule.Tasks {
		if other.ID != id {
			tasks = append(tasks, other)
		}
	}
	s.Schedule.Tasks = tasks

	s.Renumber()
	if t.ParentID != "" {
		if _, err := s.RollupDates(t.ParentID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddDependency admits an edge into the graph and the schedule. Summary
// tasks take their dates from their children and cannot be an endpoint.
func (s *Snapshot) AddDependency(d models.Dependency) error {
	for _, id := range []string{d.PredecessorID, d.SuccessorID} {
		if t, ok := s.tasks[id]; ok && t.HasChildren() {
			return apperr.Validationf("add dependency", "summary task %s cannot have dependencies", id)
		}
	}
	if err := s.graph.AddEdge(d.PredecessorID, d.SuccessorID, d.Type, d.Lag); err != nil {
		return err
	}
	s.Schedule.Dependencies = append(s.Schedule.Dependencies, d)
	return nil
}

// RemoveDependency deletes the edge pred -> succ.
func (s *Snapshot) RemoveDependency(pred, succ string) (models.Dependency, error) {
	if err := s.graph.RemoveEdge(pred, succ); err != nil {
		return models.Dependency{}, err
	}
	var removed models.Dependency
	deps := s.Schedule.Dependencies[:0:0]
	for _, d := range s.Schedule.Dependencies {
		if d.PredecessorID == pred && d.SuccessorID == succ {
			removed = d
			continue
		}
		deps = append(deps, d)
	}
	s.Schedule.Dependencies = deps
	return removed, nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
