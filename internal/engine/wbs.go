package engine

import (
	"strconv"
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// RollupDates sets a summary task's span to the envelope of its children
// and walks up to the root doing the same. A task without children keeps
// its span. Returns the tasks whose span or duration changed.
func (s *Snapshot) RollupDates(parentID string) ([]*models.Task, error) {
	if _, err := s.Task(parentID); err != nil {
		return nil, err
	}

	type rollup struct {
		start, end time.Time
		duration   int
	}
	staged := make(map[string]rollup)
	var order []string
	visited := make(map[string]bool)

	spanOf := func(t *models.Task) (time.Time, time.Time) {
		if r, ok := staged[t.ID]; ok {
			return r.start, r.end
		}
		return t.Start, t.End
	}

	for id := parentID; id != ""; {
		if visited[id] {
			return nil, apperr.Invariantf("rollup", "task hierarchy loops through %s", id)
		}
		visited[id] = true

		parent, ok := s.tasks[id]
		if !ok {
			return nil, apperr.NotFoundf("rollup", "parent task %s not found", id)
		}
		if !parent.HasChildren() {
			break
		}

		var start, end time.Time
		for _, childID := range parent.Children {
			child, ok := s.tasks[childID]
			if !ok {
				return nil, apperr.Invariantf("rollup", "task %s lists unknown child %s", id, childID)
			}
			cs, ce := spanOf(child)
			if start.IsZero() || cs.Before(start) {
				start = cs
			}
			if end.IsZero() || ce.After(end) {
				end = ce
			}
		}

		r := rollup{start: start, end: end, duration: s.Calendar.CountWorkingDaysBetween(start, end)}
		if !r.start.Equal(parent.Start) || !r.end.Equal(parent.End) || r.duration != parent.Duration {
			staged[id] = r
			order = append(order, id)
		}
		id = parent.ParentID
	}

	changed := make([]*models.Task, 0, len(order))
	for _, id := range order {
		t := s.tasks[id]
		t.Start, t.End, t.Duration = staged[id].start, staged[id].end, staged[id].duration
		changed = append(changed, t)
	}
	return changed, nil
}

// RollupAncestors rolls up the parent of every given task once.
func (s *Snapshot) RollupAncestors(tasks []*models.Task) ([]*models.Task, error) {
	seen := make(map[string]bool)
	var changed []*models.Task
	for _, t := range tasks {
		if t.ParentID == "" || seen[t.ParentID] {
			continue
		}
		seen[t.ParentID] = true
		c, err := s.RollupDates(t.ParentID)
		if err != nil {
			return nil, err
		}
		changed = append(changed, c...)
	}
	return changed, nil
}

// SetParent moves child under parent, appending it to the parent's
// children. A task cannot become its own parent or the child of one of
// its descendants.
func (s *Snapshot) SetParent(childID, parentID string) error {
	child, err := s.Task(childID)
	if err != nil {
		return err
	}
	parent, err := s.Task(parentID)
	if err != nil {
		return err
	}
	if childID == parentID {
		return apperr.Validationf("set parent", "task %s cannot be its own parent", childID)
	}
	for p := parent.ParentID; p != ""; p = s.tasks[p].ParentID {
		if p == childID {
			return apperr.Validationf("set parent", "task %s is a descendant of %s", parentID, childID)
		}
	}
	if child.ParentID == parentID {
		return nil
	}
	if err := s.checkCanParent("set parent", parentID); err != nil {
		return err
	}

	oldParent := child.ParentID
	if oldParent != "" {
		old := s.tasks[oldParent]
		old.Children = without(old.Children, childID)
	}
	child.ParentID = parentID
	parent.Children = append(parent.Children, childID)
	s.Renumber()

	if _, err := s.RollupDates(parentID); err != nil {
		return err
	}
	if oldParent != "" {
		if _, err := s.RollupDates(oldParent); err != nil {
			return err
		}
	}
	return nil
}

// checkCanParent rejects a parent that has dependencies. Giving it children
// would turn it into a summary task, whose dates come from the children.
func (s *Snapshot) checkCanParent(op, parentID string) error {
	if len(s.graph.Predecessors(parentID)) > 0 || len(s.graph.Successors(parentID)) > 0 {
		return apperr.Validationf(op, "task %s has dependencies and cannot take children", parentID)
	}
	return nil
}

// ClearParent detaches a task from its parent, making it a root.
func (s *Snapshot) ClearParent(childID string) error {
	child, err := s.Task(childID)
	if err != nil {
		return err
	}
	if child.ParentID == "" {
		return nil
	}

	oldParent := child.ParentID
	old := s.tasks[oldParent]
	old.Children = without(old.Children, childID)
	child.ParentID = ""
	s.Renumber()

	_, err = s.RollupDates(oldParent)
	return err
}

// Renumber assigns Level and WBSCode from the hierarchy. Roots are
// numbered in schedule order, children in their parent's order.
func (s *Snapshot) Renumber() {
	visited := make(map[string]bool)

	var walk func(t *models.Task, code string, level int)
	walk = func(t *models.Task, code string, level int) {
		if visited[t.ID] {
			return
		}
		visited[t.ID] = true
		t.WBSCode = code
		t.Level = level
		for i, childID := range t.Children {
			if child, ok := s.tasks[childID]; ok {
				walk(child, code+"."+strconv.Itoa(i+1), level+1)
			}
		}
	}

	n := 0
	for _, t := range s.Schedule.Tasks {
		if t.ParentID == "" {
			n++
			walk(t, strconv.Itoa(n), 0)
		}
	}
}

// Descendants returns every task below id in depth-first order.
func (s *Snapshot) Descendants(id string) []*models.Task {
	var out []*models.Task
	visited := map[string]bool{id: true}
	var walk func(string)
	walk = func(pid string) {
		t, ok := s.tasks[pid]
		if !ok {
			return
		}
		for _, c := range t.Children {
			if visited[c] {
				continue
			}
			visited[c] = true
			if child, ok := s.tasks[c]; ok {
				out = append(out, child)
				walk(c)
			}
		}
	}
	walk(id)
	return out
}

func without(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
