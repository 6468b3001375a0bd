package engine

import (
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

type span struct {
	start, end time.Time
}

// RescheduleFrom re-dates the given tasks and everything downstream of
// them. AUTO tasks take the latest start allowed by their predecessors'
// stored dates (the schedule start when they have none) and end after
// their duration. MANUAL tasks keep their dates but the cascade still
// passes through them. Summary tasks are left to RollupDates.
//
// Tasks are visited once each, in topological order of the reachable
// sub-graph, so a task reached along several paths sees its final
// predecessor dates. The returned tasks are the ones whose dates changed.
func (s *Snapshot) RescheduleFrom(ids ...string) ([]*models.Task, error) {
	for _, id := range ids {
		if _, ok := s.tasks[id]; !ok {
			return nil, apperr.NotFoundf("reschedule", "task %s not found in schedule %s", id, s.Schedule.Name)
		}
	}
	anchor := calendar.Day(s.Schedule.StartDate)
	if anchor.IsZero() {
		return nil, apperr.Validationf("reschedule", "schedule %s has no start date", s.Schedule.Name)
	}

	staged := make(map[string]span)
	current := func(id string) (span, bool) {
		if sp, ok := staged[id]; ok {
			return sp, true
		}
		t, ok := s.tasks[id]
		if !ok {
			return span{}, false
		}
		return span{t.Start, t.End}, true
	}

	var order []string
	for _, id := range s.graph.Reachable(ids...) {
		t := s.tasks[id]
		if !t.IsAuto() || t.HasChildren() {
			continue
		}

		start := anchor
		if preds := s.graph.Predecessors(id); len(preds) > 0 {
			start = time.Time{}
			for _, e := range preds {
				pred, ok := current(e.From)
				if !ok {
					return nil, apperr.NotFoundf("reschedule", "predecessor %s of task %s not found", e.From, id)
				}
				if pred.start.IsZero() || pred.end.IsZero() {
					return nil, apperr.Invariantf("reschedule", "predecessor %s of task %s has no dates", e.From, id)
				}
				candidate, err := forwardCandidate(s.Calendar, e, pred.start, pred.end, t.Duration)
				if err != nil {
					return nil, err
				}
				if start.IsZero() || candidate.After(start) {
					start = candidate
				}
			}
		}

		end, err := s.Calendar.ShiftForward(start, t.Duration)
		if err != nil {
			return nil, err
		}
		if !start.Equal(t.Start) || !end.Equal(t.End) {
			staged[id] = span{start, end}
			order = append(order, id)
		}
	}

	changed := make([]*models.Task, 0, len(order))
	for _, id := range order {
		t := s.tasks[id]
		t.Start, t.End = staged[id].start, staged[id].end
		changed = append(changed, t)
	}
	return changed, nil
}

// RescheduleAll re-dates every AUTO task starting from the graph roots.
func (s *Snapshot) RescheduleAll() ([]*models.Task, error) {
	return s.RescheduleFrom(s.graph.Roots()...)
}

// RederiveEnds recomputes End from Start and Duration for every leaf task
// under the current calendar. Callers run it after the calendar changed and
// before RescheduleAll, since MANUAL tasks are otherwise never re-dated.
func (s *Snapshot) RederiveEnds() ([]*models.Task, error) {
	staged := make(map[string]time.Time)
	var order []string
	for _, t := range s.Schedule.Tasks {
		if t.HasChildren() || t.Start.IsZero() {
			continue
		}
		end, err := s.Calendar.ShiftForward(t.Start, t.Duration)
		if err != nil {
			return nil, err
		}
		if !end.Equal(t.End) {
			staged[t.ID] = end
			order = append(order, t.ID)
		}
	}

	changed := make([]*models.Task, 0, len(order))
	for _, id := range order {
		t := s.tasks[id]
		t.End = staged[id]
		changed = append(changed, t)
	}
	return changed, nil
}
