package engine

import (
	"time"

	"github.com/mrbooshehri/qix-sched/internal/apperr"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/graph"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// CPMResult summarizes a critical path run.
type CPMResult struct {
	ProjectStart  time.Time
	ProjectEnd    time.Time
	TotalDuration int      // working days between start and end
	CriticalPath  []string // critical task IDs in forward order
	Order         []string // forward-pass completion order
}

type passState int

const (
	pending passState = iota
	computing
	done
)

type taskDates struct {
	es, ef, ls, lf time.Time
}

type slack struct {
	total, free int
}

type cpmPass struct {
	snap  *Snapshot
	cal   *calendar.Calendar
	g     *graph.Graph
	start time.Time
	end   time.Time

	forward  map[string]passState
	backward map[string]passState
	dates    map[string]*taskDates
	slack    map[string]slack
	order    []string
}

// Recalculate runs the forward and backward passes over every leaf task and
// writes early/late dates, floats and the critical flag. Summary tasks carry
// no dependencies; they get the envelope of their children's dates and the
// smallest of their floats. The schedule's EndDate becomes the project end.
// An empty schedule is a no-op.
func (s *Snapshot) Recalculate() (*CPMResult, error) {
	start := calendar.Day(s.Schedule.StartDate)
	if len(s.Schedule.Tasks) == 0 {
		return &CPMResult{ProjectStart: start, ProjectEnd: start}, nil
	}
	if start.IsZero() {
		return nil, apperr.Validationf("recalculate", "schedule %s has no start date", s.Schedule.Name)
	}

	p := &cpmPass{
		snap:     s,
		cal:      s.Calendar,
		g:        s.graph,
		start:    start,
		forward:  make(map[string]passState, len(s.tasks)),
		backward: make(map[string]passState, len(s.tasks)),
		dates:    make(map[string]*taskDates, len(s.tasks)),
		slack:    make(map[string]slack, len(s.tasks)),
	}

	for _, t := range s.Schedule.Tasks {
		if t.HasChildren() {
			continue
		}
		if err := p.early(t.ID); err != nil {
			return nil, err
		}
	}

	p.end = start
	for _, id := range p.order {
		if ef := p.dates[id].ef; ef.After(p.end) {
			p.end = ef
		}
	}

	for _, t := range s.Schedule.Tasks {
		if t.HasChildren() {
			continue
		}
		if err := p.late(t.ID); err != nil {
			return nil, err
		}
	}

	result := &CPMResult{
		ProjectStart:  start,
		ProjectEnd:    p.end,
		TotalDuration: s.Calendar.CountWorkingDaysBetween(start, p.end),
		Order:         p.order,
	}

	for _, id := range p.order {
		total, free := p.floats(id)
		p.slack[id] = slack{total, free}
		if total == 0 {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	rollups := make(map[string]passState)
	for _, t := range s.Schedule.Tasks {
		if t.HasChildren() {
			if err := p.summary(t.ID, rollups); err != nil {
				return nil, err
			}
		}
	}

	for _, t := range s.Schedule.Tasks {
		d := p.dates[t.ID]
		t.EarlyStart = timePtr(d.es)
		t.EarlyFinish = timePtr(d.ef)
		t.LateStart = timePtr(d.ls)
		t.LateFinish = timePtr(d.lf)
		t.TotalFloat = p.slack[t.ID].total
		t.FreeFloat = p.slack[t.ID].free
		t.Critical = t.TotalFloat == 0
	}
	s.Schedule.EndDate = p.end

	return result, nil
}

// early computes ES/EF for id after all of its predecessors.
func (p *cpmPass) early(id string) error {
	switch p.forward[id] {
	case done:
		return nil
	case computing:
		return apperr.Invariantf("recalculate", "cycle through task %s in forward pass", id)
	}
	p.forward[id] = computing

	t, ok := p.snap.tasks[id]
	if !ok {
		return apperr.NotFoundf("recalculate", "task %s not found", id)
	}

	es := p.start
	if preds := p.g.Predecessors(id); len(preds) > 0 {
		es = time.Time{}
		for _, e := range preds {
			if err := p.early(e.From); err != nil {
				return err
			}
			pd := p.dates[e.From]
			candidate, err := forwardCandidate(p.cal, e, pd.es, pd.ef, t.Duration)
			if err != nil {
				return err
			}
			if es.IsZero() || candidate.After(es) {
				es = candidate
			}
		}
	}

	ef, err := p.cal.ShiftForward(es, t.Duration)
	if err != nil {
		return err
	}
	p.dates[id] = &taskDates{es: es, ef: ef}
	p.forward[id] = done
	p.order = append(p.order, id)
	return nil
}

// late computes LS/LF for id after all of its successors.
func (p *cpmPass) late(id string) error {
	switch p.backward[id] {
	case done:
		return nil
	case computing:
		return apperr.Invariantf("recalculate", "cycle through task %s in backward pass", id)
	}
	p.backward[id] = computing

	t := p.snap.tasks[id]
	lf := p.end
	if succs := p.g.Successors(id); len(succs) > 0 {
		lf = time.Time{}
		for _, e := range succs {
			if err := p.late(e.To); err != nil {
				return err
			}
			sd := p.dates[e.To]
			candidate, err := backwardCandidate(p.cal, e, sd.ls, sd.lf, t.Duration)
			if err != nil {
				return err
			}
			if lf.IsZero() || candidate.Before(lf) {
				lf = candidate
			}
		}
	}

	ls, err := p.cal.ShiftBackward(lf, t.Duration)
	if err != nil {
		return err
	}
	d := p.dates[id]
	d.ls, d.lf = ls, lf
	p.backward[id] = done
	return nil
}

// summary derives a summary task's CPM fields from its children, rolling up
// nested summaries first.
func (p *cpmPass) summary(id string, state map[string]passState) error {
	switch state[id] {
	case done:
		return nil
	case computing:
		return apperr.Invariantf("recalculate", "task hierarchy loops through %s", id)
	}
	state[id] = computing

	t := p.snap.tasks[id]
	var d *taskDates
	var sl slack
	for _, childID := range t.Children {
		child, ok := p.snap.tasks[childID]
		if !ok {
			return apperr.Invariantf("recalculate", "task %s lists unknown child %s", id, childID)
		}
		if child.HasChildren() {
			if err := p.summary(childID, state); err != nil {
				return err
			}
		}
		cd, ok := p.dates[childID]
		if !ok {
			return apperr.Invariantf("recalculate", "child %s of %s was not scheduled", childID, id)
		}
		cs := p.slack[childID]
		if d == nil {
			d = &taskDates{es: cd.es, ef: cd.ef, ls: cd.ls, lf: cd.lf}
			sl = cs
			continue
		}
		d.es = earliest(d.es, cd.es)
		d.ls = earliest(d.ls, cd.ls)
		d.ef = latest(d.ef, cd.ef)
		d.lf = latest(d.lf, cd.lf)
		sl.total = min(sl.total, cs.total)
		sl.free = min(sl.free, cs.free)
	}
	if d == nil {
		return apperr.Invariantf("recalculate", "summary task %s has no children", id)
	}

	p.dates[id] = d
	p.slack[id] = sl
	state[id] = done
	return nil
}

// floats returns total and free float in working days. Free float falls
// back to total float when the task has no successors.
func (p *cpmPass) floats(id string) (int, int) {
	d := p.dates[id]
	total := p.cal.CountWorkingDaysBetween(d.es, d.ls)
	if total < 0 {
		total = 0
	}

	var nextStart time.Time
	for _, e := range p.g.Successors(id) {
		if sd, ok := p.dates[e.To]; ok && (nextStart.IsZero() || sd.es.Before(nextStart)) {
			nextStart = sd.es
		}
	}
	if nextStart.IsZero() {
		return total, total
	}

	free := p.cal.CountWorkingDaysBetween(d.ef, nextStart)
	if free < 0 {
		free = 0
	}
	if free > total {
		free = total
	}
	return total, free
}

// forwardCandidate is the earliest start a successor of duration dur may
// take under edge e, given the predecessor's start and finish.
func forwardCandidate(cal *calendar.Calendar, e graph.Edge, predStart, predFinish time.Time, dur int) (time.Time, error) {
	switch e.Type {
	case models.FinishToStart:
		return cal.Shift(predFinish, e.Lag)
	case models.StartToStart:
		return cal.Shift(predStart, e.Lag)
	case models.FinishToFinish:
		anchor, err := cal.Shift(predFinish, e.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return cal.ShiftBackward(anchor, dur)
	case models.StartToFinish:
		anchor, err := cal.Shift(predStart, e.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return cal.ShiftBackward(anchor, dur)
	}
	return time.Time{}, apperr.Invariantf("forward pass", "edge %s has unknown type %q", e, e.Type)
}

// backwardCandidate mirrors forwardCandidate: the latest finish a
// predecessor of duration dur may take under edge e, given the successor's
// late start and late finish.
func backwardCandidate(cal *calendar.Calendar, e graph.Edge, succStart, succFinish time.Time, dur int) (time.Time, error) {
	switch e.Type {
	case models.FinishToStart:
		return cal.Shift(succStart, -e.Lag)
	case models.StartToStart:
		anchor, err := cal.Shift(succStart, -e.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return cal.ShiftForward(anchor, dur)
	case models.FinishToFinish:
		return cal.Shift(succFinish, -e.Lag)
	case models.StartToFinish:
		anchor, err := cal.Shift(succFinish, -e.Lag)
		if err != nil {
			return time.Time{}, err
		}
		return cal.ShiftForward(anchor, dur)
	}
	return time.Time{}, apperr.Invariantf("backward pass", "edge %s has unknown type %q", e, e.Type)
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func timePtr(t time.Time) *time.Time {
	return &t
}
