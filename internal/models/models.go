package models

import (
	"fmt"
	"strings"
	"time"
)

// Schedule is the container for a set of tasks and their dependencies
type Schedule struct {
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	Calendar         string       `json:"calendar,omitempty"`
	Tasks            []*Task      `json:"tasks"`
	Dependencies     []Dependency `json:"dependencies"`
	LastCalculatedAt *time.Time   `json:"last_calculated_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Task represents a schedulable unit of work
type Task struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Duration int          `json:"duration"` // working days, 0 = milestone
	Mode     ScheduleMode `json:"mode"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`

	// CPM working fields, nil until the schedule has been calculated
	EarlyStart  *time.Time `json:"early_start,omitempty"`
	EarlyFinish *time.Time `json:"early_finish,omitempty"`
	LateStart   *time.Time `json:"late_start,omitempty"`
	LateFinish  *time.Time `json:"late_finish,omitempty"`
	TotalFloat  int        `json:"total_float"`
	FreeFloat   int        `json:"free_float"`
	Critical    bool       `json:"critical"`

	// WBS
	ParentID string   `json:"parent_id,omitempty"`
	Children []string `json:"children,omitempty"`
	Level    int      `json:"level"`
	WBSCode  string   `json:"wbs_code"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduleMode tells whether task dates are derived or fixed
type ScheduleMode string

const (
	ModeManual ScheduleMode = "MANUAL"
	ModeAuto   ScheduleMode = "AUTO"
)

// IsValid reports whether the mode is one of the known modes
func (m ScheduleMode) IsValid() bool {
	return m == ModeManual || m == ModeAuto
}

// DependencyType is the precedence constraint between two tasks
type DependencyType string

const (
	FinishToStart  DependencyType = "FINISH_TO_START"
	StartToStart   DependencyType = "START_TO_START"
	FinishToFinish DependencyType = "FINISH_TO_FINISH"
	StartToFinish  DependencyType = "START_TO_FINISH"
)

// IsValid reports whether the dependency type is one of the four known types
func (d DependencyType) IsValid() bool {
	switch d {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	}
	return false
}

// Short returns the two letter abbreviation (FS, SS, FF, SF)
func (d DependencyType) Short() string {
	switch d {
	case FinishToStart:
		return "FS"
	case StartToStart:
		return "SS"
	case FinishToFinish:
		return "FF"
	case StartToFinish:
		return "SF"
	}
	return string(d)
}

// ParseDependencyType accepts the full names and the FS/SS/FF/SF aliases, case-insensitive
func ParseDependencyType(s string) (DependencyType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FS", string(FinishToStart):
		return FinishToStart, nil
	case "SS", string(StartToStart):
		return StartToStart, nil
	case "FF", string(FinishToFinish):
		return FinishToFinish, nil
	case "SF", string(StartToFinish):
		return StartToFinish, nil
	}
	return "", fmt.Errorf("unknown dependency type %q (use FS, SS, FF or SF)", s)
}

// ParseMode parses MANUAL or AUTO, case-insensitive
func ParseMode(s string) (ScheduleMode, error) {
	m := ScheduleMode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown schedule mode %q (use MANUAL or AUTO)", s)
	}
	return m, nil
}

// Dependency is a directed precedence constraint
type Dependency struct {
	PredecessorID string         `json:"predecessor_id"`
	SuccessorID   string         `json:"successor_id"`
	Type          DependencyType `json:"type"`
	Lag           int            `json:"lag"` // working days, negative = lead
	CreatedAt     time.Time      `json:"created_at"`
}

// TaskIndex maps task IDs to the schedule that owns them
type TaskIndex map[string]string

// IsMilestone reports whether the task has zero duration
func (t *Task) IsMilestone() bool {
	return t.Duration == 0
}

// IsAuto reports whether the task dates are derived from predecessors
func (t *Task) IsAuto() bool {
	return t.Mode == ModeAuto
}

// HasChildren reports whether the task is a WBS summary
func (t *Task) HasChildren() bool {
	return len(t.Children) > 0
}

// Clone returns a deep copy of the task
func (t *Task) Clone() *Task {
	c := *t
	c.EarlyStart = cloneTime(t.EarlyStart)
	c.EarlyFinish = cloneTime(t.EarlyFinish)
	c.LateStart = cloneTime(t.LateStart)
	c.LateFinish = cloneTime(t.LateFinish)
	if t.Children != nil {
		c.Children = append([]string(nil), t.Children...)
	}
	return &c
}

// Clone returns a deep copy of the schedule so updates can be discarded on failure
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.LastCalculatedAt = cloneTime(s.LastCalculatedAt)
	c.Tasks = make([]*Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		c.Tasks = append(c.Tasks, t.Clone())
	}
	c.Dependencies = append(make([]Dependency, 0, len(s.Dependencies)), s.Dependencies...)
	return &c
}

// FindTask returns the task with the given ID, or nil
func (s *Schedule) FindTask(id string) *Task {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CriticalTasks returns the tasks currently flagged as critical
func (s *Schedule) CriticalTasks() []*Task {
	tasks := make([]*Task, 0)
	for _, t := range s.Tasks {
		if t.Critical {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// IsCalculated reports whether CPM has run since the last structural edit
func (s *Schedule) IsCalculated() bool {
	return s.LastCalculatedAt != nil
}

// CountMilestones returns the number of zero-duration tasks
func (s *Schedule) CountMilestones() int {
	count := 0
	for _, t := range s.Tasks {
		if t.IsMilestone() {
			count++
		}
	}
	return count
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
