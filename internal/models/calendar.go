package models

import "time"

// Calendar defines which days count as working time
type Calendar struct {
	Name        string         `json:"name"`
	WorkingDays []time.Weekday `json:"working_days"`
	Exceptions  []Exception    `json:"exceptions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Exception overrides the weekday rule for a single date or, when
// recurring, for the same month/day every year
type Exception struct {
	Date        time.Time     `json:"date"`
	Type        ExceptionType `json:"type"`
	Recurring   bool          `json:"recurring"`
	Description string        `json:"description,omitempty"`
}

// ExceptionType is the classification forced by an exception
type ExceptionType string

const (
	ExceptionWorking    ExceptionType = "WORKING"
	ExceptionNonWorking ExceptionType = "NON_WORKING"
)

// IsValid reports whether the exception type is known
func (e ExceptionType) IsValid() bool {
	return e == ExceptionWorking || e == ExceptionNonWorking
}

// DefaultWorkingDays returns Monday through Friday
func DefaultWorkingDays() []time.Weekday {
	return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
}

// Clone returns a deep copy of the calendar
func (c *Calendar) Clone() *Calendar {
	cp := *c
	cp.WorkingDays = append([]time.Weekday(nil), c.WorkingDays...)
	cp.Exceptions = append([]Exception(nil), c.Exceptions...)
	return &cp
}
