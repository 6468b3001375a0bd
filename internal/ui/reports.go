package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// PrintTaskTable prints tasks with dates, duration and float
func PrintTaskTable(tasks []*models.Task) {
	tb := NewTableBuilder("WBS", "ID", "Name", "Mode", "Start", "End", "Days", "Float").
		Align(6, AlignRight).
		Align(7, AlignRight)

	for _, t := range tasks {
		float := "-"
		if t.EarlyStart != nil {
			float = strconv.Itoa(t.TotalFloat)
		}
		c := GetTaskColor(t)
		tb.ColoredRow(
			[]string{t.WBSCode, t.ID, t.Name, string(t.Mode), FormatDate(t.Start), FormatDate(t.End),
				strconv.Itoa(t.Duration), float},
			[]*color.Color{Dim, nil, c, nil, nil, nil, nil, GetFloatColor(t.TotalFloat)},
		)
	}
	tb.Print()
}

// PrintDependencyTable prints a schedule's precedence constraints
func PrintDependencyTable(schedule *models.Schedule) {
	tb := NewTableBuilder("Predecessor", "", "Successor", "Type", "Lag").Align(4, AlignRight)
	for _, d := range schedule.Dependencies {
		pred, succ := d.PredecessorID, d.SuccessorID
		if t := schedule.FindTask(pred); t != nil {
			pred = fmt.Sprintf("[%s] %s", t.ID, t.Name)
		}
		if t := schedule.FindTask(succ); t != nil {
			succ = fmt.Sprintf("[%s] %s", t.ID, t.Name)
		}
		tb.Row(pred, "→", succ, string(d.Type), strconv.Itoa(d.Lag))
	}
	tb.Print()
}

// PrintCriticalReport prints the critical chain of a calculated schedule
func PrintCriticalReport(schedule *models.Schedule, critical []*models.Task) {
	PrintHeader(fmt.Sprintf("Critical Path: %s", schedule.Name))
	fmt.Printf("Project: %s → %s\n", FormatDate(schedule.StartDate), FormatDate(schedule.EndDate))

	if len(critical) == 0 {
		PrintEmptyState("No critical tasks", "Add tasks and run: qsched schedule recalc "+schedule.Name)
		return
	}

	fmt.Println()
	for i, t := range critical {
		prefix := "  "
		if i > 0 {
			Dim.Println("  │")
		}
		BoldRed.Printf("%s%s [%s] %s", prefix, GetModeIcon(t), t.ID, t.Name)
		Dim.Printf("  ES %s  EF %s  (%s)\n", FormatDatePtr(t.EarlyStart), FormatDatePtr(t.EarlyFinish), FormatDays(t.Duration))
	}
	fmt.Println()
	PrintInfo("%d critical task(s) of %d", len(critical), len(schedule.Tasks))
}

// PrintFloatReport prints every task's early/late dates and floats
func PrintFloatReport(schedule *models.Schedule, tasks []*models.Task) {
	PrintHeader(fmt.Sprintf("Float Analysis: %s", schedule.Name))

	if len(tasks) == 0 {
		PrintEmptyState("No tasks in schedule", "Create one with: qsched task create "+schedule.Name+" <name>")
		return
	}

	tb := NewTableBuilder("ID", "Name", "ES", "EF", "LS", "LF", "Total", "Free", "").
		Align(6, AlignRight).
		Align(7, AlignRight)
	for _, t := range tasks {
		mark := ""
		if t.Critical {
			mark = "critical"
		}
		fc := GetFloatColor(t.TotalFloat)
		tb.ColoredRow(
			[]string{t.ID, t.Name, FormatDatePtr(t.EarlyStart), FormatDatePtr(t.EarlyFinish),
				FormatDatePtr(t.LateStart), FormatDatePtr(t.LateFinish),
				strconv.Itoa(t.TotalFloat), strconv.Itoa(t.FreeFloat), mark},
			[]*color.Color{nil, GetTaskColor(t), nil, nil, nil, nil, fc, fc, BoldRed},
		)
	}
	tb.Print()

	if !schedule.IsCalculated() {
		PrintWarning("Float values are stale; run 'qsched schedule recalc %s'", schedule.Name)
	}
}

// PrintWBSReport prints the work breakdown structure as a tree
func PrintWBSReport(schedule *models.Schedule) {
	PrintHeader(fmt.Sprintf("WBS: %s", schedule.Name))

	if len(schedule.Tasks) == 0 {
		PrintEmptyState("No tasks in schedule", "Create one with: qsched task create "+schedule.Name+" <name>")
		return
	}

	fmt.Println()
	PrintTree(BuildWBSTree(schedule), "")
	fmt.Println()
	Dim.Println("▣ summary  ◆ milestone  ⟳ auto  ● manual")
}

// PrintGanttReport prints one bar per task in WBS order
func PrintGanttReport(schedule *models.Schedule, cal *calendar.Calendar, maxCols int, style GanttStyle) {
	PrintHeader(fmt.Sprintf("Gantt: %s", schedule.Name))

	if len(schedule.Tasks) == 0 {
		PrintEmptyState("No tasks in schedule", "Create one with: qsched task create "+schedule.Name+" <name>")
		return
	}

	from, to := chartRange(schedule)
	scale := NewGanttScale(from, to, maxCols)

	labelWidth := 0
	rows := wbsOrder(schedule)
	for _, t := range rows {
		if w := displayWidth(ganttLabel(t)); w > labelWidth {
			labelWidth = w
		}
	}

	fmt.Println()
	Dim.Printf("%-*s %s", labelWidth, "", FormatDate(scale.Origin))
	if scale.DaysPerCol > 1 {
		Dim.Printf("  (1 column = %d days)", scale.DaysPerCol)
	}
	fmt.Println()

	for _, t := range rows {
		label := ganttLabel(t)
		fmt.Print(label)
		fmt.Print(spaces(labelWidth - displayWidth(label) + 1))
		GetTaskColor(t).Println(RenderGanttBar(t, scale, cal, style))
	}
	fmt.Println()
}

func ganttLabel(t *models.Task) string {
	return fmt.Sprintf("%s%s %s", spaces(2*t.Level), t.WBSCode, t.Name)
}

func spaces(n int) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%*s", n, "")
}

// chartRange spans every task date and the schedule bounds
func chartRange(schedule *models.Schedule) (time.Time, time.Time) {
	from, to := schedule.StartDate, schedule.EndDate
	for _, t := range schedule.Tasks {
		if !t.Start.IsZero() && (from.IsZero() || t.Start.Before(from)) {
			from = t.Start
		}
		if t.End.After(to) {
			to = t.End
		}
	}
	if to.Before(from) {
		to = from
	}
	return from, to
}

// wbsOrder lists tasks depth-first through the hierarchy
func wbsOrder(schedule *models.Schedule) []*models.Task {
	var out []*models.Task
	visited := make(map[string]bool)
	var walk func(t *models.Task)
	walk = func(t *models.Task) {
		if visited[t.ID] {
			return
		}
		visited[t.ID] = true
		out = append(out, t)
		for _, id := range t.Children {
			if child := schedule.FindTask(id); child != nil {
				walk(child)
			}
		}
	}
	for _, t := range schedule.Tasks {
		if t.ParentID == "" {
			walk(t)
		}
	}
	return out
}
