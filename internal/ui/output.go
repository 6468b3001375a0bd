package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/planner"
)

var (
	// Color definitions
	Red     = color.New(color.FgRed)
	Green   = color.New(color.FgGreen)
	Yellow  = color.New(color.FgYellow)
	Blue    = color.New(color.FgBlue)
	Cyan    = color.New(color.FgCyan)
	Magenta = color.New(color.FgMagenta)
	White   = color.New(color.FgWhite)

	// Bold variants
	BoldRed     = color.New(color.FgRed, color.Bold)
	BoldGreen   = color.New(color.FgGreen, color.Bold)
	BoldYellow  = color.New(color.FgYellow, color.Bold)
	BoldBlue    = color.New(color.FgBlue, color.Bold)
	BoldCyan    = color.New(color.FgCyan, color.Bold)
	BoldMagenta = color.New(color.FgMagenta, color.Bold)

	// Dim
	Dim = color.New(color.Faint)
)

// Init initializes the UI system
func Init() {
	cfg := config.Get()
	color.NoColor = !cfg.ColorOutput
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Green.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Red.Printf("✗ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Yellow.Printf("⚠ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Blue.Printf("ℹ "+format+"\n", args...)
}

// PrintHeader prints a section header
func PrintHeader(text string) {
	BoldCyan.Println("\n" + text)
	BoldCyan.Println(strings.Repeat("═", displayWidth(text)))
}

// PrintSubHeader prints a subsection header
func PrintSubHeader(text string) {
	BoldBlue.Println("\n" + text)
}

// PrintBox prints text in a bordered box
func PrintBox(title string, lines []string) {
	width := displayWidth(title) + 4
	for _, line := range lines {
		if w := displayWidth(line); w > width-4 {
			width = w + 4
		}
	}

	Cyan.Println("╔" + strings.Repeat("═", width-2) + "╗")
	Cyan.Print("║ ")
	BoldCyan.Print(title)
	Cyan.Println(strings.Repeat(" ", width-displayWidth(title)-3) + "║")
	if len(lines) > 0 {
		Cyan.Println("╠" + strings.Repeat("═", width-2) + "╣")
	}

	for _, line := range lines {
		Cyan.Print("║ ")
		fmt.Print(line)
		Cyan.Println(strings.Repeat(" ", width-displayWidth(line)-3) + "║")
	}

	Cyan.Println("╚" + strings.Repeat("═", width-2) + "╝")
}

// FormatDate renders a schedule date, "-" when unset
func FormatDate(t time.Time) string {
	return calendar.Format(t)
}

// FormatDatePtr renders an optional CPM date
func FormatDatePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return calendar.Format(*t)
}

// FormatDateTime formats a timestamp
func FormatDateTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatDays formats a working-day count
func FormatDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// FormatPercentage formats a percentage with 1 decimal place
func FormatPercentage(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// GetModeIcon returns an icon for a task's scheduling mode
func GetModeIcon(task *models.Task) string {
	switch {
	case task.HasChildren():
		return "▣"
	case task.IsMilestone():
		return "◆"
	case task.IsAuto():
		return "⟳"
	default:
		return "●"
	}
}

// GetTaskColor returns red for critical tasks, magenta for summaries and
// a float-based color otherwise
func GetTaskColor(task *models.Task) *color.Color {
	if task.HasChildren() {
		return Magenta
	}
	if task.Critical {
		return Red
	}
	return GetFloatColor(task.TotalFloat)
}

// GetFloatColor colors total float: none is red, under a week yellow
func GetFloatColor(float int) *color.Color {
	switch {
	case float <= 0:
		return Red
	case float < 5:
		return Yellow
	default:
		return Green
	}
}

// PrintTask prints a one-line task summary
func PrintTask(task *models.Task, indent string) {
	taskColor := GetTaskColor(task)

	taskColor.Printf("%s%s [%s] %s", indent, GetModeIcon(task), task.ID, task.Name)
	Dim.Printf("  %s → %s", FormatDate(task.Start), FormatDate(task.End))
	fmt.Printf("  %s", FormatDays(task.Duration))
	if task.Critical {
		BoldRed.Print("  critical")
	} else if task.EarlyStart != nil {
		GetFloatColor(task.TotalFloat).Printf("  float %d", task.TotalFloat)
	}
	fmt.Println()
}

// PrintTaskDetailed prints a task with its CPM fields and relationships
func PrintTaskDetailed(task *models.Task, schedule *models.Schedule) {
	PrintBox(task.Name, []string{})

	fmt.Println()
	BoldBlue.Print("ID:          ")
	fmt.Println(task.ID)

	BoldBlue.Print("Mode:        ")
	fmt.Printf("%s %s\n", GetModeIcon(task), task.Mode)

	BoldBlue.Print("WBS:         ")
	fmt.Printf("%s (level %d)\n", task.WBSCode, task.Level)

	BoldBlue.Print("Dates:       ")
	fmt.Printf("%s → %s (%s)\n", FormatDate(task.Start), FormatDate(task.End), FormatDays(task.Duration))

	fmt.Println()
	BoldBlue.Println("📐 Critical Path:")
	if task.EarlyStart == nil {
		Dim.Println("   Not calculated yet")
	} else {
		fmt.Printf("   Early:      %s → %s\n", FormatDatePtr(task.EarlyStart), FormatDatePtr(task.EarlyFinish))
		fmt.Printf("   Late:       %s → %s\n", FormatDatePtr(task.LateStart), FormatDatePtr(task.LateFinish))
		fmt.Print("   Float:      ")
		GetFloatColor(task.TotalFloat).Printf("total %d", task.TotalFloat)
		fmt.Printf(", free %d\n", task.FreeFloat)
		if task.Critical {
			BoldRed.Println("   ⚠ On the critical path")
		}
	}

	var preds, succs []models.Dependency
	for _, d := range schedule.Dependencies {
		if d.SuccessorID == task.ID {
			preds = append(preds, d)
		}
		if d.PredecessorID == task.ID {
			succs = append(succs, d)
		}
	}
	if len(preds) > 0 || len(succs) > 0 {
		fmt.Println()
		BoldBlue.Println("🔗 Dependencies:")
		for _, d := range preds {
			Yellow.Printf("   ← %s %s\n", d.PredecessorID, FormatDependency(d))
		}
		for _, d := range succs {
			Cyan.Printf("   → %s %s\n", d.SuccessorID, FormatDependency(d))
		}
	}

	if task.ParentID != "" || task.HasChildren() {
		fmt.Println()
		BoldBlue.Println("🧩 Hierarchy:")
		if parent := schedule.FindTask(task.ParentID); parent != nil {
			Magenta.Printf("   Parent: [%s] %s\n", parent.ID, parent.Name)
		}
		for _, childID := range task.Children {
			if child := schedule.FindTask(childID); child != nil {
				GetTaskColor(child).Printf("   Child:  [%s] %s\n", child.ID, child.Name)
			}
		}
	}

	fmt.Println()
	Dim.Printf("Created: %s\n", FormatDateTime(task.CreatedAt))
	Dim.Printf("Updated: %s\n", FormatDateTime(task.UpdatedAt))
}

// FormatDependency renders the type and lag, e.g. "FS+2"
func FormatDependency(d models.Dependency) string {
	if d.Lag == 0 {
		return d.Type.Short()
	}
	return fmt.Sprintf("%s%+d", d.Type.Short(), d.Lag)
}

// PrintScheduleSummary prints a schedule's headline figures
func PrintScheduleSummary(schedule *models.Schedule, sum planner.Summary) {
	PrintHeader(schedule.Name)

	if schedule.Description != "" {
		Dim.Println(schedule.Description)
	}

	fmt.Println()
	fmt.Printf("📅 Start:     %s\n", FormatDate(sum.Start))
	fmt.Printf("🏁 End:       %s\n", FormatDate(sum.End))
	calName := schedule.Calendar
	if calName == "" {
		calName = "(every day)"
	}
	fmt.Printf("🗓  Calendar:  %s\n", calName)

	fmt.Println()
	fmt.Printf("📊 Tasks: %d total\n", sum.Tasks)
	Magenta.Printf("   ▣ Summary:   %d\n", sum.Summaries)
	Cyan.Printf("   ◆ Milestone: %d\n", sum.Milestones)
	Red.Printf("   ⚠ Critical:  %d\n", sum.Critical)
	fmt.Printf("🔗 Dependencies: %d\n", len(schedule.Dependencies))

	fmt.Println()
	if sum.Calculated {
		Dim.Printf("Calculated: %s\n", FormatDateTime(*schedule.LastCalculatedAt))
	} else {
		PrintWarning("Not calculated yet; run 'qsched schedule recalc %s'", schedule.Name)
	}
}

// PrintSeparator prints a horizontal line
func PrintSeparator() {
	Dim.Println(strings.Repeat("─", 80))
}

// PrintEmptyState prints a message when no data exists
func PrintEmptyState(message string, suggestion string) {
	fmt.Println()
	Yellow.Println("ℹ️  " + message)
	if suggestion != "" {
		Dim.Println("   💡 " + suggestion)
	}
	fmt.Println()
}
