package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/models"
)

// GanttStyle defines the characters used in a gantt bar
type GanttStyle struct {
	Working   string
	Idle      string
	Milestone string
	Empty     string
}

var (
	// DefaultGanttStyle is the default style for gantt bars
	DefaultGanttStyle = GanttStyle{
		Working:   "█",
		Idle:      "░",
		Milestone: "◆",
		Empty:     "·",
	}

	// PlainGanttStyle avoids block characters
	PlainGanttStyle = GanttStyle{
		Working:   "#",
		Idle:      "-",
		Milestone: "*",
		Empty:     ".",
	}
)

// GanttScale maps calendar days onto chart columns
type GanttScale struct {
	Origin     time.Time
	Columns    int
	DaysPerCol int
}

// NewGanttScale fits the range [from, to] into at most maxCols columns
func NewGanttScale(from, to time.Time, maxCols int) GanttScale {
	from, to = calendar.Day(from), calendar.Day(to)
	days := int(to.Sub(from).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	if maxCols < 1 {
		maxCols = 1
	}
	perCol := (days + maxCols - 1) / maxCols
	return GanttScale{
		Origin:     from,
		Columns:    (days + perCol - 1) / perCol,
		DaysPerCol: perCol,
	}
}

func (g GanttScale) column(t time.Time) int {
	return int(calendar.Day(t).Sub(g.Origin).Hours()/24) / g.DaysPerCol
}

// RenderGanttBar draws a task over [Start, End). At one day per column,
// non-working days inside the bar use the idle character.
func RenderGanttBar(task *models.Task, scale GanttScale, cal *calendar.Calendar, style GanttStyle) string {
	var b strings.Builder
	if task.Start.IsZero() {
		return strings.Repeat(style.Empty, scale.Columns)
	}

	startCol := scale.column(task.Start)
	endCol := startCol
	if task.End.After(task.Start) {
		endCol = scale.column(task.End.AddDate(0, 0, -1))
	}

	for col := 0; col < scale.Columns; col++ {
		switch {
		case task.IsMilestone() && col == startCol:
			b.WriteString(style.Milestone)
		case task.IsMilestone() || col < startCol || col > endCol:
			b.WriteString(style.Empty)
		case scale.DaysPerCol == 1 && !cal.IsWorkingDay(scale.Origin.AddDate(0, 0, col)):
			b.WriteString(style.Idle)
		default:
			b.WriteString(style.Working)
		}
	}
	return b.String()
}

// PrintTree prints a tree structure
func PrintTree(nodes []TreeNode, indent string) {
	for i, node := range nodes {
		isLastChild := i == len(nodes)-1

		fmt.Print(indent)
		if isLastChild {
			fmt.Print("└── ")
		} else {
			fmt.Print("├── ")
		}

		node.Print()

		if len(node.Children) > 0 {
			childIndent := indent + "│   "
			if isLastChild {
				childIndent = indent + "    "
			}
			PrintTree(node.Children, childIndent)
		}
	}
}

// TreeNode represents a node in a tree structure
type TreeNode struct {
	Label    string
	Color    *color.Color
	Children []TreeNode
}

// Print prints the tree node
func (n TreeNode) Print() {
	if n.Color != nil {
		n.Color.Println(n.Label)
	} else {
		fmt.Println(n.Label)
	}
}

// BuildWBSTree arranges a schedule's tasks by their WBS hierarchy
func BuildWBSTree(schedule *models.Schedule) []TreeNode {
	visited := make(map[string]bool)

	var build func(t *models.Task) TreeNode
	build = func(t *models.Task) TreeNode {
		visited[t.ID] = true
		node := TreeNode{
			Label: fmt.Sprintf("%s %s %s [%s] %s → %s", t.WBSCode, GetModeIcon(t), t.Name, t.ID,
				FormatDate(t.Start), FormatDate(t.End)),
			Color: GetTaskColor(t),
		}
		for _, childID := range t.Children {
			if child := schedule.FindTask(childID); child != nil && !visited[childID] {
				node.Children = append(node.Children, build(child))
			}
		}
		return node
	}

	var roots []TreeNode
	for _, t := range schedule.Tasks {
		if t.ParentID == "" {
			roots = append(roots, build(t))
		}
	}
	return roots
}
