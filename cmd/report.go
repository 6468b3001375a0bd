package cmd

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/planner"
	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate schedule reports",
	Long:  "Critical path, float, WBS and gantt views of a schedule",
}

var reportCriticalCmd = &cobra.Command{
	Use:               "critical <schedule>",
	Short:             "Show the critical path",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		sc := loadReportSchedule(cmd, args[0])
		if sc == nil {
			return
		}
		ui.PrintCriticalReport(sc, planner.CriticalPath(sc))
	},
}

var reportFloatCmd = &cobra.Command{
	Use:               "float <schedule>",
	Short:             "Show early/late dates and float per task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		sc := loadReportSchedule(cmd, args[0])
		if sc == nil {
			return
		}
		ui.PrintFloatReport(sc, planner.ByFloat(sc))
	},
}

var reportWBSCmd = &cobra.Command{
	Use:               "wbs <schedule>",
	Short:             "Show the work breakdown structure",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		sc := loadReportSchedule(cmd, args[0])
		if sc == nil {
			return
		}
		ui.PrintWBSReport(sc)
	},
}

var reportGanttCmd = &cobra.Command{
	Use:               "gantt <schedule>",
	Short:             "Draw a text gantt chart",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		width, _ := cmd.Flags().GetInt("width")
		plain, _ := cmd.Flags().GetBool("plain")

		sc := loadReportSchedule(cmd, args[0])
		if sc == nil {
			return
		}
		cal, err := service.CalendarOf(sc)
		if err != nil {
			ui.PrintError("Failed to load calendar: %v", err)
			return
		}

		if width <= 0 {
			width = terminalColumns() / 2
		}
		style := ui.DefaultGanttStyle
		if plain {
			style = ui.PlainGanttStyle
		}
		ui.PrintGanttReport(sc, cal, width, style)
	},
}

// loadReportSchedule loads a schedule, recalculating first when --recalc
// is set or the stored floats are stale
func loadReportSchedule(cmd *cobra.Command, name string) *models.Schedule {
	recalc, _ := cmd.Flags().GetBool("recalc")

	sc, err := service.GetSchedule(name)
	if err != nil {
		ui.PrintError("Schedule not found: %v", err)
		return nil
	}
	if !recalc && (sc.IsCalculated() || len(sc.Tasks) == 0) {
		return sc
	}

	if _, err := service.Recalculate(name); err != nil {
		ui.PrintError("Failed to calculate schedule: %v", err)
		return nil
	}
	sc, err = service.GetSchedule(name)
	if err != nil {
		ui.PrintError("Schedule not found: %v", err)
		return nil
	}
	return sc
}

func terminalColumns() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return 120
}

func init() {
	reportCmd.PersistentFlags().Bool("recalc", false, "Recalculate the schedule before reporting")

	reportGanttCmd.Flags().IntP("width", "w", 0, "Maximum chart columns (default half the terminal)")
	reportGanttCmd.Flags().Bool("plain", false, "Use ASCII characters")

	reportCmd.AddCommand(reportCriticalCmd)
	reportCmd.AddCommand(reportFloatCmd)
	reportCmd.AddCommand(reportWBSCmd)
	reportCmd.AddCommand(reportGanttCmd)
}
