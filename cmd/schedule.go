package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/planner"
	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"sched"},
	Short:   "Manage schedules",
	Long:    "Create, inspect, recalculate and remove schedules",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <name> [description]",
	Short: "Create a new schedule",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		startFlag, _ := cmd.Flags().GetString("start")
		calName, _ := cmd.Flags().GetString("calendar")
		description, _ := cmd.Flags().GetString("description")
		if description == "" {
			description = strings.Join(args[1:], " ")
		}

		start, err := calendar.ParseDate(startFlag)
		if err != nil {
			ui.PrintError("Invalid start date: %v", err)
			return
		}

		sc, err := service.CreateSchedule(planner.ScheduleInput{
			Name:        args[0],
			Description: description,
			Start:       start,
			Calendar:    calName,
		})
		if err != nil {
			ui.PrintError("Failed to create schedule: %v", err)
			return
		}

		ui.PrintSuccess("Schedule '%s' created", sc.Name)
		ui.Dim.Printf("  Start:    %s\n", ui.FormatDate(sc.StartDate))
		if sc.Calendar != "" {
			ui.Dim.Printf("  Calendar: %s\n", sc.Calendar)
		} else {
			ui.Dim.Println("  Calendar: (every day)")
		}
		if sc.Description != "" {
			ui.Dim.Printf("  Description: %s\n", sc.Description)
		}
	},
}

var scheduleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List existing schedules",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		schedules, err := service.ListSchedules()
		if err != nil {
			ui.PrintError("Failed to list schedules: %v", err)
			return
		}

		if len(schedules) == 0 {
			ui.PrintEmptyState("No schedules found", "Create one with: qsched schedule create <name> --start YYYY-MM-DD")
			return
		}

		sort.Slice(schedules, func(i, j int) bool { return schedules[i].Name < schedules[j].Name })
		ui.PrintHeader("📅 Schedules")

		tb := ui.NewTableBuilder("Name", "Calendar", "Start", "End", "Tasks", "Critical", "Calculated").
			Align(4, ui.AlignRight).
			Align(5, ui.AlignRight)
		for _, sc := range schedules {
			sum := planner.Summarize(sc)
			calc := "no"
			if sum.Calculated {
				calc = ui.FormatDateTime(*sc.LastCalculatedAt)
			}
			calName := sc.Calendar
			if calName == "" {
				calName = planner.NoCalendar
			}
			tb.Row(sc.Name, calName, ui.FormatDate(sum.Start), ui.FormatDate(sum.End),
				fmt.Sprint(sum.Tasks), fmt.Sprint(sum.Critical), calc)
		}
		tb.PrintSimple()
	},
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show schedule details",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeScheduleNames(toComplete)
	},
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := service.GetSchedule(args[0])
		if err != nil {
			ui.PrintError("Schedule not found: %v", err)
			return
		}

		ui.PrintScheduleSummary(sc, planner.Summarize(sc))

		if len(sc.Tasks) > 0 {
			ui.PrintSubHeader("🗒️  Tasks")
			ui.PrintTaskTable(sc.Tasks)
		}
		if len(sc.Dependencies) > 0 {
			ui.PrintSubHeader("🔗 Dependencies")
			ui.PrintDependencyTable(sc)
		}
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a schedule with its tasks and dependencies",
	Args:    cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeScheduleNames(toComplete)
	},
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		force, _ := cmd.Flags().GetBool("force")

		sc, err := service.GetSchedule(name)
		if err != nil {
			ui.PrintError("Schedule not found: %v", err)
			return
		}

		if !force {
			fmt.Printf("⚠️  This will delete schedule '%s' and its %d task(s).\n", name, len(sc.Tasks))
			if !confirm("Type the schedule name to confirm: ", name) {
				ui.PrintInfo("Deletion cancelled")
				return
			}
		}

		if err := service.RemoveSchedule(name); err != nil {
			ui.PrintError("Failed to remove schedule: %v", err)
			return
		}
		ui.PrintSuccess("Schedule '%s' removed", name)
	},
}

var scheduleRecalcCmd = &cobra.Command{
	Use:     "recalc <name>",
	Aliases: []string{"calc"},
	Short:   "Recompute the critical path and floats",
	Args:    cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeScheduleNames(toComplete)
	},
	Run: func(cmd *cobra.Command, args []string) {
		result, err := service.Recalculate(args[0])
		if err != nil {
			ui.PrintError("Failed to calculate schedule: %v", err)
			return
		}
		ui.PrintSuccess("Schedule '%s' calculated", args[0])
		printCPMResult(result)
	},
}

var scheduleSetCalendarCmd = &cobra.Command{
	Use:   "set-calendar <name> <calendar|none>",
	Short: "Assign a calendar and re-date every task",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		switch len(args) {
		case 0:
			return completeScheduleNames(toComplete)
		case 1:
			names, directive := completeCalendarNames(toComplete)
			return append(names, planner.NoCalendar), directive
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		result, err := service.SetCalendar(args[0], args[1])
		if err != nil {
			ui.PrintError("Failed to set calendar: %v", err)
			return
		}
		ui.PrintSuccess("Schedule '%s' now uses calendar '%s'", args[0], args[1])
		printCPMResult(result)
	},
}

var scheduleSetStartCmd = &cobra.Command{
	Use:   "set-start <name> <YYYY-MM-DD>",
	Short: "Move the schedule start and re-date AUTO tasks",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeScheduleNames(toComplete)
	},
	Run: func(cmd *cobra.Command, args []string) {
		start, err := calendar.ParseDate(args[1])
		if err != nil {
			ui.PrintError("Invalid start date: %v", err)
			return
		}
		result, err := service.SetStart(args[0], start)
		if err != nil {
			ui.PrintError("Failed to move schedule start: %v", err)
			return
		}
		ui.PrintSuccess("Schedule '%s' now starts %s", args[0], ui.FormatDate(start))
		printCPMResult(result)
	},
}

func printCPMResult(result *engine.CPMResult) {
	if result == nil {
		return
	}
	ui.Dim.Printf("  Project: %s → %s (%s)\n",
		ui.FormatDate(result.ProjectStart), ui.FormatDate(result.ProjectEnd), ui.FormatDays(result.TotalDuration))
	if len(result.CriticalPath) > 0 {
		ui.Red.Printf("  Critical: %s\n", strings.Join(result.CriticalPath, " → "))
	}
}

func init() {
	scheduleCreateCmd.Flags().StringP("start", "s", "", "Start date YYYY-MM-DD")
	scheduleCreateCmd.Flags().StringP("description", "d", "", "Schedule description")
	scheduleCreateCmd.MarkFlagRequired("start")
	scheduleCreateCmd.Flags().StringP("calendar", "c", "", "Calendar name, or 'none' for every day (default from config)")
	scheduleCreateCmd.RegisterFlagCompletionFunc("calendar", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeCalendarNames(toComplete)
	})

	scheduleRemoveCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleRecalcCmd)
	scheduleCmd.AddCommand(scheduleSetCalendarCmd)
	scheduleCmd.AddCommand(scheduleSetStartCmd)
}
