package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/engine"
	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/planner"
	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  "Create, list, edit, link and reschedule tasks within a schedule",
}

var taskCreateCmd = &cobra.Command{
	Use:               "create <schedule> <name>",
	Short:             "Create a new task",
	Args:              cobra.MinimumNArgs(2),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		scheduleName := args[0]
		name := strings.Join(args[1:], " ")

		duration, _ := cmd.Flags().GetInt("duration")
		auto, _ := cmd.Flags().GetBool("auto")
		parent, _ := cmd.Flags().GetString("parent")
		startFlag, _ := cmd.Flags().GetString("start")

		in := planner.TaskInput{
			Name:     name,
			Duration: duration,
			Mode:     models.ModeManual,
			ParentID: parent,
		}
		if auto {
			in.Mode = models.ModeAuto
		}
		if startFlag != "" {
			start, err := calendar.ParseDate(startFlag)
			if err != nil {
				ui.PrintError("Invalid start date: %v", err)
				return
			}
			in.Start = start
		}

		task, err := service.AddTask(scheduleName, in)
		if err != nil {
			ui.PrintError("Failed to create task: %v", err)
			return
		}

		ui.PrintSuccess("Task created: %s", task.Name)
		ui.Dim.Printf("  ID:    %s\n", task.ID)
		ui.Dim.Printf("  WBS:   %s\n", task.WBSCode)
		ui.Dim.Printf("  Mode:  %s\n", task.Mode)
		ui.Dim.Printf("  Dates: %s → %s (%s)\n", ui.FormatDate(task.Start), ui.FormatDate(task.End), ui.FormatDays(task.Duration))
	},
}

var taskListCmd = &cobra.Command{
	Use:               "list <schedule>",
	Aliases:           []string{"ls"},
	Short:             "List tasks",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		criticalOnly, _ := cmd.Flags().GetBool("critical")
		tree, _ := cmd.Flags().GetBool("tree")

		sc, err := service.GetSchedule(args[0])
		if err != nil {
			ui.PrintError("Schedule not found: %v", err)
			return
		}

		if len(sc.Tasks) == 0 {
			ui.PrintEmptyState("No tasks in schedule", "Create one with: qsched task create "+sc.Name+" <name>")
			return
		}

		if tree {
			ui.PrintWBSReport(sc)
			return
		}

		tasks := sc.Tasks
		if criticalOnly {
			tasks = planner.CriticalPath(sc)
		}

		ui.PrintHeader(fmt.Sprintf("🗒️  Tasks: %s", sc.Name))
		for _, t := range tasks {
			ui.PrintTask(t, strings.Repeat("  ", t.Level))
		}
		fmt.Println()
		ui.Dim.Printf("%d task(s)\n", len(tasks))
	},
}

var taskShowCmd = &cobra.Command{
	Use:               "show <schedule> <task_id>",
	Short:             "Show task details",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := service.GetSchedule(args[0])
		if err != nil {
			ui.PrintError("Schedule not found: %v", err)
			return
		}
		task := sc.FindTask(args[1])
		if task == nil {
			ui.PrintError("Task not found: %s", args[1])
			return
		}
		ui.PrintTaskDetailed(task, sc)
	},
}

var taskFindCmd = &cobra.Command{
	Use:   "find <task_id>",
	Short: "Find the schedule that owns a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		scheduleName, task, err := service.FindTask(args[0])
		if err != nil {
			ui.PrintError("Task not found: %v", err)
			return
		}
		ui.PrintInfo("Task %s belongs to schedule '%s'", task.ID, scheduleName)
		ui.PrintTask(task, "  ")
	},
}

var taskEditCmd = &cobra.Command{
	Use:               "edit <schedule> <task_id>",
	Short:             "Edit task name, duration, start or mode",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		var patch engine.TaskPatch
		flags := cmd.Flags()

		if flags.Changed("name") {
			name, _ := flags.GetString("name")
			patch.Name = &name
		}
		if flags.Changed("duration") {
			duration, _ := flags.GetInt("duration")
			patch.Duration = &duration
		}
		if flags.Changed("start") {
			startFlag, _ := flags.GetString("start")
			start, err := calendar.ParseDate(startFlag)
			if err != nil {
				ui.PrintError("Invalid start date: %v", err)
				return
			}
			patch.Start = &start
		}
		if flags.Changed("mode") {
			modeFlag, _ := flags.GetString("mode")
			mode, err := models.ParseMode(modeFlag)
			if err != nil {
				ui.PrintError("%v", err)
				return
			}
			patch.Mode = &mode
		}

		if patch == (engine.TaskPatch{}) {
			ui.PrintWarning("Nothing to change; use --name, --duration, --start or --mode")
			return
		}

		task, err := service.EditTask(args[0], args[1], patch)
		if err != nil {
			ui.PrintError("Failed to edit task: %v", err)
			return
		}
		ui.PrintSuccess("Task %s updated", task.ID)
		ui.PrintTask(task, "  ")
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:               "remove <schedule> <task_id>",
	Aliases:           []string{"rm"},
	Short:             "Remove a task and its dependencies",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		task, err := service.GetTask(args[0], args[1])
		if err != nil {
			ui.PrintError("Task not found: %v", err)
			return
		}
		if !force {
			fmt.Printf("⚠️  This will remove task '%s' and its dependencies.\n", task.Name)
			if task.HasChildren() {
				fmt.Printf("   Its %d child task(s) move up one level.\n", len(task.Children))
			}
			if !confirm("Type 'yes' to confirm: ", "yes") {
				ui.PrintInfo("Removal cancelled")
				return
			}
		}

		removed, err := service.RemoveTask(args[0], args[1])
		if err != nil {
			ui.PrintError("Failed to remove task: %v", err)
			return
		}
		ui.PrintSuccess("Task removed: %s", removed.Name)
	},
}

var taskLinkCmd = &cobra.Command{
	Use:               "link <schedule> <child_id> <parent_id>",
	Short:             "Make a task the WBS child of another",
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		if err := service.LinkTask(args[0], args[1], args[2]); err != nil {
			ui.PrintError("Failed to link tasks: %v", err)
			return
		}
		ui.PrintSuccess("Task %s is now a child of %s", args[1], args[2])
	},
}

var taskUnlinkCmd = &cobra.Command{
	Use:               "unlink <schedule> <child_id>",
	Short:             "Move a task to the top of the hierarchy",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		if err := service.UnlinkTask(args[0], args[1]); err != nil {
			ui.PrintError("Failed to unlink task: %v", err)
			return
		}
		ui.PrintSuccess("Task %s unlinked from its parent", args[1])
	},
}

var taskRescheduleCmd = &cobra.Command{
	Use:               "reschedule <schedule> <task_id>",
	Short:             "Re-date a task and everything downstream",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		changed, err := service.RescheduleTask(args[0], args[1])
		if err != nil {
			ui.PrintError("Failed to reschedule: %v", err)
			return
		}
		if len(changed) == 0 {
			ui.PrintInfo("No dates changed")
			return
		}
		ui.PrintSuccess("%d task(s) re-dated", len(changed))
		for _, t := range changed {
			ui.PrintTask(t, "  ")
		}
	},
}

func init() {
	taskCreateCmd.Flags().IntP("duration", "d", 1, "Duration in working days (0 = milestone)")
	taskCreateCmd.Flags().Bool("auto", false, "Derive dates from predecessors")
	taskCreateCmd.Flags().StringP("parent", "p", "", "Parent task ID")
	taskCreateCmd.Flags().StringP("start", "s", "", "Start date YYYY-MM-DD (default schedule start)")

	taskListCmd.Flags().Bool("critical", false, "Show only critical tasks")
	taskListCmd.Flags().Bool("tree", false, "Show the WBS tree")

	taskEditCmd.Flags().String("name", "", "New name")
	taskEditCmd.Flags().IntP("duration", "d", 0, "New duration in working days")
	taskEditCmd.Flags().StringP("start", "s", "", "New start date YYYY-MM-DD")
	taskEditCmd.Flags().StringP("mode", "m", "", "Scheduling mode (MANUAL or AUTO)")
	taskEditCmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{string(models.ModeManual), string(models.ModeAuto)}, cobra.ShellCompDirectiveNoFileComp
	})

	taskRemoveCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskFindCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskRemoveCmd)
	taskCmd.AddCommand(taskLinkCmd)
	taskCmd.AddCommand(taskUnlinkCmd)
	taskCmd.AddCommand(taskRescheduleCmd)
}
