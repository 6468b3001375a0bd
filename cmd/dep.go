package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Aliases: []string{"dependency"},
	Short:   "Manage task dependencies",
	Long:    "Add and remove FS, SS, FF and SF dependencies with lags",
}

var depAddCmd = &cobra.Command{
	Use:   "add <schedule> <pred_id> <succ_id>",
	Short: "Add a dependency",
	Long: `Add a dependency from a predecessor to a successor.

Types: FS (finish-to-start), SS (start-to-start), FF (finish-to-finish),
SF (start-to-finish). Lag is in working days; a negative lag is a lead.`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		depType, _ := cmd.Flags().GetString("type")
		lag, _ := cmd.Flags().GetInt("lag")

		dep, err := service.AddDependency(args[0], args[1], args[2], depType, lag)
		if err != nil {
			ui.PrintError("Failed to add dependency: %v", err)
			return
		}
		ui.PrintSuccess("Dependency added: %s → %s (%s)", dep.PredecessorID, dep.SuccessorID, ui.FormatDependency(dep))
	},
}

var depRemoveCmd = &cobra.Command{
	Use:               "remove <schedule> <pred_id> <succ_id>",
	Aliases:           []string{"rm"},
	Short:             "Remove a dependency",
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: taskArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		dep, err := service.RemoveDependency(args[0], args[1], args[2])
		if err != nil {
			ui.PrintError("Failed to remove dependency: %v", err)
			return
		}
		ui.PrintSuccess("Dependency removed: %s → %s (%s)", dep.PredecessorID, dep.SuccessorID, ui.FormatDependency(dep))
	},
}

var depListCmd = &cobra.Command{
	Use:               "list <schedule>",
	Aliases:           []string{"ls"},
	Short:             "List dependencies",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: scheduleArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		sc, err := service.GetSchedule(args[0])
		if err != nil {
			ui.PrintError("Schedule not found: %v", err)
			return
		}
		if len(sc.Dependencies) == 0 {
			ui.PrintEmptyState("No dependencies", "Add one with: qsched dep add "+sc.Name+" <pred> <succ> --type FS")
			return
		}
		ui.PrintHeader("🔗 Dependencies: " + sc.Name)
		ui.PrintDependencyTable(sc)
	},
}

func init() {
	depAddCmd.Flags().StringP("type", "t", "FS", "Dependency type (FS, SS, FF, SF)")
	depAddCmd.Flags().IntP("lag", "l", 0, "Lag in working days (negative = lead)")
	depAddCmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"FS", "SS", "FF", "SF"}, cobra.ShellCompDirectiveNoFileComp
	})

	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depListCmd)
}
