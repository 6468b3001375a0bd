package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/logging"
	"github.com/mrbooshehri/qix-sched/internal/planner"
	"github.com/mrbooshehri/qix-sched/internal/storage"
	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var (
	// Global flags
	noColor      bool
	verbose      bool
	logLevelFlag string

	service *planner.Service
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qsched",
	Short: "qsched - calendar-aware project scheduling",
	Long: `qsched plans projects on working-day calendars:
  • Break work into tasks, summaries and milestones
  • Link tasks with FS, SS, FF and SF dependencies and lags
  • Auto-schedule successors when predecessors move
  • Compute the critical path, early/late dates and float
  • Define calendars with working weekdays and holidays`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Init(); err != nil {
			ui.PrintError("Failed to initialize configuration: %v", err)
			os.Exit(1)
		}

		// Logging comes up before other subsystems
		cfg := config.Get()
		if err := logging.Init(cfg.LogFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		}

		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevelFlag
		} else if verbose {
			cfg.LogLevel = "debug"
		}
		logging.SetLevel(cfg.LogLevel)
		logging.Infof("Starting command: %s %v", cmd.CommandPath(), args)

		if noColor {
			cfg.ColorOutput = false
		}
		ui.Init()

		if err := storage.Init(); err != nil {
			ui.PrintError("Failed to initialize storage: %v", err)
			os.Exit(1)
		}

		svc, err := planner.FromConfig(storage.Get(), cfg)
		if err != nil {
			ui.PrintError("Invalid working_days in %s: %v", cfg.ConfigFile, err)
			os.Exit(1)
		}
		service = svc
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := storage.Get().Close(); err != nil {
			logging.Warnf("Failed to close storage: %v", err)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()
		ui.PrintHeader("qsched - calendar-aware project scheduling")
		fmt.Println("Version:    1.0.0")
		fmt.Println("Build:      " + runtime.Version())
		fmt.Println("Storage:    " + cfg.StorageDriver)
		fmt.Println("Data dir:   " + cfg.Dir)
		fmt.Println("License:    MIT")
	},
}

// completionCmd writes shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `To load completions:

Bash:
  source <(qsched completion bash)
  # To load completions for each session, execute once:
  # Linux:
  qsched completion bash > /etc/bash_completion.d/qsched
  # macOS:
  qsched completion bash > /usr/local/etc/bash_completion.d/qsched

Zsh:
  qsched completion zsh > "${fpath[1]}/_qsched"
  autoload -U compinit && compinit

Fish:
  qsched completion fish > ~/.config/fish/completions/qsched.fish
`,
	ValidArgs: []string{"bash", "zsh", "fish"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		}
		return nil
	},
}

// doctorCmd checks system health
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check data integrity and system health",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func runDoctor() {
	ui.PrintHeader("qsched doctor - System Health Check")

	store := storage.Get()
	cfg := config.Get()

	issues := 0
	warnings := 0

	// 1. Directories
	ui.PrintSubHeader("📁 Checking directories...")

	for _, dir := range []string{cfg.Dir, cfg.SchedulesDir, cfg.CalendarsDir, cfg.BackupDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			ui.PrintError("Directory missing: %s", dir)
			issues++
		} else {
			ui.PrintSuccess("Directory exists: %s", dir)
		}
	}
	fmt.Println()

	// 2. Permissions
	ui.PrintSubHeader("🔒 Checking permissions...")

	if info, err := os.Stat(cfg.Dir); err == nil {
		perms := info.Mode().Perm()
		if perms != 0700 {
			ui.PrintWarning("Data directory permissions: %o (recommended: 700)", perms)
			warnings++
		} else {
			ui.PrintSuccess("Data directory permissions secure (700)")
		}
	}
	fmt.Println()

	// 3. Calendars
	ui.PrintSubHeader("🗓  Validating calendars...")

	calNames, err := store.ListCalendars()
	if err != nil {
		ui.PrintError("Failed to list calendars: %v", err)
		issues++
	}
	known := make(map[string]bool, len(calNames))
	for _, name := range calNames {
		cal, err := store.LoadCalendar(name)
		switch {
		case err != nil:
			ui.PrintError("Corrupted calendar: %s (%v)", name, err)
			issues++
		case len(cal.WorkingDays) == 0:
			ui.PrintError("Calendar %s has no working days", name)
			issues++
		default:
			known[name] = true
			ui.PrintSuccess("Valid: %s", name)
		}
	}
	fmt.Println()

	// 4. Schedules
	ui.PrintSubHeader("📄 Validating schedules...")

	names, err := store.ListSchedules()
	if err != nil {
		ui.PrintError("Failed to list schedules: %v", err)
		issues++
	} else {
		ui.PrintInfo("Found %d schedule(s)", len(names))

		for _, name := range names {
			sc, err := store.LoadSchedule(name)
			if err != nil {
				ui.PrintError("Corrupted schedule: %s (%v)", name, err)
				issues++
				continue
			}
			if sc.Calendar != "" && !known[sc.Calendar] {
				ui.PrintWarning("Schedule %s uses missing calendar %s", name, sc.Calendar)
				warnings++
				continue
			}
			if !sc.IsCalculated() && len(sc.Tasks) > 0 {
				ui.PrintWarning("Schedule %s has not been calculated", name)
				warnings++
				continue
			}
			ui.PrintSuccess("Valid: %s", name)
		}
	}
	fmt.Println()

	// 5. Index
	ui.PrintSubHeader("📇 Checking task index...")

	if err := store.EnsureIndexFresh(); err != nil {
		ui.PrintError("Index error: %v", err)
		issues++
	} else {
		ui.PrintSuccess("Index is up to date")
	}

	indexStats := store.GetIndexStats()
	ui.PrintInfo("Index contains %v task(s) across %v schedule(s)", indexStats["total_tasks"], indexStats["schedules"])

	if problems, err := store.ValidateIndex(); err != nil {
		ui.PrintError("Index validation failed: %v", err)
		issues++
	} else if len(problems) > 0 {
		ui.PrintWarning("Index inconsistencies found:")
		for _, p := range problems {
			ui.Dim.Println("  • " + p)
		}
		warnings += len(problems)
	} else {
		ui.PrintSuccess("Index is consistent")
	}
	fmt.Println()

	// 6. Orphaned references
	ui.PrintSubHeader("🔗 Checking task relationships...")

	orphanCount := 0
	for _, name := range names {
		orphaned, err := store.FindOrphanedReferences(name)
		if err != nil {
			continue
		}

		for refType, refs := range orphaned {
			if len(refs) > 0 {
				ui.PrintWarning("Orphaned %s in %s:", refType, name)
				for _, ref := range refs {
					ui.Dim.Println("  • " + ref)
				}
				orphanCount += len(refs)
			}
		}
	}

	if orphanCount == 0 {
		ui.PrintSuccess("No orphaned references found")
	} else {
		warnings += orphanCount
	}
	fmt.Println()

	// 7. Cache
	ui.PrintSubHeader("💾 Cache statistics...")

	cacheStats := store.GetCacheStats()
	ui.PrintInfo("Cached schedules: %v", cacheStats["cached_schedules"])
	ui.PrintInfo("Cached calendars: %v", cacheStats["cached_calendars"])
	ui.PrintInfo("Index entries:    %v", cacheStats["index_entries"])
	fmt.Println()

	ui.PrintSeparator()

	if issues == 0 && warnings == 0 {
		ui.PrintSuccess("All checks passed! Your qsched data is healthy. ✨")
	} else if issues == 0 {
		ui.PrintWarning("%d warning(s) found (non-critical)", warnings)
		fmt.Println()
		ui.Yellow.Println("Recommendations:")
		ui.Dim.Println("  • Run 'qsched backup create' to create a backup")
		ui.Dim.Println("  • Run 'qsched schedule recalc <name>' on uncalculated schedules")
		if orphanCount > 0 {
			ui.Dim.Println("  • Remove orphaned references manually or recreate relationships")
		}
	} else {
		ui.PrintError("%d issue(s) and %d warning(s) found", issues, warnings)
		fmt.Println()
		ui.Yellow.Println("Recommendations:")
		ui.Dim.Println("  • Restore from backup if data is corrupted")
		ui.Dim.Println("  • Run 'qsched backup create' to create a safety backup")
		ui.Dim.Println("  • Re-run doctor after fixing issues")
	}
}

// confirm reads one word from stdin and compares it with want
func confirm(prompt, want string) bool {
	fmt.Print(prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == want
}
