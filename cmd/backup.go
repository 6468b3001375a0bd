package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/backup"
	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/logging"
	"github.com/mrbooshehri/qix-sched/internal/planner"
	"github.com/mrbooshehri/qix-sched/internal/storage"
	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup and restore",
	Long:  "Create, list, and restore backups of schedules, calendars and the task index",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a backup",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()

		ui.PrintInfo("Creating backup...")

		now := time.Now()
		backupName := backup.FileName("", now)
		backupPath := filepath.Join(cfg.BackupDir, backupName)

		if err := archiveDataDir(cfg, backupPath); err != nil {
			ui.PrintError("Failed to create backup: %v", err)
			return
		}

		info, err := os.Stat(backupPath)
		if err != nil {
			ui.PrintError("Failed to get backup info: %v", err)
			return
		}

		ui.PrintSuccess("Backup created")
		ui.Cyan.Printf("  File: %s\n", backupName)
		ui.Blue.Printf("  Location: %s\n", cfg.BackupDir)
		ui.Yellow.Printf("  Size: %s\n", formatSize(info.Size()))
		ui.Dim.Printf("  Time: %s\n", now.Format("2006-01-02 15:04:05"))

		if _, err := backup.Cleanup(cfg.BackupDir, cfg.BackupRetentionDays, now); err != nil {
			ui.PrintWarning("Failed to cleanup old backups: %v", err)
		}
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()

		backups, err := backup.List(cfg.BackupDir)
		if err != nil {
			ui.PrintError("Failed to list backups: %v", err)
			return
		}
		if len(backups) == 0 {
			ui.PrintEmptyState("No backups found", "Create one with: qsched backup create")
			return
		}

		ui.PrintHeader("📦 Available Backups")

		table := ui.NewTableBuilder("Backup", "Date", "Size", "Age").
			Align(2, ui.AlignRight).
			Align(3, ui.AlignRight)
		for _, b := range backups {
			table.Row(
				b.Name,
				b.ModTime.Format("2006-01-02 15:04"),
				formatSize(b.Size),
				backup.FormatAge(time.Since(b.ModTime)),
			)
		}
		table.PrintSimple()

		fmt.Println()
		ui.Dim.Printf("Backup location: %s\n", cfg.BackupDir)
		ui.Dim.Printf("Retention period: %d days\n", cfg.BackupRetentionDays)
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup_file>",
	Short: "Restore from a backup",
	Long:  "Restore data from a backup file (creates a safety backup first)",
	Args:  cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeBackupNames(toComplete)
	},
	Run: func(cmd *cobra.Command, args []string) {
		backupFile := args[0]
		cfg := config.Get()

		backupPath := backupFile
		if !filepath.IsAbs(backupFile) {
			backupPath = filepath.Join(cfg.BackupDir, backupFile)
		}
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			ui.PrintError("Backup file not found: %s", backupFile)
			return
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Println("⚠️  This will restore data from the backup and overwrite current data.")
			fmt.Printf("Backup: %s\n", filepath.Base(backupPath))
			fmt.Println()
			if !confirm("Type 'restore' to confirm: ", "restore") {
				ui.PrintInfo("Restore cancelled")
				return
			}
		}

		ui.PrintInfo("Creating safety backup of current data...")

		safetyName := backup.FileName("pre_restore", time.Now())
		if err := archiveDataDir(cfg, filepath.Join(cfg.BackupDir, safetyName)); err != nil {
			ui.PrintError("Failed to create safety backup: %v", err)
			return
		}
		ui.PrintSuccess("Safety backup created: %s", safetyName)
		fmt.Println()

		ui.PrintInfo("Restoring from backup...")

		// The SQLite file is replaced underneath the open handle otherwise
		if err := storage.Get().Close(); err != nil {
			logging.Warnf("Failed to close storage before restore: %v", err)
		}
		if err := backup.Extract(backupPath, filepath.Dir(cfg.Dir)); err != nil {
			ui.PrintError("Failed to restore backup: %v", err)
			ui.PrintWarning("Restore may be partial. Safety backup: %s", safetyName)
			return
		}

		if err := storage.Init(); err != nil {
			ui.PrintError("Failed to reopen storage: %v", err)
			return
		}
		store := storage.Get()
		if err := store.RebuildIndex(); err != nil {
			ui.PrintWarning("Failed to rebuild index: %v", err)
		}
		if svc, err := planner.FromConfig(store, cfg); err == nil {
			service = svc
		}

		ui.PrintSuccess("Backup restored successfully")
		ui.Green.Printf("  Restored from: %s\n", filepath.Base(backupPath))
		ui.Blue.Printf("  Safety backup: %s\n", safetyName)
		fmt.Println()
		ui.Dim.Println("💡 Tip: Run 'qsched doctor' to verify data integrity")
	},
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old backups",
	Long:  "Delete backups older than the retention period",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()

		ui.PrintInfo("Cleaning up old backups (retention: %d days)...", cfg.BackupRetentionDays)

		count, err := backup.Cleanup(cfg.BackupDir, cfg.BackupRetentionDays, time.Now())
		if err != nil {
			ui.PrintError("Failed to cleanup backups: %v", err)
			return
		}

		if count == 0 {
			ui.PrintInfo("No old backups to remove")
		} else {
			ui.PrintSuccess("Removed %d old backup(s)", count)
		}
	},
}

var backupExportCmd = &cobra.Command{
	Use:   "export <output_path>",
	Short: "Export backup to a specific location",
	Long:  "Create a backup and save it to a custom location",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		outputPath := args[0]
		cfg := config.Get()

		ui.PrintInfo("Exporting backup...")

		if !strings.HasSuffix(outputPath, ".tar.gz") {
			outputPath += ".tar.gz"
		}

		if err := archiveDataDir(cfg, outputPath); err != nil {
			ui.PrintError("Failed to export backup: %v", err)
			return
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			ui.PrintError("Failed to get backup info: %v", err)
			return
		}

		ui.PrintSuccess("Backup exported")
		ui.Cyan.Printf("  Location: %s\n", outputPath)
		ui.Yellow.Printf("  Size: %s\n", formatSize(info.Size()))
	},
}

// archiveDataDir writes the data directory, minus the backups directory, to target
func archiveDataDir(cfg *config.Config, target string) error {
	logging.Infof("Archiving %s to %s", cfg.Dir, target)
	return backup.Create(cfg.Dir, target, cfg.BackupDir)
}

func formatSize(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
}

func init() {
	backupRestoreCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupCleanupCmd)
	backupCmd.AddCommand(backupExportCmd)
}
