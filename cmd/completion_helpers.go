package cmd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/backup"
	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/logging"
	"github.com/mrbooshehri/qix-sched/internal/storage"
)

var (
	completionInitOnce sync.Once
	completionInitErr  error
)

func ensureCompletionReady() error {
	completionInitOnce.Do(func() {
		if err := config.Init(); err != nil {
			completionInitErr = err
			return
		}
		cfg := config.Get()
		if err := logging.Init(cfg.LogFile); err != nil {
			completionInitErr = err
			return
		}
		logging.SetLevel(cfg.LogLevel)
		logging.Debugf("Completion config initialized (schedules: %s)", cfg.SchedulesDir)
		completionInitErr = storage.Init()
	})
	return completionInitErr
}

func filterPrefix(values []string, toComplete string) []string {
	matches := make([]string, 0, len(values))
	for _, v := range values {
		if toComplete == "" || strings.HasPrefix(v, toComplete) {
			matches = append(matches, escapeCompletion(v))
		}
	}
	return matches
}

func completeScheduleNames(toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureCompletionReady(); err != nil {
		logging.Errorf("Schedule completion init failed: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}

	names, err := storage.Get().ListSchedules()
	if err != nil {
		logging.Errorf("Failed to list schedules for completion: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeCalendarNames(toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureCompletionReady(); err != nil {
		logging.Errorf("Calendar completion init failed: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}

	names, err := storage.Get().ListCalendars()
	if err != nil {
		logging.Errorf("Failed to list calendars for completion: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeTaskIDs matches on ID prefix, or on a name substring
func completeTaskIDs(scheduleName, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureCompletionReady(); err != nil {
		logging.Errorf("Task completion init failed: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}

	sc, err := storage.Get().LoadSchedule(scheduleName)
	if err != nil {
		logging.Warnf("Schedule '%s' not found during completion: %v", scheduleName, err)
		return nil, cobra.ShellCompDirectiveError
	}

	matches := make([]string, 0, len(sc.Tasks))
	filter := strings.ToLower(toComplete)

	for _, task := range sc.Tasks {
		idMatch := toComplete == "" || strings.HasPrefix(task.ID, toComplete)
		nameMatch := filter != "" && strings.Contains(strings.ToLower(task.Name), filter)

		if idMatch || nameMatch {
			matches = append(matches, fmt.Sprintf("%s\t%s %s", task.ID, task.WBSCode, task.Name))
		}
	}

	return matches, cobra.ShellCompDirectiveNoFileComp
}

func completeBackupNames(toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureCompletionReady(); err != nil {
		logging.Errorf("Backup completion init failed: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}

	backups, err := backup.List(config.Get().BackupDir)
	if err != nil {
		logging.Errorf("Failed to list backups for completion: %v", err)
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, len(backups))
	for i, b := range backups {
		names[i] = b.Name
	}
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func scheduleArgCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeScheduleNames(toComplete)
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// taskArgCompletion completes a schedule, then task IDs from it
func taskArgCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeScheduleNames(toComplete)
	}
	return completeTaskIDs(args[0], toComplete)
}

func calendarArgCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return completeCalendarNames(toComplete)
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func escapeCompletion(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, " ", `\ `)
	return value
}
