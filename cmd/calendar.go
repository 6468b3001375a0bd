package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrbooshehri/qix-sched/internal/calendar"
	"github.com/mrbooshehri/qix-sched/internal/config"
	"github.com/mrbooshehri/qix-sched/internal/models"
	"github.com/mrbooshehri/qix-sched/internal/ui"
)

var calendarCmd = &cobra.Command{
	Use:     "calendar",
	Aliases: []string{"cal"},
	Short:   "Manage working-day calendars",
	Long:    "Define working weekdays and dated exceptions used to schedule tasks",
}

var calendarCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a calendar",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		daysFlag, _ := cmd.Flags().GetString("days")
		if daysFlag == "" {
			daysFlag = config.Get().WorkingDays
		}
		days, err := calendar.ParseWeekdays(daysFlag)
		if err != nil {
			ui.PrintError("Invalid working days: %v", err)
			return
		}

		cal, err := service.CreateCalendar(args[0], days)
		if err != nil {
			ui.PrintError("Failed to create calendar: %v", err)
			return
		}
		ui.PrintSuccess("Calendar '%s' created", cal.Name)
		ui.Dim.Printf("  Working days: %s\n", formatWeekdays(cal.WorkingDays))
	},
}

var calendarListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List calendars",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		names, err := service.ListCalendars()
		if err != nil {
			ui.PrintError("Failed to list calendars: %v", err)
			return
		}
		if len(names) == 0 {
			ui.PrintEmptyState("No calendars found", "Create one with: qsched calendar create <name> --days 1,2,3,4,5")
			return
		}

		sort.Strings(names)
		ui.PrintHeader("🗓  Calendars")

		tb := ui.NewTableBuilder("Name", "Working days", "Exceptions", "Used by").Align(2, ui.AlignRight)
		for _, name := range names {
			cal, err := service.GetCalendar(name)
			if err != nil {
				ui.PrintError("Failed to load calendar %s: %v", name, err)
				continue
			}
			users, _ := service.SchedulesUsing(name)
			tb.Row(cal.Name, formatWeekdays(cal.WorkingDays), strconv.Itoa(len(cal.Exceptions)), strings.Join(users, ", "))
		}
		tb.PrintSimple()
	},
}

var calendarShowCmd = &cobra.Command{
	Use:               "show <name>",
	Short:             "Show a calendar with its exceptions",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		cal, err := service.GetCalendar(args[0])
		if err != nil {
			ui.PrintError("Calendar not found: %v", err)
			return
		}

		ui.PrintHeader("🗓  " + cal.Name)
		users, _ := service.SchedulesUsing(cal.Name)
		ui.PrintKeyValue([][2]string{
			{"Working days", formatWeekdays(cal.WorkingDays)},
			{"Used by", orDash(strings.Join(users, ", "))},
			{"Created", ui.FormatDateTime(cal.CreatedAt)},
			{"Updated", ui.FormatDateTime(cal.UpdatedAt)},
		})

		if len(cal.Exceptions) == 0 {
			return
		}

		exceptions := append([]models.Exception(nil), cal.Exceptions...)
		sort.Slice(exceptions, func(i, j int) bool { return exceptions[i].Date.Before(exceptions[j].Date) })

		ui.PrintSubHeader("Exceptions")
		tb := ui.NewTableBuilder("Date", "Type", "Recurring", "Description")
		for _, ex := range exceptions {
			c := ui.Red
			if ex.Type == models.ExceptionWorking {
				c = ui.Green
			}
			recurring := ""
			if ex.Recurring {
				recurring = "yearly"
			}
			tb.ColoredRow(
				[]string{ui.FormatDate(ex.Date), string(ex.Type), recurring, ex.Description},
				[]*color.Color{nil, c, ui.Dim, nil},
			)
		}
		tb.PrintSimple()
	},
}

var calendarRemoveCmd = &cobra.Command{
	Use:               "remove <name>",
	Aliases:           []string{"rm"},
	Short:             "Remove a calendar no schedule uses",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirm(fmt.Sprintf("Type the calendar name to remove '%s': ", args[0]), args[0]) {
			ui.PrintInfo("Removal cancelled")
			return
		}
		if err := service.RemoveCalendar(args[0]); err != nil {
			ui.PrintError("Failed to remove calendar: %v", err)
			return
		}
		ui.PrintSuccess("Calendar '%s' removed", args[0])
	},
}

var calendarDaysCmd = &cobra.Command{
	Use:               "days <name> <list>",
	Short:             "Set the working weekdays, e.g. 1,2,3,4,5 or mon,tue",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		days, err := calendar.ParseWeekdays(args[1])
		if err != nil {
			ui.PrintError("Invalid working days: %v", err)
			return
		}
		refreshed, err := service.SetWorkingDays(args[0], days)
		if err != nil {
			ui.PrintError("Failed to update calendar: %v", err)
			printRefreshed(refreshed)
			return
		}
		ui.PrintSuccess("Calendar '%s' works %s", args[0], formatWeekdays(days))
		printRefreshed(refreshed)
	},
}

var calendarExceptCmd = &cobra.Command{
	Use:               "except <name> <YYYY-MM-DD>",
	Short:             "Mark a date as working or non-working",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		typeFlag, _ := cmd.Flags().GetString("type")
		recurring, _ := cmd.Flags().GetBool("recurring")
		description, _ := cmd.Flags().GetString("description")

		date, err := calendar.ParseDate(args[1])
		if err != nil {
			ui.PrintError("Invalid date: %v", err)
			return
		}

		ex := models.Exception{
			Date:        date,
			Type:        models.ExceptionType(strings.ToUpper(strings.ReplaceAll(typeFlag, "-", "_"))),
			Recurring:   recurring,
			Description: description,
		}
		refreshed, err := service.AddException(args[0], ex)
		if err != nil {
			ui.PrintError("Failed to add exception: %v", err)
			printRefreshed(refreshed)
			return
		}
		ui.PrintSuccess("%s marked %s in '%s'", ui.FormatDate(date), ex.Type, args[0])
		printRefreshed(refreshed)
	},
}

var calendarUnexceptCmd = &cobra.Command{
	Use:               "unexcept <name> <YYYY-MM-DD>",
	Short:             "Remove the exception on a date",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		date, err := calendar.ParseDate(args[1])
		if err != nil {
			ui.PrintError("Invalid date: %v", err)
			return
		}
		refreshed, err := service.RemoveException(args[0], date)
		if err != nil {
			ui.PrintError("Failed to remove exception: %v", err)
			printRefreshed(refreshed)
			return
		}
		ui.PrintSuccess("Exception on %s removed from '%s'", ui.FormatDate(date), args[0])
		printRefreshed(refreshed)
	},
}

var calendarCheckCmd = &cobra.Command{
	Use:               "check <name> <YYYY-MM-DD>",
	Short:             "Tell whether a date is a working day",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		date, err := calendar.ParseDate(args[1])
		if err != nil {
			ui.PrintError("Invalid date: %v", err)
			return
		}
		working, err := service.IsWorkingDay(args[0], date)
		if err != nil {
			ui.PrintError("Failed to check date: %v", err)
			return
		}
		if working {
			ui.Green.Printf("%s (%s) is a working day\n", ui.FormatDate(date), date.Weekday())
		} else {
			ui.Yellow.Printf("%s (%s) is not a working day\n", ui.FormatDate(date), date.Weekday())
		}
	},
}

var calendarShiftCmd = &cobra.Command{
	Use:               "shift <name> <YYYY-MM-DD> <n>",
	Short:             "Move a date by n working days (negative goes back)",
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: calendarArgCompletion,
	Run: func(cmd *cobra.Command, args []string) {
		date, err := calendar.ParseDate(args[1])
		if err != nil {
			ui.PrintError("Invalid date: %v", err)
			return
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			ui.PrintError("Invalid day count %q", args[2])
			return
		}
		shifted, err := service.ShiftDate(args[0], date, n)
		if err != nil {
			ui.PrintError("Failed to shift date: %v", err)
			return
		}
		fmt.Printf("%s %+d working days = ", ui.FormatDate(date), n)
		ui.BoldGreen.Printf("%s (%s)\n", ui.FormatDate(shifted), shifted.Weekday())
	},
}

func formatWeekdays(days []time.Weekday) string {
	sorted := append([]time.Weekday(nil), days...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	names := make([]string, len(sorted))
	for i, d := range sorted {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ", ")
}

func printRefreshed(names []string) {
	if len(names) > 0 {
		ui.Dim.Printf("  Re-dated schedule(s): %s\n", strings.Join(names, ", "))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	calendarCreateCmd.Flags().String("days", "", "Working weekdays, 0 = Sunday (default from config)")

	calendarRemoveCmd.Flags().BoolP("force", "f", false, "Skip confirmation")

	calendarExceptCmd.Flags().StringP("type", "t", string(models.ExceptionNonWorking), "Exception type (WORKING or NON_WORKING)")
	calendarExceptCmd.Flags().BoolP("recurring", "r", false, "Repeat on the same month and day every year")
	calendarExceptCmd.Flags().StringP("description", "d", "", "Description, e.g. the holiday name")
	calendarExceptCmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{string(models.ExceptionWorking), string(models.ExceptionNonWorking)}, cobra.ShellCompDirectiveNoFileComp
	})

	calendarCmd.AddCommand(calendarCreateCmd)
	calendarCmd.AddCommand(calendarListCmd)
	calendarCmd.AddCommand(calendarShowCmd)
	calendarCmd.AddCommand(calendarRemoveCmd)
	calendarCmd.AddCommand(calendarDaysCmd)
	calendarCmd.AddCommand(calendarExceptCmd)
	calendarCmd.AddCommand(calendarUnexceptCmd)
	calendarCmd.AddCommand(calendarCheckCmd)
	calendarCmd.AddCommand(calendarShiftCmd)
}
