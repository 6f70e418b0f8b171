package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"time-tracker/internal/calendar"
	"time-tracker/internal/config"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
	"time-tracker/internal/service"
)

func addReport(topLevel *cobra.Command, configPath *string) {
	var (
		telegramID int64
		month      string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a user's per-day totals for a month",
		Long: `Report lists the days of a month with tracked time and the totals per category.

Examples:
  timetracker report --user 123456789
  timetracker report --user 123456789 --month 2024-03`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			if telegramID == 0 {
				return fmt.Errorf("--user is required")
			}
			now := time.Now()
			year, m, err := parseMonthFlag(month, now)
			if err != nil {
				return err
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			db, err := repository.NewDB(cfg.DatabaseURL, newLogger(cfg.LogLevel))
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			user, err := repository.NewUserRepository(db).FindByTelegramID(ctx, telegramID)
			if err != nil {
				if repository.IsNotFound(err) {
					return fmt.Errorf("user %d is not registered", telegramID)
				}
				return err
			}

			categoryRepo := repository.NewCategoryRepository(db)
			recordRepo := repository.NewRecordRepository(db)
			prefs := service.NewPreferencesService(repository.NewPreferencesRepository(db))
			view, err := service.NewAnalyticsService(recordRepo, categoryRepo, prefs).Month(ctx, user.ID, year, m, now)
			if err != nil {
				return err
			}

			printMonth(color.Output, view, now)
			return nil
		},
	}

	cmd.Flags().Int64Var(&telegramID, "user", 0, "Telegram id of the user")
	cmd.Flags().StringVar(&month, "month", "", "month to report as YYYY-MM (default: current month)")
	topLevel.AddCommand(cmd)
}

func parseMonthFlag(raw string, now time.Time) (int, time.Month, error) {
	if strings.TrimSpace(raw) == "" {
		today := calendar.DateOf(now)
		return today.Year, today.Month, nil
	}
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("--month %q: expected YYYY-MM", raw)
	}
	return t.Year(), t.Month(), nil
}

func printMonth(w io.Writer, view *service.MonthView, now time.Time) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	_, _ = bold.Fprintln(w, view.Label)
	if len(view.Days) == 0 {
		_, _ = faint.Fprintln(w, "  nothing tracked")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Date"), bold.Sprint("Day"), bold.Sprint("Records"), bold.Sprint("Total"))
	var records []model.Record
	for _, d := range view.Days {
		tbl.AddRow(d.Date.Key(), calendar.DateShort(d.Date), len(d.Records), calendar.FormatDurationLong(d.Total))
		records = append(records, d.Records...)
	}
	tbl.RightAlign(2)
	_, _ = fmt.Fprintln(w, tbl)

	cats := uitable.New()
	cats.Separator = "  "
	cats.AddRow(bold.Sprint("Category"), bold.Sprint("Total"))
	totals, _ := service.TotalsByCategory(records, view.Categories, now)
	for _, t := range totals {
		cats.AddRow(t.Category.Title, calendar.FormatDurationLong(t.Total))
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, cats)
	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintf(w, "Total: %s\n", calendar.FormatDurationStopped(view.Total))
}
