package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"time-tracker/internal/auth"
	"time-tracker/internal/bot"
	"time-tracker/internal/config"
	"time-tracker/internal/events"
	"time-tracker/internal/realtime"
	"time-tracker/internal/repository"
	"time-tracker/internal/service"
	"time-tracker/internal/timer"
)

func addServe(topLevel *cobra.Command, configPath *string) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the scheduler and the optional realtime endpoint",
		Long: `Serve polls Telegram for updates until interrupted.

Configuration comes from the environment (TELEGRAM_TOKEN, DATABASE_URL,
REPORT_TIME, LIVE_TICK, LIVE_REFRESH, REALTIME_ADDR, LOG_LEVEL) or --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := cfg.RequireToken(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg.LogLevel))
		},
	}
	topLevel.AddCommand(cmd)
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	bus := events.NewBus()
	if err := repository.WatchChanges(db, bus); err != nil {
		return fmt.Errorf("change feed: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)

	prefs := service.NewPreferencesService(prefsRepo)
	provider := auth.NewProvider(userRepo, service.NewSetupService(categoryRepo, prefsRepo))

	scheduler := timer.NewCron(log)
	projector := timer.NewProjector(scheduler, cfg.LiveTick, cfg.LiveRefresh)

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		Auth:        provider,
		Users:       userRepo,
		Records:     service.NewRecordService(recordRepo, categoryRepo),
		Categories:  service.NewCategoryService(categoryRepo),
		Preferences: prefs,
		Tracker:     service.NewTrackerService(recordRepo, categoryRepo, prefs),
		Analytics:   service.NewAnalyticsService(recordRepo, categoryRepo, prefs),
		Reports:     service.NewReportService(recordRepo, categoryRepo),
		Bus:         bus,
		Projector:   projector,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	if cfg.ReportTime != "" {
		if _, err := scheduler.Daily(cfg.ReportTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("daily reports")
			}
		}); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
		log.WithField("at", cfg.ReportTime).Info("daily summaries scheduled")
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.RealtimeAddr != "" {
		hub := realtime.NewHub(provider, bus, log)
		go func() {
			if err := realtime.Serve(ctx, cfg.RealtimeAddr, hub); err != nil {
				log.WithError(err).Error("realtime endpoint")
			}
		}()
		log.WithField("addr", cfg.RealtimeAddr).Info("realtime endpoint listening")
	}

	log.Info("time tracker bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
