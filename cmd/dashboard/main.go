package main

import (
	"context"
	"os/signal"
	"syscall"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/infra/config"
	idb "dashboard_report_bot/internal/infra/database"
	"dashboard_report_bot/internal/infra/excel"
	"dashboard_report_bot/internal/infra/logger"
	"dashboard_report_bot/internal/infra/scheduler"
	"dashboard_report_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().WithError(err).Fatal("Could not load application configuration")
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Get().WithError(err).Fatal("Telegram is not configured")
	}

	logger.Init(cfg)
	mainLogger := logger.Get().WithField("component", "main")
	mainLogger.WithFields(logrus.Fields{
		"environment":     cfg.Environment,
		"database_driver": cfg.DatabaseDriver,
		"admin_id":        cfg.AdminTelegramID,
		"week_anchor":     cfg.WeekAnchor.String(),
	}).Info("Dashboard report bot starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.Migrate(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply database schema")
	}
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	userRepo := idb.NewPostgresUserRepository(db)
	formRepo := idb.NewPostgresFormRepository(db)
	fileRepo := idb.NewPostgresDataFileRepository(db)

	// Initialize Services
	baseLogger := logrus.NewEntry(logger.Get())
	adminService := app.NewAdminService(userRepo, formRepo, cfg.SystemAccounts, cfg.AdminTelegramID)
	dataFileService := app.NewDataFileService(formRepo, fileRepo, excel.NewOpener(), app.DataFileOptions{
		UploadRoot:            cfg.UploadRoot,
		Anchor:                cfg.WeekAnchor,
		CopyTemplateOnConfirm: cfg.CopyTemplateOnConfirm,
	}, baseLogger)

	// Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg.TelegramToken, baseLogger.WithField("component", "telebot"))
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	reminderService := app.NewReminderServiceImpl(formRepo, fileRepo, userRepo, telegram.NewTelebotAdapter(bot), cfg.WeekAnchor, baseLogger)

	// Initialize Scheduler
	dashScheduler := scheduler.NewDashboardScheduler(
		dataFileService,
		reminderService,
		baseLogger,
		cfg.AutoConfirmEnabled,
		cfg.CronSpecAutoConfirm,
		cfg.CronSpecReminder,
	)
	if err := dashScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	// Register Handlers
	telegram.RegisterBotCommands(ctx, bot, adminService, baseLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, baseLogger)
	telegram.RegisterDataHandlers(bot, telegram.NewDataHandlers(ctx, adminService, dataFileService, baseLogger))
	mainLogger.Info("Command handlers registered.")

	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and Scheduler are running.")

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	dashScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
