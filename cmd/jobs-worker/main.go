// jobs-worker runs the two background jobs: daily materialization of
// recurring expenses and the weekly budget alert digest.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
	"bilancio/internal/mail"
	"bilancio/internal/scheduler"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentJobs)
	applog.SetDefault(logger)

	logger.Info("Starting jobs-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// AMQP is optional: without it expenses stay local and the sheet drifts
	// until a manual resync.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	} else {
		logger.Info("AMQP disabled - materialized expenses will not sync to the spreadsheet")
	}

	expenseService := services.NewExpenseService(sqliteRepo, amqpClient)
	materializer := services.NewMaterializeProcessor(sqliteRepo, expenseService)

	var mailer mail.Mailer
	if cfg.MailConfigured() {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logger.Warn("SMTP not configured - budget alert digests will be skipped")
	}
	alerts := services.NewAlertProcessor(sqliteRepo, mailer, cfg.BudgetThresholds)

	sched := scheduler.New(cfg.JobTimeout)
	sched.Add(scheduler.Job{
		Name:    "materialize-recurring",
		Trigger: scheduler.Trigger{Hour: cfg.MaterializeHour},
		Run: func(ctx context.Context, now time.Time) error {
			count, err := materializer.ProcessDue(ctx, now)
			if err != nil {
				return err
			}
			logger.Info("Materialization run complete", "expenses_created", count)
			return nil
		},
	})
	alertWeekday := cfg.AlertWeekday
	sched.Add(scheduler.Job{
		Name:    "weekly-budget-alerts",
		Trigger: scheduler.Trigger{Weekday: &alertWeekday, Hour: cfg.AlertHour},
		Run: func(ctx context.Context, now time.Time) error {
			sent, err := alerts.ProcessAlerts(ctx, now)
			if err != nil {
				return err
			}
			logger.Info("Alert run complete", "digests_sent", sent)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catch up on startup: anything due today that a downtime window missed.
	if count, err := materializer.ProcessDue(ctx, time.Now()); err != nil {
		logger.Error("Initial materialization failed", "error", err)
	} else {
		logger.Info("Initial materialization complete", "expenses_created", count)
	}

	go sched.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	logger.Info("jobs-worker stopped")
}
