package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/deltasquad/taskbot/internal/config"
	"github.com/deltasquad/taskbot/internal/engine"
	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/httpapi"
	"github.com/deltasquad/taskbot/internal/logging"
	"github.com/deltasquad/taskbot/internal/observability"
	"github.com/deltasquad/taskbot/internal/reminders"
	"github.com/deltasquad/taskbot/internal/tasks"
	"github.com/deltasquad/taskbot/internal/telegram"
)

func main() {
	// Optional .env for local runs; real deployments set env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is required")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	bus := events.NewBus()
	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	taskStore, err := tasks.NewStore(ctx, pool)
	if err != nil {
		log.Fatalf("task store init failed: %v", err)
	}
	defer taskStore.CloseStore()

	var reminderStore reminders.Store
	if pool != nil {
		reminderStore = reminders.NewPostgresStore(pool)
	} else {
		memTasks := taskStore.(*tasks.MemoryStore)
		memReminders := reminders.NewMemoryStore(memTasks)
		memTasks.OnClose(memReminders.CancelForTask)
		reminderStore = memReminders
	}
	defer reminderStore.CloseStore()

	sessions := engine.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetEvictHook(func(_ *engine.Session) {
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})
	eng := engine.New(taskStore, reminderStore, sessions, cfg.Location(), bus, metrics, log)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram init failed: %v", err)
	}
	bot := telegram.New(api, eng, taskStore, reminderStore, bus, metrics, log, telegram.Config{
		PageLineBudget: cfg.ListPageLineBudget,
	})

	scheduler := reminders.NewScheduler(reminderStore, bot, cfg.ReminderSweepInterval, metrics, log)

	server := httpapi.New(cfg, taskStore, bus, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: server.Router(),
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)
	go scheduler.Run(runCtx)
	go bot.Run(runCtx)

	go func() {
		log.Infof("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
