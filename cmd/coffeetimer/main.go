package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coffee-timer/internal/alert"
	"coffee-timer/internal/bootstrap"
	"coffee-timer/internal/bot"
	"coffee-timer/internal/config"
	"coffee-timer/internal/countdown"
	"coffee-timer/internal/repository"
	"coffee-timer/internal/service"
	"coffee-timer/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL, repository.ParseLogLevel(cfg.DBLogLevel))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	timerStore, err := store.Open(ctx, repository.NewTimerRepository(db))
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	presets, err := bootstrap.DefaultPresets()
	if err != nil {
		log.Fatalf("presets: %v", err)
	}
	if _, err := bootstrap.NewLoader(timerStore, presets).Run(ctx); err != nil {
		// The seed stays pending and is retried by the next commit.
		log.Printf("[warn] bootstrap: %v", err)
	}

	api, err := bot.Connect(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	alerts := alert.NewScheduler(cfg.Location(), bot.NewNotifier(api))
	alerts.Start()
	defer alerts.Stop()

	timers := service.NewTimerService(timerStore)
	brews := service.NewBrewService(timerStore, alerts, countdown.SystemClock, countdown.Config{
		TickInterval: cfg.TickInterval,
		AlertMessage: cfg.AlertMessage,
	}, nil)
	defer brews.StopAll()

	telegramBot := bot.New(api, timers, brews, cfg.Location())

	log.Printf("[info] coffee timer bot started with %d timers", timerStore.Len())
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Open /newtimer conversations do not survive a restart.
	if err := timers.DiscardDrafts(flushCtx); err != nil {
		log.Printf("[warn] discard drafts: %v", err)
	}
	if err := timers.Flush(flushCtx); err != nil {
		log.Printf("[warn] flush on shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
}
