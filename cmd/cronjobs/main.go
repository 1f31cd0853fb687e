package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/shortstat/shortstat/internal/config"
	"github.com/shortstat/shortstat/internal/upload"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to load .env file: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	uploads, err := upload.NewStore(cfg.Upload.Dir)
	if err != nil {
		log.Fatalf("failed to open upload store: %v", err)
	}

	c := cron.New()

	// Hourly sweep of uploads past their retention window.
	if _, err := c.AddFunc("0 * * * *", func() {
		removed, err := uploads.PurgeOlderThan(cfg.Upload.TTL)
		if err != nil {
			log.Printf("upload purge failed: %v", err)
			return
		}
		log.Printf("upload purge removed %d files", removed)
	}); err != nil {
		log.Fatalf("failed to schedule upload purge: %v", err)
	}

	c.Start()
	defer c.Stop()

	<-ctx.Done()
}
