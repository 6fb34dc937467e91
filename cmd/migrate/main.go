package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"roastbattle/backend/internal/config"
	"roastbattle/backend/internal/db"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	applied, err := db.RunMigrations(ctx, pool, db.Migrations())
	if err != nil {
		pool.Close()
		log.Fatalf("migration failed: %v", err)
	}
	if len(applied) == 0 {
		log.Println("schema is up to date")
		os.Exit(0)
	}
	for _, version := range applied {
		log.Printf("applied %s", version)
	}
}
