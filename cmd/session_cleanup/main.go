package main

import (
	"context"
	"log"
	"os"
	"time"

	"portal/internal/config"
	"portal/internal/database"
	"portal/internal/repository"
)

// Removes sessions idle past SESSION_IDLE_TIMEOUT and drops auth rows
// that hold neither a session nor any token material. Meant to run from
// cron.
func main() {
	cfg, err := config.LoadSessionRuntimeConfig()
	if err != nil {
		log.Fatal(err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	repo := repository.NewAuthStateRepository(db, cfg.RotationHistoryLimit)

	cutoff := time.Now().UTC().Add(-cfg.SessionIdleTimeout)

	cleared, err := repo.ClearIdleSessions(context.Background(), cutoff)
	if err != nil {
		log.Fatalf("clear idle sessions failed: %v", err)
	}

	deleted, err := repo.DeleteEmpty(context.Background())
	if err != nil {
		log.Fatalf("delete empty auth states failed: %v", err)
	}

	log.Printf("session cleanup completed: idle_sessions_cleared=%d empty_states_deleted=%d", cleared, deleted)
}
