// seed inserts development sample data for local testing: per-endpoint rate
// limits and a dev session. Idempotent: rate configs upsert, the session is
// skipped if it already exists.
package main

import (
	"context"
	"log"
	"time"

	"trustgate/internal/config"
	"trustgate/internal/db"
	ratedomain "trustgate/internal/ratelimit/domain"
	raterepo "trustgate/internal/ratelimit/repository"
	sessiondomain "trustgate/internal/session/domain"
	sessionrepo "trustgate/internal/session/repository"
)

const (
	devUserID      = "dev-user-001"
	devSessionID   = "dev-session-001"
	devFingerprint = "dev-device-fp-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	limits := raterepo.NewPostgresRepository(pool)
	for _, c := range []*ratedomain.Config{
		{Endpoint: "token-issue", MaxRequests: 30, WindowSeconds: 60, BlockDurationSeconds: 120},
		{Endpoint: "login", MaxRequests: 5, WindowSeconds: 900, BlockDurationSeconds: 900},
		{Endpoint: "api", MaxRequests: 100, WindowSeconds: 3600, BlockDurationSeconds: 3600},
	} {
		if err := limits.Upsert(ctx, c); err != nil {
			log.Fatalf("seed rate config %s: %v", c.Endpoint, err)
		}
		log.Printf("seed: rate config %s = %d/%ds", c.Endpoint, c.MaxRequests, c.WindowSeconds)
	}

	sessions := sessionrepo.NewPostgresRepository(pool)
	existing, err := sessions.ListActiveByUser(ctx, devUserID, time.Now().UTC())
	if err != nil {
		log.Fatalf("seed session lookup: %v", err)
	}
	if len(existing) > 0 {
		log.Printf("seed: dev session already present, skipping")
		return
	}
	now := time.Now().UTC()
	err = sessions.Create(ctx, &sessiondomain.Session{
		ID:            devSessionID,
		UserID:        devUserID,
		Fingerprint:   devFingerprint,
		IPAddress:     "127.0.0.1",
		SecurityLevel: sessiondomain.LevelStandard,
		Active:        true,
		CreatedAt:     now,
		LastActivity:  now,
		ExpiresAt:     now.Add(12 * time.Hour),
	})
	if err != nil {
		log.Fatalf("seed session: %v", err)
	}
	log.Printf("seed: created dev session %s for %s", devSessionID, devUserID)
}
