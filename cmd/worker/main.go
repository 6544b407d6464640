package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/queue"
	"rollcall/internal/session"
	"rollcall/internal/store"
)

// Worker is the expiry janitor: it consumes sweep jobs published at session
// creation, waits until the carried expiry passes, and purges expired
// sessions. A periodic ticker sweep catches anything a lost job would miss.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:jobs")
	}

	sessions := session.NewRegistry(db.Client, cfg.SessionTTL)

	jobs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()

	log.Println("janitor started, waiting for sweep jobs...")
	for {
		select {
		case <-ctx.Done():
			log.Println("janitor stopped")
			return

		case <-ticker.C:
			purge(ctx, sessions, "periodic")

		case job, ok := <-jobs:
			if !ok {
				log.Println("janitor stopped")
				return
			}
			if job.Kind != queue.SweepKind {
				continue
			}
			expiresAt, err := job.SweepTime()
			if err != nil {
				log.Printf("bad sweep job %q: %v", job.Body, err)
				continue
			}
			// Sleep out the remaining window, then sweep. A small grace
			// period keeps the sweep strictly after the expiry instant.
			if wait := time.Until(expiresAt) + time.Second; wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					log.Println("janitor stopped")
					return
				}
			}
			purge(ctx, sessions, "scheduled")
		}
	}
}

func purge(ctx context.Context, sessions *session.Registry, reason string) {
	n, err := sessions.PurgeExpired(ctx)
	if err != nil {
		log.Printf("%s purge failed: %v", reason, err)
		return
	}
	if n > 0 {
		log.Printf("%s purge removed %d expired session(s)", reason, n)
	}
}
