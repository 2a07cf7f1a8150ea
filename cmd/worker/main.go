package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolattend/internal/audit"
	"schoolattend/internal/config"
	"schoolattend/internal/metrics"
	"schoolattend/internal/queue"
	"schoolattend/internal/store"
)

// Worker drains audit access events (view/export) off the queue and appends
// them to the trail. These are advisory reads, so unlike mutations they are
// persisted off the request path and retried on the next occurrence rather
// than rolled back.
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

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.AuditQueueKey)
	}

	auditRepo := audit.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for audit access events...")
	for msg := range messages {
		if msg.Type != audit.MessageTypeAccess {
			continue
		}
		event, err := audit.AccessEventFromMessage(msg)
		if err != nil {
			log.Printf("dropping malformed access event: %v", err)
			continue
		}

		writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
		if _, err := auditRepo.Insert(writeCtx, event.Entry()); err != nil {
			log.Printf("persist access event by %s failed: %v", event.PerformedBy, err)
		} else {
			metrics.AuditEntries.Inc()
		}
		cancelWrite()
	}

	log.Println("worker stopped")
}
