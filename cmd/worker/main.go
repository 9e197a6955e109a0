package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campusauth/internal/config"
	"campusauth/internal/notify"
	"campusauth/internal/queue"
	"campusauth/internal/store"
)

// Worker drains the notification queue and delivers one-time passcodes.
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

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		log.Println("WARNING: memory queue is process-local; the worker will only see its own messages")
		q = queue.NewInMemory(64)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			log.Println("WARNING: redis not reachable, consumer will keep retrying")
		}
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	var sender notify.Sender = notify.LogSender{}
	if cfg.NotifySender == "smtp" {
		if cfg.SMTP.User == "" || cfg.SMTP.Password == "" {
			log.Fatal("NOTIFY_SENDER=smtp requires SMTP_USER and SMTP_PASSWORD")
		}
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			AppName:  cfg.ServiceName,
		})
		log.Printf("smtp sender configured via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Printf("worker started on %q, waiting for messages...", cfg.QueueKey)
	notify.Dispatch(ctx, messages, sender)
	log.Println("worker stopped")
}
