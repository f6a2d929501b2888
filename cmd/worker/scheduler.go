package main

import (
	"log"

	"receiptflow/internal/infrastructure/queue"
)

// asynqScheduler wraps queue.Scheduler with additional functionality
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler creates and configures the scheduler
func setupScheduler(cfg *Config) *asynqScheduler {
	scheduler := queue.NewScheduler(cfg.RedisAddr, cfg.Job)

	if err := scheduler.RegisterJobs(); err != nil {
		log.Fatalf("scheduler failed to register jobs: %v", err)
	}

	go func() {
		log.Println("scheduler starting...")
		if err := scheduler.Start(); err != nil {
			log.Fatalf("scheduler failed: %v", err)
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	log.Println("scheduler shutting down...")
	s.Scheduler.Shutdown()
	log.Println("scheduler stopped")
}
