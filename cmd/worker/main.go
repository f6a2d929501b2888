// cmd/worker/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"receiptflow/pkg/container"
)

func main() {
	c, err := container.NewContainer()
	if err != nil {
		log.Fatalf("container failed to initialize: %v", err)
	}
	defer c.Cleanup()

	cfg := loadConfig(c.Config)

	handlers := initializeHandlers(c)
	srv := setupAsynqServer(cfg, handlers)
	scheduler := setupScheduler(cfg)

	if err := startServices(srv, scheduler, cfg); err != nil {
		log.Fatalf("startup health check failed: %v", err)
	}

	waitForShutdown(srv, scheduler)
}

func waitForShutdown(srv *asynqServer, scheduler *asynqScheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("gracefully stopping...")
	scheduler.Shutdown()
	srv.Shutdown()
	log.Println("stopped")
}
