package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"receiptflow/internal/domains/receipt/model"
)

// asynqServer wraps asynq.Server with additional functionality
type asynqServer struct {
	*asynq.Server
}

// setupAsynqServer creates and configures the Asynq server, weighting the
// four named queues by how latency-sensitive each fulfillment stage is
// (§4.3-4.6, §6): render/upload/email ahead of the best-effort recovery scan.
func setupAsynqServer(cfg *Config, handlers *HandlerRegistry) *asynqServer {
	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Queues: map[string]int{
				model.QueueReceiptGeneration: 6,
				model.QueueCloudinaryUpload:  4,
				model.QueueEmailDelivery:     4,
				model.QueueRecoveryScan:      1,
			},
			Concurrency: 15,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("task failed - type: %s, taskID: %s, error: %v",
					task.Type(), task.ResultWriter().TaskID(), err)
			}),
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				base := model.RenderBackoffBase
				switch task.Type() {
				case model.TaskTypeUploadReceipt:
					base = model.UploadBackoffBase
				case model.TaskTypeEmailReceipt:
					base = model.EmailBackoffBase
				}
				return base * time.Duration(1<<uint(n))
			},
		},
	)

	go func() {
		log.Println("worker starting...")
		if err := srv.Run(mux); err != nil {
			log.Fatalf("worker failed: %v", err)
		}
	}()

	return &asynqServer{Server: srv}
}

// Shutdown gracefully shuts down the server with timeout
func (s *asynqServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Println("worker shutting down (waiting max 30s)...")
	done := make(chan struct{})
	go func() {
		s.Server.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		log.Println("worker stopped gracefully")
	case <-ctx.Done():
		log.Println("shutdown timeout exceeded")
	}
}
