package main

import (
	"github.com/hibiken/asynq"

	"receiptflow/internal/domains/receipt/model"
	"receiptflow/pkg/container"
)

// HandlerRegistry holds the six receipt job handlers the worker serves,
// one per task type (§4.3-4.6).
type HandlerRegistry struct {
	c *container.Container
}

func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{c: c}
}

// RegisterHandlers wires every task type to its container-built handler.
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(model.TaskTypeRenderReceipt, h.c.RenderHandler.ProcessTask)
	mux.HandleFunc(model.TaskTypeUploadReceipt, h.c.UploadHandler.ProcessTask)
	mux.HandleFunc(model.TaskTypeEmailReceipt, h.c.EmailHandler.ProcessTask)
	mux.HandleFunc(model.TaskTypeRecoveryScan, h.c.RecoveryScanHandler.ProcessTask)
	mux.HandleFunc(model.TaskTypeWebhookRetry, h.c.WebhookRetryHandler.ProcessTask)
	mux.HandleFunc(model.TaskTypeWebhookCleanup, h.c.WebhookCleanupHandler.ProcessTask)
}
