package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"beacon/internal/common"
)

// Worker processes async dispatch tasks from the queue.
// A task is one dispatcher send; a failed send is logged and dropped, never replayed.
type Worker struct {
	dispatcher *Dispatcher
	categories *Registry
}

// NewWorker creates a new notification worker.
func NewWorker(dispatcher *Dispatcher, categories *Registry) *Worker {
	return &Worker{
		dispatcher: dispatcher,
		categories: categories,
	}
}

// ProcessTask handles a dispatch task from the queue. It returns an error only
// for payloads that can never be delivered (unknown category).
func (w *Worker) ProcessTask(ctx context.Context, p *DispatchPayload) error {
	start := time.Now()

	category, ok := w.categories.Lookup(p.Category)
	if !ok {
		slog.Error("dispatch task has unknown category", "id", p.ID, "category", p.Category)
		return common.NewValidationError(fmt.Sprintf("unknown notification category: %s", p.Category))
	}

	report, err := w.dispatcher.Dispatch(ctx, category, p.Message, p.Context)
	if err != nil {
		return fmt.Errorf("dispatching task %s: %w", p.ID, err)
	}

	slog.Info("dispatch task processed",
		"id", p.ID,
		"dispatch_id", report.ID,
		"category", p.Category,
		"delivered", report.Delivered(),
		"duration", time.Since(start),
	)
	return nil
}
