package queue

import (
	"context"
	"fmt"
	"log/slog"

	"beacon/internal/domain/notification"

	"github.com/hibiken/asynq"
)

// QueueName is the asynq queue that carries dispatch tasks.
const QueueName = "notifications"

func redisOpt(redisAddr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	}
}

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(redisOpt(redisAddr, password, db))
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		redisOpt(redisAddr, password, db),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueName: 10, // priority weight
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				slog.Error("dispatch task failed", "type", task.Type(), "error", err)
			}),
		},
	)
}

// taskEnqueuer is the part of *asynq.Client the Enqueuer uses.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ notification.Enqueuer = (*Enqueuer)(nil)

// Enqueuer adapts the asynq client to the notification.Enqueuer interface.
type Enqueuer struct {
	client taskEnqueuer
}

// NewEnqueuer creates an enqueuer on top of client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueDispatch enqueues a dispatch task. Tasks are never retried by the
// queue: a notification that fails on every transport is dropped.
func (e *Enqueuer) EnqueueDispatch(ctx context.Context, payload *notification.DispatchPayload) error {
	task, err := notification.NewDispatchTask(payload)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Queue(QueueName),
		asynq.TaskID(payload.ID),
	)
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}

	return nil
}

// NewServeMux routes dispatch tasks to worker.
func NewServeMux(worker *notification.Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDispatch, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseDispatchPayload(task.Payload())
		if err != nil {
			// A malformed payload will never succeed
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return worker.ProcessTask(ctx, payload)
	})
	return mux
}
