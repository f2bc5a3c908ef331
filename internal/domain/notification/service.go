package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"beacon/internal/common"

	"github.com/google/uuid"
)

// Enqueuer defines the contract for handing a send over to the async worker.
// This allows the service to be decoupled from the specific queue implementation.
type Enqueuer interface {
	EnqueueDispatch(ctx context.Context, payload *DispatchPayload) error
}

// Service resolves API requests into dispatcher sends.
// Sync requests are dispatched and reported inline; async requests are enqueued for the worker.
type Service struct {
	dispatcher *Dispatcher
	categories *Registry
	enqueuer   Enqueuer
}

// NewService creates a new notification service. enqueuer may be nil, in
// which case async requests are rejected.
func NewService(dispatcher *Dispatcher, categories *Registry, enqueuer Enqueuer) *Service {
	return &Service{
		dispatcher: dispatcher,
		categories: categories,
		enqueuer:   enqueuer,
	}
}

// Notify sends a notification now, or enqueues it when req.Async is set.
// Delivery failures are reported in the response, never as an error.
func (s *Service) Notify(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error) {
	category, ok := s.categories.Lookup(req.Category)
	if !ok {
		return nil, common.NewValidationError(fmt.Sprintf("unknown notification category: %s", req.Category))
	}

	if req.Async {
		return s.enqueue(ctx, req)
	}

	report, err := s.dispatcher.Dispatch(ctx, category, req.Message, req.Context)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNilCategory) {
			return nil, common.NewValidationError(err.Error())
		}
		return nil, fmt.Errorf("dispatching notification: %w", err)
	}
	return newNotifyResponse(report), nil
}

func (s *Service) enqueue(ctx context.Context, req *NotifyRequest) (*NotifyResponse, error) {
	if s.enqueuer == nil {
		return nil, common.NewValidationError("async delivery is not enabled")
	}

	payload := &DispatchPayload{
		ID:       uuid.NewString(),
		Category: req.Category,
		Message:  req.Message,
		Context:  req.Context,
	}
	if err := s.enqueuer.EnqueueDispatch(ctx, payload); err != nil {
		return nil, fmt.Errorf("enqueuing notification: %w", err)
	}

	slog.Info("notification enqueued", "id", payload.ID, "category", req.Category)

	return &NotifyResponse{ID: payload.ID, Status: StatusQueued}, nil
}

// Category returns a configured category by name.
func (s *Service) Category(name string) (*CategoryView, error) {
	c, ok := s.categories.Lookup(name)
	if !ok {
		return nil, common.NewNotFoundError("category", name)
	}
	return &CategoryView{
		Name:        normalizeName(name),
		Severity:    c.Severity().String(),
		Description: c.Description(),
	}, nil
}

// Categories returns all configured categories.
func (s *Service) Categories() []CategoryView {
	names := s.categories.Names()
	views := make([]CategoryView, 0, len(names))
	for _, name := range names {
		if view, err := s.Category(name); err == nil {
			views = append(views, *view)
		}
	}
	return views
}

// Transports returns the registered transport identities.
func (s *Service) Transports() []string {
	return s.dispatcher.Transports()
}
