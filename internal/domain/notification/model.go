package notification

import (
	"fmt"
	"slices"
	"strings"
)

// Registry holds the categories configured at startup, keyed by lower-case name.
type Registry struct {
	categories map[string]*Category
}

// NewRegistry creates a registry from named categories.
func NewRegistry(categories map[string]*Category) (*Registry, error) {
	r := &Registry{categories: make(map[string]*Category, len(categories))}
	for name, c := range categories {
		key := normalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("%w: blank category name", ErrInvalidArgument)
		}
		if c == nil {
			return nil, fmt.Errorf("%w: category %q is nil", ErrInvalidArgument, name)
		}
		r.categories[key] = c
	}
	return r, nil
}

// Lookup returns the category registered under name.
func (r *Registry) Lookup(name string) (*Category, bool) {
	c, ok := r.categories[normalizeName(name)]
	return c, ok
}

// Names returns the registered category names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NotifyRequest is the API request payload for sending a notification.
type NotifyRequest struct {
	Category string         `json:"category" binding:"required"`
	Message  string         `json:"message"`
	Context  MessageContext `json:"context"`
	Async    bool           `json:"async"`
}

// OutcomeView is the API representation of one transport outcome.
type OutcomeView struct {
	Transport  string `json:"transport"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// NotifyResponse is the API response payload for a notification.
type NotifyResponse struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Delivered bool          `json:"delivered"`
	Outcomes  []OutcomeView `json:"outcomes,omitempty"`
}

// CategoryView is the API representation of a configured category.
type CategoryView struct {
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

const (
	StatusQueued    = "queued"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

func newNotifyResponse(report Report) *NotifyResponse {
	resp := &NotifyResponse{
		ID:        report.ID,
		Status:    StatusFailed,
		Delivered: report.Delivered(),
		Outcomes:  make([]OutcomeView, len(report.Outcomes)),
	}
	if resp.Delivered {
		resp.Status = StatusDelivered
	}
	for i, o := range report.Outcomes {
		view := OutcomeView{Transport: o.Transport, OK: o.OK(), DurationMS: o.Duration.Milliseconds()}
		if o.Err != nil {
			view.Error = o.Err.Error()
		}
		resp.Outcomes[i] = view
	}
	return resp
}
