package email

import (
	"context"
	"fmt"
	"strings"

	"beacon/internal/domain/notification"
)

// Service sends HTML email.
type Service interface {
	SendHTML(ctx context.Context, from, to, subject, body string) error
	SendHTMLWithTemplate(ctx context.Context, from, to, subject, templateName string, data map[string]any) error
}

var _ notification.Transport = (*Transport)(nil)

// Transport delivers notifications as templated HTML emails.
type Transport struct {
	service    Service
	originator string
	from       string
	to         string
	template   string
}

// TransportConfig holds the fixed envelope of every notification email.
type TransportConfig struct {
	// Originator names the sending service in the subject.
	Originator string
	From       string
	// To holds one or more comma-separated addresses.
	To       string
	Template string
}

// NewTransport creates an email transport. All config fields are required.
func NewTransport(service Service, cfg TransportConfig) (*Transport, error) {
	if service == nil {
		return nil, fmt.Errorf("%w: email service is required", notification.ErrInvalidArgument)
	}
	for field, value := range map[string]string{
		"originator": cfg.Originator,
		"from":       cfg.From,
		"to":         cfg.To,
		"template":   cfg.Template,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%w: email %s is required", notification.ErrInvalidArgument, field)
		}
	}
	return &Transport{
		service:    service,
		originator: cfg.Originator,
		from:       cfg.From,
		to:         cfg.To,
		template:   cfg.Template,
	}, nil
}

// Name identifies the transport in dispatcher reports.
func (t *Transport) Name() string { return "email" }

// Send renders the template with the caller's context plus title, message and
// the context with every value stringified under "context".
func (t *Transport) Send(ctx context.Context, category *notification.Category, message string, mctx notification.MessageContext) error {
	if category == nil {
		return notification.ErrNilCategory
	}

	title := category.Format(t.originator)
	data := mctx.Map()
	data["title"] = title
	data["message"] = message
	data["context"] = mctx.Strings()

	return t.service.SendHTMLWithTemplate(ctx, t.from, t.to, title, t.template, data)
}
