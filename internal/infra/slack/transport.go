package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"beacon/internal/domain/notification"
)

// Messenger is the webhook capability the transport needs.
type Messenger interface {
	SendMarkdown(ctx context.Context, title, text string) error
}

var _ Messenger = (*WebhookClient)(nil)

var _ notification.Transport = (*Transport)(nil)

// Transport delivers notifications as Slack markdown messages.
type Transport struct {
	messenger  Messenger
	originator string
}

// NewTransport creates a Slack transport. originator names the sending service in titles.
func NewTransport(messenger Messenger, originator string) (*Transport, error) {
	if messenger == nil {
		return nil, fmt.Errorf("%w: slack messenger is required", notification.ErrInvalidArgument)
	}
	if strings.TrimSpace(originator) == "" {
		return nil, fmt.Errorf("%w: originator is required", notification.ErrInvalidArgument)
	}
	return &Transport{messenger: messenger, originator: originator}, nil
}

// Name identifies the transport in dispatcher reports.
func (t *Transport) Name() string { return "slack" }

// Send posts the message with the context appended as a pretty-printed JSON code block.
func (t *Transport) Send(ctx context.Context, category *notification.Category, message string, mctx notification.MessageContext) error {
	if category == nil {
		return notification.ErrNilCategory
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is blank", notification.ErrInvalidArgument)
	}

	var text strings.Builder
	text.WriteString(message)
	if len(mctx) > 0 {
		text.WriteString("\n```\n")
		if pretty, err := json.MarshalIndent(mctx, "", "  "); err == nil {
			text.Write(pretty)
		} else {
			text.WriteString(mctx.Compact())
		}
		text.WriteString("\n```")
	}

	return t.messenger.SendMarkdown(ctx, Title(category, t.originator), text.String())
}

// Title prefixes the formatted category with an emoji matching its severity.
func Title(category *notification.Category, originator string) string {
	title := category.Format(originator)
	switch category.Severity() {
	case notification.SeverityError:
		return ":exclamation: " + title
	case notification.SeverityWarn:
		return ":warning: " + title
	default:
		return ":information_source: " + title
	}
}
