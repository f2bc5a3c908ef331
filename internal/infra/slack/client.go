package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"beacon/internal/common"
	"beacon/internal/logging"
)

// MaxSectionLength is the number of characters kept in a markdown section block.
const MaxSectionLength = 3000

// ErrInvalidWebhookURL is returned by NewWebhookClient for unusable webhook URLs.
var ErrInvalidWebhookURL = errors.New("invalid webhook URL")

// WebhookClient posts JSON messages to a Slack-compatible incoming webhook.
type WebhookClient struct {
	serviceName string
	webhookURL  string
	httpClient  *http.Client
	log         *slog.Logger
}

// NewWebhookClient creates a client. The URL must be an absolute http(s) URL
// and must not contain '$', which usually means an unexpanded variable.
func NewWebhookClient(serviceName, webhookURL string, timeout time.Duration, log *slog.Logger) (*WebhookClient, error) {
	if strings.TrimSpace(serviceName) == "" {
		return nil, errors.New("slack: service name is required")
	}
	if err := validateWebhookURL(webhookURL); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookClient{
		serviceName: serviceName,
		webhookURL:  webhookURL,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}, nil
}

func validateWebhookURL(raw string) error {
	if strings.Contains(raw, "$") {
		return fmt.Errorf("%w: contains unexpanded environment variable?", ErrInvalidWebhookURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		// url.Error embeds the URL, which holds the webhook secret
		return fmt.Errorf("%w: unparseable", ErrInvalidWebhookURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidWebhookURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is missing", ErrInvalidWebhookURL)
	}
	return nil
}

// Send posts payload as JSON.
func (c *WebhookClient) Send(ctx context.Context, payload map[string]any) error {
	if payload == nil {
		return errors.New("slack: payload is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	if c.log.Enabled(ctx, logging.LevelTrace) {
		c.log.Log(ctx, logging.LevelTrace, "sending to slack", "service", c.serviceName, "payload", string(body))
	} else {
		c.log.Info("sending to slack (trace level additionally logs message content)", "service", c.serviceName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.New("slack: creating request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", redactURL(err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return common.NewProviderError("slack", resp.StatusCode, msg)
	}
	return nil
}

// SendPlainText posts {"text": text}.
func (c *WebhookClient) SendPlainText(ctx context.Context, text string) error {
	return c.Send(ctx, map[string]any{"text": text})
}

// SendMarkdown posts a header block with title and a markdown section with text.
func (c *WebhookClient) SendMarkdown(ctx context.Context, title, text string) error {
	return c.Send(ctx, MarkdownMessage(title, text))
}

// MarkdownMessage builds a Block Kit message. The section text is cut to
// MaxSectionLength characters.
func MarkdownMessage(title, text string) map[string]any {
	return map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type":  "plain_text",
					"text":  title,
					"emoji": true,
				},
			},
			map[string]any{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": truncate(text, MaxSectionLength),
				},
			},
		},
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// redactURL strips the request URL from transport errors.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
