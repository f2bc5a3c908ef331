package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"beacon/internal/common"
	"beacon/internal/infra/template"
	"beacon/internal/logging"
)

// DefaultBaseURL is the Resend API root.
const DefaultBaseURL = "https://api.resend.com"

// Renderer renders a named HTML template.
type Renderer interface {
	Render(name string, data any) (string, error)
}

var _ Renderer = (*template.Engine)(nil)

var _ Service = (*ResendService)(nil)

// ResendService sends HTML emails using the Resend API.
type ResendService struct {
	apiKey     string
	baseURL    string
	renderer   Renderer
	httpClient *http.Client
	log        *slog.Logger
}

// ResendOption configures a ResendService.
type ResendOption func(*ResendService)

// WithBaseURL points the service at another Resend-compatible endpoint.
func WithBaseURL(baseURL string) ResendOption {
	return func(s *ResendService) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ResendOption {
	return func(s *ResendService) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(log *slog.Logger) ResendOption {
	return func(s *ResendService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewResendService creates a new Resend email service. renderer may be nil
// when only SendHTML is used.
func NewResendService(apiKey string, renderer Renderer, opts ...ResendOption) *ResendService {
	s := &ResendService{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		renderer:   renderer,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendHTMLWithTemplate renders templateName with data and sends the result.
func (s *ResendService) SendHTMLWithTemplate(ctx context.Context, from, to, subject, templateName string, data map[string]any) error {
	if s.renderer == nil {
		return errors.New("resend: no template renderer configured")
	}
	body, err := s.renderer.Render(templateName, data)
	if err != nil {
		return fmt.Errorf("rendering email body: %w", err)
	}
	return s.SendHTML(ctx, from, to, subject, body)
}

// SendHTML delivers an HTML email with a plain-text fallback. to may hold
// several comma-separated addresses.
func (s *ResendService) SendHTML(ctx context.Context, from, to, subject, body string) error {
	recipients := splitAddresses(to)
	if len(recipients) == 0 {
		return errors.New("resend: no recipients")
	}

	payload := map[string]any{
		"from":    from,
		"to":      recipients,
		"subject": subject,
		"html":    body,
		"text":    template.StripHTML(body),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling email payload: %w", err)
	}

	if s.log.Enabled(ctx, logging.LevelTrace) {
		s.log.Log(ctx, logging.LevelTrace, "sending email", "to", to, "subject", subject, "body", body)
	} else {
		s.log.Info("sending email (trace level additionally logs message content)", "to", to, "subject", subject)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message    string `json:"message"`
			StatusCode int    `json:"statusCode"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		msg := errResp.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return common.NewProviderError("resend", resp.StatusCode, msg)
	}

	var successResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return fmt.Errorf("parsing resend response: %w", err)
	}

	s.log.Debug("email accepted", "provider_id", successResp.ID)
	return nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, addr := range strings.Split(s, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
