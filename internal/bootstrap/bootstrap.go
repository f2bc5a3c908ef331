// Package bootstrap wires configuration into the dispatcher and its guarded
// transports. Both binaries start from New.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"beacon/internal/common"
	"beacon/internal/config"
	"beacon/internal/domain/notification"
	"beacon/internal/infra/applog"
	"beacon/internal/infra/email"
	"beacon/internal/infra/ratelimit"
	"beacon/internal/infra/slack"
	"beacon/internal/infra/template"
	"beacon/internal/metrics"
	"beacon/internal/resilience"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App is the wired notification core.
type App struct {
	Config     *config.Config
	Categories *notification.Registry
	Dispatcher *notification.Dispatcher
	Metrics    *metrics.Metrics
	Prometheus *prometheus.Registry

	log   *slog.Logger
	redis *redis.Client
}

// New validates cfg and builds the category registry, the enabled transports
// with their guards, and the dispatcher.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		Config:     cfg,
		Prometheus: prometheus.NewRegistry(),
		log:        log,
	}
	app.Prometheus.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.New(app.Prometheus)

	categories, err := buildCategories(cfg.Notification.Categories)
	if err != nil {
		return nil, err
	}
	app.Categories = categories

	transports, err := app.buildTransports()
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Dispatcher, err = notification.NewDispatcher(transports,
		notification.WithTimeout(cfg.Notification.TransportTimeout),
		notification.WithVerbose(cfg.Notification.Verbose),
		notification.WithLogger(log),
		notification.WithRecorder(app.Metrics),
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	return app, nil
}

// Close releases the shared Redis connection, if one was opened.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("closing redis client", "error", err)
		}
		a.redis = nil
	}
}

func buildCategories(defs map[string]config.CategoryConfig) (*notification.Registry, error) {
	categories := make(map[string]*notification.Category, len(defs))
	for name, def := range defs {
		severity, err := notification.ParseSeverity(def.Severity)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}
		c, err := notification.NewCategory(severity, def.Description)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}
		categories[name] = c
	}
	return notification.NewRegistry(categories)
}

func (a *App) buildTransports() ([]notification.Transport, error) {
	cfg := a.Config.Transports
	originator := a.Config.Notification.Originator

	var transports []notification.Transport
	add := func(t notification.Transport, gc config.GuardConfig) error {
		name := notification.TransportName(t)
		guard, err := a.buildGuard(name, gc)
		if err != nil {
			return fmt.Errorf("transport %s: %w", name, err)
		}
		protected, err := resilience.Protect(t, guard)
		if err != nil {
			return fmt.Errorf("transport %s: %w", name, err)
		}
		transports = append(transports, protected)
		return nil
	}

	if cfg.Log.Enabled {
		if err := add(applog.NewTransport(a.log), cfg.Log.Guard); err != nil {
			return nil, err
		}
	}

	if cfg.Email.Enabled {
		dir := cfg.Email.TemplatesDir
		if dir == "" {
			dir = resolveTemplatesDir()
		}
		engine, err := template.NewEngine(dir)
		if err != nil {
			return nil, fmt.Errorf("initializing template engine: %w", err)
		}
		a.log.Info("template engine initialized", "dir", dir)

		svc := email.NewResendService(cfg.Email.APIKey, engine,
			email.WithBaseURL(cfg.Email.BaseURL),
			email.WithTimeout(cfg.Email.Timeout),
			email.WithLogger(a.log),
		)
		t, err := email.NewTransport(svc, email.TransportConfig{
			Originator: originator,
			From:       cfg.Email.From,
			To:         strings.Join(cfg.Email.Recipients(), ","),
			Template:   cfg.Email.Template,
		})
		if err != nil {
			return nil, err
		}
		if err := add(t, cfg.Email.Guard); err != nil {
			return nil, err
		}
	}

	if cfg.Slack.Enabled {
		client, err := slack.NewWebhookClient(originator, cfg.Slack.WebhookURL, cfg.Slack.Timeout, a.log)
		if err != nil {
			return nil, err
		}
		t, err := slack.NewTransport(client, originator)
		if err != nil {
			return nil, err
		}
		if err := add(t, cfg.Slack.Guard); err != nil {
			return nil, err
		}
	}

	return transports, nil
}

func (a *App) buildGuard(name string, gc config.GuardConfig) (resilience.Guard, error) {
	composition, err := resilience.ParseComposition(gc.Composition)
	if err != nil {
		return resilience.Guard{}, err
	}
	guard := resilience.Guard{Composition: composition}

	if rl := gc.RateLimit; rl.Enabled() {
		if rl.Shared {
			guard.Limiter = ratelimit.NewRedisLimiter(a.redisClient(), name, rl.MaxPerWindow, rl.Window, a.log)
		} else {
			guard.Limiter = resilience.NewTokenBucket(rl.PerSecond, rl.Burst, rl.MaxWait)
		}
	}

	if cb := gc.CircuitBreaker; cb.Enabled() {
		guard.Breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Name:             name,
			FailureThreshold: cb.FailureThreshold,
			OpenTimeout:      cb.OpenTimeout,
			HalfOpenMax:      cb.HalfOpenMax,
		}, a.log)
	}

	if rc := gc.Retry; rc.Enabled() {
		guard.Retrier = resilience.NewRetrier(resilience.RetryConfig{
			Attempts:   rc.Attempts,
			Wait:       rc.Wait,
			Multiplier: rc.Multiplier,
			MaxWait:    rc.MaxWait,
			RetryIf:    Retryable,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				a.log.Warn("transport call failed, retrying",
					"transport", name, "attempt", attempt, "wait", wait, "error", err)
			},
			OnExhausted: func(attempts int, err error) {
				a.log.Error("transport call failed, giving up",
					"transport", name, "attempts", attempts, "error", err)
			},
		})
	}

	if !guard.Passthrough() {
		a.log.Info("transport guard configured",
			"transport", name,
			"composition", string(guard.Composition),
			"rate_limit", guard.Limiter != nil,
			"circuit_breaker", guard.Breaker != nil,
			"retry", guard.Retrier != nil,
		)
	}
	return guard, nil
}

func (a *App) redisClient() *redis.Client {
	if a.redis == nil {
		r := a.Config.Redis
		a.redis = ratelimit.NewClient(r.Address, r.Password, r.DB)
	}
	return a.redis
}

// Retryable reports whether another attempt could succeed. Invalid input,
// cancellation and provider rejections other than 408/429/5xx are final.
func Retryable(err error) bool {
	if errors.Is(err, notification.ErrInvalidArgument) || errors.Is(err, notification.ErrNilCategory) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	var provider *common.ProviderError
	if errors.As(err, &provider) && provider.StatusCode > 0 {
		switch {
		case provider.StatusCode == http.StatusRequestTimeout,
			provider.StatusCode == http.StatusTooManyRequests,
			provider.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// resolveTemplatesDir finds the email templates directory.
func resolveTemplatesDir() string {
	// Check if running in Docker (production)
	if _, err := os.Stat("/app/templates"); err == nil {
		return "/app/templates"
	}

	// Development: resolve relative to the source file location
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "internal/infra/template/templates"
	}

	// Navigate from internal/bootstrap/bootstrap.go to internal/infra/template/templates
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	return filepath.Join(projectRoot, "internal", "infra", "template", "templates")
}
