package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"beacon/internal/domain/notification"
	"beacon/internal/resilience"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Log          LogConfig          `mapstructure:"log"`
	Notification NotificationConfig `mapstructure:"notification"`
	Transports   TransportsConfig   `mapstructure:"transports"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-IP rate limiting settings for the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings, shared by the async queue and
// shared transport rate limits.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig holds async queue settings.
type QueueConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NotificationConfig holds dispatcher settings and the category registry.
type NotificationConfig struct {
	// Originator is the service name shown in formatted titles.
	Originator string `mapstructure:"originator"`

	// Verbose adds message bodies to dispatcher log records.
	Verbose bool `mapstructure:"verbose"`

	TransportTimeout time.Duration             `mapstructure:"transport_timeout"`
	Categories       map[string]CategoryConfig `mapstructure:"categories"`
}

// CategoryConfig defines one notification category.
type CategoryConfig struct {
	Severity    string `mapstructure:"severity"`
	Description string `mapstructure:"description"`
}

// TransportsConfig holds the per-transport settings.
type TransportsConfig struct {
	Log   LogTransportConfig   `mapstructure:"log"`
	Email EmailTransportConfig `mapstructure:"email"`
	Slack SlackTransportConfig `mapstructure:"slack"`
}

// LogTransportConfig configures the transport that writes notifications to the application log.
type LogTransportConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Guard   GuardConfig `mapstructure:"guard"`
}

// EmailTransportConfig configures the Resend email transport.
type EmailTransportConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	From         string        `mapstructure:"from"`
	To           string        `mapstructure:"to"`
	Template     string        `mapstructure:"template"`
	TemplatesDir string        `mapstructure:"templates_dir"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Guard        GuardConfig   `mapstructure:"guard"`
}

// SlackTransportConfig configures the chat webhook transport.
type SlackTransportConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Guard      GuardConfig   `mapstructure:"guard"`
}

// GuardConfig selects and tunes the protection around a transport.
type GuardConfig struct {
	Composition    string               `mapstructure:"composition"`
	RateLimit      GuardRateLimitConfig `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
}

// GuardRateLimitConfig configures a transport rate limit. It is enabled when
// PerSecond is positive, or when Shared is set.
type GuardRateLimitConfig struct {
	PerSecond float64       `mapstructure:"per_second"`
	Burst     int           `mapstructure:"burst"`
	MaxWait   time.Duration `mapstructure:"max_wait"`

	// Shared moves the limit to Redis so every replica draws from one window.
	Shared       bool          `mapstructure:"shared"`
	Window       time.Duration `mapstructure:"window"`
	MaxPerWindow int           `mapstructure:"max_per_window"`
}

// Enabled reports whether a rate limit is configured.
func (c GuardRateLimitConfig) Enabled() bool {
	return c.Shared || c.PerSecond > 0
}

// CircuitBreakerConfig configures a transport circuit breaker. It is enabled
// when FailureThreshold is positive.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenMax      uint32        `mapstructure:"half_open_max"`
}

// Enabled reports whether a circuit breaker is configured.
func (c CircuitBreakerConfig) Enabled() bool {
	return c.FailureThreshold > 0
}

// RetryConfig configures transport retries. It is enabled when Attempts is above 1.
type RetryConfig struct {
	Attempts   int           `mapstructure:"attempts"`
	Wait       time.Duration `mapstructure:"wait"`
	Multiplier float64       `mapstructure:"multiplier"`
	MaxWait    time.Duration `mapstructure:"max_wait"`
}

// Enabled reports whether retries are configured.
func (c RetryConfig) Enabled() bool {
	return c.Attempts > 1
}

// defaultCategories is used when the config defines none.
var defaultCategories = map[string]CategoryConfig{
	"error":   {Severity: "error", Description: "Error"},
	"warning": {Severity: "warn", Description: "Warning"},
	"info":    {Severity: "info", Description: "Information"},
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the BEACON_ prefix and underscore separators.
// Example: BEACON_TRANSPORTS_SLACK_WEBHOOK_URL overrides transports.slack.webhook_url.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional, env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Comma-separated API keys arrive from env vars untrimmed
	cfg.Auth.APIKeys = splitList(strings.Join(cfg.Auth.APIKeys, ","))

	if len(cfg.Notification.Categories) == 0 {
		cfg.Notification.Categories = make(map[string]CategoryConfig, len(defaultCategories))
		for name, c := range defaultCategories {
			cfg.Notification.Categories[name] = c
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("auth.api_keys", "")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("log.level", "info")

	v.SetDefault("notification.originator", "beacon")
	v.SetDefault("notification.verbose", false)
	v.SetDefault("notification.transport_timeout", notification.DefaultTransportTimeout)

	v.SetDefault("transports.log.enabled", true)

	v.SetDefault("transports.email.enabled", false)
	v.SetDefault("transports.email.api_key", "")
	v.SetDefault("transports.email.base_url", "https://api.resend.com")
	v.SetDefault("transports.email.from", "")
	v.SetDefault("transports.email.to", "")
	v.SetDefault("transports.email.template", "alert")
	v.SetDefault("transports.email.templates_dir", "")
	v.SetDefault("transports.email.timeout", 10*time.Second)

	v.SetDefault("transports.slack.enabled", false)
	v.SetDefault("transports.slack.webhook_url", "")
	v.SetDefault("transports.slack.timeout", 10*time.Second)

	for _, name := range []string{"log", "email", "slack"} {
		setGuardDefaults(v, "transports."+name+".guard")
	}
}

// setGuardDefaults registers every guard key so env vars can override them.
// All layers are off by default.
func setGuardDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".composition", "")
	v.SetDefault(prefix+".rate_limit.per_second", 0)
	v.SetDefault(prefix+".rate_limit.burst", 1)
	v.SetDefault(prefix+".rate_limit.max_wait", 0)
	v.SetDefault(prefix+".rate_limit.shared", false)
	v.SetDefault(prefix+".rate_limit.window", time.Minute)
	v.SetDefault(prefix+".rate_limit.max_per_window", 0)
	v.SetDefault(prefix+".circuit_breaker.failure_threshold", 0)
	v.SetDefault(prefix+".circuit_breaker.open_timeout", time.Minute)
	v.SetDefault(prefix+".circuit_breaker.half_open_max", 1)
	v.SetDefault(prefix+".retry.attempts", 0)
	v.SetDefault(prefix+".retry.wait", 500*time.Millisecond)
	v.SetDefault(prefix+".retry.multiplier", 1)
	v.SetDefault(prefix+".retry.max_wait", 0)
}

// Validate reports every configuration error found.
func (c *Config) Validate() error {
	var errs []error

	t := c.Transports
	if !t.Log.Enabled && !t.Email.Enabled && !t.Slack.Enabled {
		errs = append(errs, errors.New("at least one transport must be enabled"))
	}

	if t.Email.Enabled {
		if strings.TrimSpace(t.Email.APIKey) == "" {
			errs = append(errs, errors.New("transports.email.api_key is required"))
		}
		if strings.TrimSpace(t.Email.From) == "" {
			errs = append(errs, errors.New("transports.email.from is required"))
		}
		if len(t.Email.Recipients()) == 0 {
			errs = append(errs, errors.New("transports.email.to is required"))
		}
	}
	if t.Slack.Enabled && strings.TrimSpace(t.Slack.WebhookURL) == "" {
		errs = append(errs, errors.New("transports.slack.webhook_url is required"))
	}

	guards := map[string]GuardConfig{"log": t.Log.Guard, "email": t.Email.Guard, "slack": t.Slack.Guard}
	for _, name := range []string{"log", "email", "slack"} {
		if err := guards[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("transports.%s.guard: %w", name, err))
		}
	}

	if len(c.Notification.Categories) == 0 {
		errs = append(errs, errors.New("notification.categories must define at least one category"))
	}
	for name, cat := range c.Notification.Categories {
		if _, err := notification.ParseSeverity(cat.Severity); err != nil {
			errs = append(errs, fmt.Errorf("notification.categories.%s: %w", name, err))
		}
		if strings.TrimSpace(cat.Description) == "" {
			errs = append(errs, fmt.Errorf("notification.categories.%s: description is required", name))
		}
	}

	return errors.Join(errs...)
}

func (g GuardConfig) validate() error {
	comp, err := resilience.ParseComposition(g.Composition)
	if err != nil {
		return err
	}
	switch comp {
	case resilience.CompositionBreakAroundRetry:
		if g.RateLimit.Enabled() {
			return errors.New("break_around_retry does not take a rate limit")
		}
	default:
		if g.Retry.Enabled() {
			return errors.New("retry requires composition break_around_retry")
		}
	}
	if g.RateLimit.Shared && g.RateLimit.MaxPerWindow <= 0 {
		return errors.New("shared rate limit requires max_per_window")
	}
	return nil
}

// Recipients returns the configured email recipients.
func (c EmailTransportConfig) Recipients() []string {
	return splitList(c.To)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
