package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"beacon/internal/domain/notification"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs, usually the transport name.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32

	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration

	// HalfOpenMax is the number of trial calls allowed while half-open.
	HalfOpenMax uint32

	// IsFailure decides whether an error counts against the circuit.
	// Nil uses CountsAsFailure.
	IsFailure func(err error) bool
}

// CountsAsFailure reports whether err says something about the channel's
// health. Rejected arguments and caller cancellation do not: they fail that
// call only.
func CountsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, notification.ErrInvalidArgument),
		errors.Is(err, notification.ErrNilCategory),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker creates a breaker. Zero values get defaults: 5 failures, 60s open, 1 trial call.
func NewBreaker(cfg BreakerConfig, log *slog.Logger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMax == 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = CountsAsFailure
	}
	if log == nil {
		log = slog.Default()
	}

	isFailure := cfg.IsFailure
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMax,
		Timeout:     cfg.OpenTimeout,
		IsSuccessful: func(err error) bool {
			return !isFailure(err)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Execute runs call if the circuit allows it and records its outcome.
func (b *Breaker) Execute(ctx context.Context, call Call) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, b.cb.Name())
	}
	return err
}

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Counts returns the request counters of the current breaker generation.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
