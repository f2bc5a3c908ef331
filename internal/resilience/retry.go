package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures a Retrier.
type RetryConfig struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int

	// Wait is the pause before the first retry.
	Wait time.Duration

	// Multiplier grows the pause between retries; 1 or less keeps it fixed.
	Multiplier float64

	// MaxWait caps the pause when Multiplier is used.
	MaxWait time.Duration

	// RetryIf decides whether an error is worth another attempt. Nil retries every error.
	RetryIf func(err error) bool

	// OnRetry is called after a failed attempt, before waiting for the next one.
	OnRetry func(attempt int, err error, wait time.Duration)

	// OnExhausted is called once when the sequence ends in failure.
	OnExhausted func(attempts int, err error)
}

// Retrier runs a call until it succeeds or the attempt budget is spent.
// It holds no per-call state and is safe for concurrent use.
type Retrier struct {
	cfg RetryConfig
}

// NewRetrier creates a retrier. Attempts defaults to 3; a zero Wait retries immediately.
func NewRetrier(cfg RetryConfig) *Retrier {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Wait < 0 {
		cfg.Wait = 0
	}
	return &Retrier{cfg: cfg}
}

// Attempts returns the configured attempt budget.
func (r *Retrier) Attempts() int { return r.cfg.Attempts }

// Run calls call until it succeeds, returns a non-retryable error, the budget
// is spent, or ctx is done. It returns the last error.
func (r *Retrier) Run(ctx context.Context, call Call) error {
	attempt := 0
	op := func() error {
		attempt++
		err := call(ctx)
		if err != nil && r.cfg.RetryIf != nil && !r.cfg.RetryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(r.newBackOff(), ctx), notify)
	if err != nil && r.cfg.OnExhausted != nil {
		r.cfg.OnExhausted(attempt, err)
	}
	return err
}

// newBackOff builds a fresh policy per sequence; backoff policies are stateful.
func (r *Retrier) newBackOff() backoff.BackOff {
	var b backoff.BackOff
	if r.cfg.Multiplier > 1 {
		ebo := backoff.NewExponentialBackOff()
		ebo.InitialInterval = r.cfg.Wait
		ebo.Multiplier = r.cfg.Multiplier
		ebo.RandomizationFactor = 0
		ebo.MaxElapsedTime = 0
		if r.cfg.MaxWait > 0 {
			ebo.MaxInterval = r.cfg.MaxWait
		}
		ebo.Reset()
		b = ebo
	} else {
		b = backoff.NewConstantBackOff(r.cfg.Wait)
	}
	return backoff.WithMaxRetries(b, uint64(r.cfg.Attempts-1))
}
