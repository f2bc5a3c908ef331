package resilience

import (
	"context"
	"fmt"

	"beacon/internal/domain/notification"
)

// Call is a raw operation guarded by a limiter, breaker or retrier.
type Call func(ctx context.Context) error

// Composition selects the nesting order of a Guard.
type Composition string

const (
	// CompositionNone is a passthrough unless a limiter or breaker is set,
	// in which case it behaves like CompositionLimitThenBreak.
	CompositionNone Composition = ""

	CompositionLimitThenBreak   Composition = "limit_then_break"
	CompositionBreakAroundRetry Composition = "break_around_retry"
)

// ParseComposition validates a configured composition name.
func ParseComposition(s string) (Composition, error) {
	switch c := Composition(s); c {
	case CompositionNone, CompositionLimitThenBreak, CompositionBreakAroundRetry:
		return c, nil
	default:
		return "", fmt.Errorf("unknown guard composition %q", s)
	}
}

// WithLimiter runs next only when l grants a permit. A nil limiter returns next.
func WithLimiter(l Limiter, next Call) Call {
	if l == nil {
		return next
	}
	return func(ctx context.Context) error {
		if err := l.Acquire(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}

// WithBreaker runs next through b. A nil breaker returns next.
func WithBreaker(b *Breaker, next Call) Call {
	if b == nil {
		return next
	}
	return func(ctx context.Context) error {
		return b.Execute(ctx, next)
	}
}

// WithRetry runs next through r. A nil retrier returns next.
func WithRetry(r *Retrier, next Call) Call {
	if r == nil {
		return next
	}
	return func(ctx context.Context) error {
		return r.Run(ctx, next)
	}
}

// LimitThenBreak runs the rate limiter, then the circuit breaker, then raw.
func LimitThenBreak(l Limiter, b *Breaker, raw Call) Call {
	return WithLimiter(l, WithBreaker(b, raw))
}

// BreakAroundRetry wraps the retrier in the circuit breaker, so the whole
// retry sequence is a single breaker call.
func BreakAroundRetry(b *Breaker, r *Retrier, raw Call) Call {
	return WithBreaker(b, WithRetry(r, raw))
}

// Guard is the protection configured for one transport.
type Guard struct {
	Composition Composition
	Limiter     Limiter
	Breaker     *Breaker
	Retrier     *Retrier
}

// Validate rejects layers that the chosen composition does not use.
func (g Guard) Validate() error {
	switch g.Composition {
	case CompositionNone, CompositionLimitThenBreak:
		if g.Retrier != nil {
			return fmt.Errorf("guard composition %q does not take a retrier", g.compositionName())
		}
	case CompositionBreakAroundRetry:
		if g.Limiter != nil {
			return fmt.Errorf("guard composition %q does not take a rate limiter", g.Composition)
		}
	default:
		return fmt.Errorf("unknown guard composition %q", g.Composition)
	}
	return nil
}

func (g Guard) compositionName() Composition {
	if g.Composition == CompositionNone {
		return CompositionLimitThenBreak
	}
	return g.Composition
}

// Passthrough reports whether the guard has nothing to do.
func (g Guard) Passthrough() bool {
	return g.Limiter == nil && g.Breaker == nil && g.Retrier == nil
}

// Wrap composes the guard around raw.
func (g Guard) Wrap(raw Call) Call {
	if g.Composition == CompositionBreakAroundRetry {
		return BreakAroundRetry(g.Breaker, g.Retrier, raw)
	}
	return LimitThenBreak(g.Limiter, g.Breaker, raw)
}

// Protect returns t guarded by g, or t itself when g is a passthrough.
func Protect(t notification.Transport, g Guard) (notification.Transport, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.Passthrough() {
		return t, nil
	}
	return &guardedTransport{next: t, guard: g}, nil
}

type guardedTransport struct {
	next  notification.Transport
	guard Guard
}

func (t *guardedTransport) Send(ctx context.Context, category *notification.Category, message string, mctx notification.MessageContext) error {
	raw := func(ctx context.Context) error {
		return t.next.Send(ctx, category, message, mctx)
	}
	return t.guard.Wrap(raw)(ctx)
}

func (t *guardedTransport) Unwrap() notification.Transport { return t.next }
