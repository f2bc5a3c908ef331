package notification

import (
	"context"
	"reflect"
	"strings"
)

// Transport is one delivery channel (email, chat webhook, application log, ...).
// Implementations live in infra/. Send must be safe for concurrent use, must
// bound its own latency, and must not retain references into mctx.
type Transport interface {
	Send(ctx context.Context, category *Category, message string, mctx MessageContext) error
}

// Named lets a transport report its own identity for outcome summaries.
type Named interface {
	Name() string
}

// Wrapper is implemented by decorators (e.g. resilience guards) so the
// identity of the underlying channel survives wrapping.
type Wrapper interface {
	Unwrap() Transport
}

// TransportName returns a stable, human-readable identity for t: the Name of
// the innermost Named transport, or its concrete type name (e.g. "slack.Transport").
func TransportName(t Transport) string {
	for {
		if n, ok := t.(Named); ok {
			if name := strings.TrimSpace(n.Name()); name != "" {
				return name
			}
		}
		w, ok := t.(Wrapper)
		if !ok {
			break
		}
		inner := w.Unwrap()
		if inner == nil {
			break
		}
		t = inner
	}

	typ := reflect.TypeOf(t)
	if typ == nil {
		return "<nil>"
	}
	return strings.TrimLeft(typ.String(), "*")
}

// sameTransport reports whether a and b are the same instance.
// Values whose dynamic type cannot be compared are never considered equal.
func sameTransport(a, b Transport) (same bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	// Structs holding non-comparable interface values panic on ==.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
