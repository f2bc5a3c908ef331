package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
)

var (
	// ErrNoTransports is returned when a Dispatcher is built without transports.
	ErrNoTransports = errors.New("no notification transports defined")

	// ErrNilCategory is returned when a send is attempted without a category.
	ErrNilCategory = errors.New("notification category is required")

	// ErrInvalidArgument marks per-call and configuration validation failures.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DefaultTransportTimeout bounds a single transport call when no timeout is configured.
const DefaultTransportTimeout = 15 * time.Second

// Recorder observes completed dispatches, e.g. to export metrics.
type Recorder interface {
	ObserveDispatch(category *Category, report Report, elapsed time.Duration)
}

type registration struct {
	transport Transport
	name      string
}

// Dispatcher sends every notification through all registered transports
// concurrently and considers it delivered if at least one transport succeeds.
// Transport failures are never returned to the caller; they are summarized
// in a single log record per send.
//
// It is safe for concurrent use.
type Dispatcher struct {
	transports []registration
	timeout    time.Duration
	verbose    bool
	log        *slog.Logger
	recorder   Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each transport call. Zero or negative disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithVerbose adds message bodies and context to the aggregate log record.
// Message bodies may be sensitive; keep this off in production.
func WithVerbose(verbose bool) Option {
	return func(disp *Dispatcher) { disp.verbose = verbose }
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(disp *Dispatcher) { disp.log = log }
}

// WithRecorder reports every dispatch to r.
func WithRecorder(r Recorder) Option {
	return func(disp *Dispatcher) { disp.recorder = r }
}

// NewDispatcher creates a dispatcher over the given transports. Nil entries are
// ignored and repeated instances are registered once; order is preserved.
func NewDispatcher(transports []Transport, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{timeout: DefaultTransportTimeout}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}

	for _, t := range transports {
		if t == nil || d.registered(t) {
			continue
		}
		d.transports = append(d.transports, registration{transport: t, name: TransportName(t)})
	}
	if len(d.transports) == 0 {
		return nil, ErrNoTransports
	}

	d.log.Info("notification transports registered", "transports", d.Transports())
	return d, nil
}

func (d *Dispatcher) registered(t Transport) bool {
	for _, reg := range d.transports {
		if sameTransport(reg.transport, t) {
			return true
		}
	}
	return false
}

// Transports returns the identities of the registered transports in order.
func (d *Dispatcher) Transports() []string {
	names := make([]string, len(d.transports))
	for i, reg := range d.transports {
		names[i] = reg.name
	}
	return names
}

// Send delivers the message through every transport and reports whether at
// least one succeeded. The error is non-nil only for invalid arguments.
func (d *Dispatcher) Send(ctx context.Context, category *Category, message string, mctx MessageContext) (bool, error) {
	report, err := d.Dispatch(ctx, category, message, mctx)
	if err != nil {
		return false, err
	}
	return report.Delivered(), nil
}

// SendError is Send with a compact rendering of cause appended to the message.
func (d *Dispatcher) SendError(ctx context.Context, category *Category, message string, cause error, mctx MessageContext) (bool, error) {
	return d.Send(ctx, category, AppendCause(message, cause), mctx)
}

// Dispatch is Send returning the full per-transport report.
func (d *Dispatcher) Dispatch(ctx context.Context, category *Category, message string, mctx MessageContext) (Report, error) {
	if category == nil {
		return Report{}, ErrNilCategory
	}
	mctx = mctx.normalize()

	start := time.Now()
	report := Report{ID: uuid.NewString()}

	mapper := iter.Mapper[registration, Outcome]{MaxGoroutines: len(d.transports)}
	report.Outcomes = mapper.Map(d.transports, func(reg *registration) Outcome {
		return d.deliver(ctx, *reg, category, message, mctx)
	})

	elapsed := time.Since(start)
	d.logReport(report, category, message, mctx, elapsed)
	if d.recorder != nil {
		d.recorder.ObserveDispatch(category, report, elapsed)
	}
	return report, nil
}

// deliver runs one transport and turns whatever it does (error or panic) into an Outcome.
func (d *Dispatcher) deliver(ctx context.Context, reg registration, category *Category, message string, mctx MessageContext) (out Outcome) {
	out.Transport = reg.name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
		}
		out.Duration = time.Since(start)
	}()

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	out.Err = reg.transport.Send(callCtx, category, message, mctx.Clone())
	return out
}

func (d *Dispatcher) logReport(report Report, category *Category, message string, mctx MessageContext, elapsed time.Duration) {
	attrs := []any{
		"dispatch_id", report.ID,
		"severity", category.Severity().String(),
		"category", category.Description(),
		"transports", report.Summary(),
		"duration", elapsed,
	}
	if d.verbose {
		attrs = append(attrs, "message", message, "context", mctx.Compact())
	}

	failures := report.Failures()
	switch {
	case failures == len(report.Outcomes):
		d.log.Error("notification not sent, all transports failed", attrs...)
	case failures > 0:
		d.log.Warn("notification sent, but some transports failed", attrs...)
	default:
		d.log.Debug("notification sent, all transports succeeded", attrs...)
	}
}

// AppendCause appends ": <cause>" to message, with whitespace in the cause
// collapsed to single spaces. A nil cause leaves the message unchanged.
func AppendCause(message string, cause error) string {
	if cause == nil {
		return message
	}
	return message + ": " + strings.Join(strings.Fields(cause.Error()), " ")
}
