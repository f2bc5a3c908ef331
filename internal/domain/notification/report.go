package notification

import (
	"strings"
	"time"
)

// Outcome is the result of one transport for one send.
type Outcome struct {
	Transport string
	Err       error
	Duration  time.Duration
}

// OK reports whether the transport delivered the message.
func (o Outcome) OK() bool { return o.Err == nil }

// String renders "Name[OK]" or "Name[ERROR: message]".
func (o Outcome) String() string {
	if o.Err == nil {
		return o.Transport + "[OK]"
	}
	return o.Transport + "[ERROR: " + o.Err.Error() + "]"
}

// Report aggregates the outcomes of one send, in registration order.
type Report struct {
	ID       string
	Outcomes []Outcome
}

// Failures counts failed outcomes.
func (r Report) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Delivered reports whether at least one transport succeeded.
func (r Report) Delivered() bool {
	return len(r.Outcomes) > 0 && r.Failures() < len(r.Outcomes)
}

// Summary renders all outcomes, e.g. "T1[OK], T2[ERROR: x], T3[OK]".
func (r Report) Summary() string {
	parts := make([]string, len(r.Outcomes))
	for i, o := range r.Outcomes {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}
