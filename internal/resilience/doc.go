// Package resilience guards a transport's raw send with optional rate
// limiting, circuit breaking and retrying.
//
// Two compositions are supported, chosen per transport:
//
//   - limit_then_break: the rate limiter runs first; a denied permit fails
//     with ErrRateLimited and never reaches the circuit breaker. A granted
//     permit goes through the breaker, which records the raw call's outcome.
//
//   - break_around_retry: the circuit breaker wraps the whole retry
//     sequence. An open breaker fails with ErrCircuitOpen before any attempt;
//     otherwise the retrier runs the raw call up to its attempt budget and only
//     the final result counts toward breaker health.
//
// Breakers count only errors that say something about the channel: rejected
// arguments and caller cancellation fail that call and leave the circuit
// alone (see CountsAsFailure).
//
// Guard state (tokens, breaker counts) belongs to one transport and is shared
// by all concurrent sends through it. A Guard with nothing configured is a
// passthrough: Protect returns the transport unchanged.
package resilience
