// Package circuitbreaker implements the circuit breaker pattern. It keeps
// a failing secondary sink (the cross-context notifier) from slowing down
// the projection pipeline that feeds it.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker's position in its state machine.
type State int

const (
	// StateClosed admits every request.
	StateClosed State = iota
	// StateOpen rejects every request until the reopen deadline passes.
	StateOpen
	// StateHalfOpen admits a bounded number of probe requests.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen rejects a request while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects a request when the half-open probe quota
	// is already spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type settings struct {
	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	probeQuota       int
	onStateChange    func(name string, from, to State)
	isFailure        func(error) bool
}

// Option adjusts a breaker at construction time.
type Option func(*settings)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive half-open successes close
// the circuit.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.successThreshold = n
		}
	}
}

// WithTimeout sets how long the circuit stays open before probing.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxHalfOpenRequests sets the probe quota in half-open state.
func WithMaxHalfOpenRequests(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.probeQuota = n
		}
	}
}

// WithOnStateChange registers a transition callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onStateChange = fn }
}

// WithIsFailure sets the predicate deciding which errors count against the
// circuit. When nil, every non-nil error counts.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) { s.isFailure = fn }
}

// Counts exposes the breaker's request bookkeeping.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards a single downstream dependency.
type CircuitBreaker struct {
	settings settings

	mu       sync.Mutex
	state    State
	counts   Counts
	reopenAt time.Time
	probes   int
}

// New creates a closed breaker. Defaults: open after 5 consecutive
// failures, stay open 30s, one probe at a time, two probe successes to
// close again.
func New(name string, opts ...Option) *CircuitBreaker {
	s := settings{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
		probeQuota:       1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &CircuitBreaker{settings: s}
}

// Execute admits the call if the state machine allows it and feeds the
// outcome back in. The downstream error is returned as-is.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteWithFallback routes breaker rejections to the fallback. Errors
// from the downstream itself are not rerouted.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Now().Before(cb.reopenAt) {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	default: // StateHalfOpen
		if cb.probes >= cb.settings.probeQuota {
			return ErrTooManyRequests
		}
		cb.probes++
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++

	failed := err != nil
	if failed && cb.settings.isFailure != nil {
		failed = cb.settings.isFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.settings.successThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	// A failed probe reopens immediately; in closed state the streak has
	// to reach the threshold first.
	if cb.state == StateHalfOpen ||
		(cb.state == StateClosed && cb.counts.ConsecutiveFailures >= cb.settings.failureThreshold) {
		cb.reopenAt = time.Now().Add(cb.settings.timeout)
		cb.transition(StateOpen)
	}
}

// transition must be called with the mutex held.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.probes = 0

	if cb.settings.onStateChange != nil {
		cb.settings.onStateChange(cb.settings.name, from, to)
	}
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the request bookkeeping.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset forces the breaker back to a pristine closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.probes = 0
	cb.reopenAt = time.Time{}
}

// Name returns the breaker's identifier.
func (cb *CircuitBreaker) Name() string {
	return cb.settings.name
}

// IsOpen reports whether the breaker currently rejects everything.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}

// NotifierBreaker returns a breaker tuned for the secondary notification
// sink: it trips after three failures and recovers on a single probe
// success, so a flapping sink costs the projection pipeline as little as
// possible.
func NotifierBreaker(name string, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		name,
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(15*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}
