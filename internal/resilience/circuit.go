package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// gauge encodes the state for the breaker_state metric.
func (s State) gauge() float64 {
	switch s {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}

// Breaker guards one downstream dependency. It trips when the failure ratio
// over the most recent outcomes reaches the threshold.
type Breaker struct {
	mu sync.Mutex

	state    State
	openedAt time.Time
	probing  bool

	// ring of the last len(window) outcomes, true meaning failure
	window   []bool
	next     int
	observed int
	failed   int

	minRequests  int
	failureRatio float64
	openFor      time.Duration

	target string
	logger zerolog.Logger
	now    func() time.Time
}

// NewBreaker returns a closed breaker. It evaluates the failure ratio once
// minRequests outcomes are known and keeps the last 2*minRequests of them.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	minRequests = max(minRequests, 1)
	switch {
	case failureRatio <= 0:
		failureRatio = 0.5
	case failureRatio > 1:
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		window:       make([]bool, minRequests*2),
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

// Allow reports whether a request may proceed. After the cool-off an open
// breaker admits exactly one probe and rejects the rest until it reports.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.transition(ctx, HalfOpen)
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Report records the outcome of a request admitted by Allow.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	b.record(!success)
	if b.observed >= b.minRequests && float64(b.failed)/float64(b.observed) >= b.failureRatio {
		b.transition(ctx, Open)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// WithTarget names the guarded dependency in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	BreakerState.WithLabelValues(b.label()).Set(b.state.gauge())
	return b
}

// WithLogger sets the logger used when the request context carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

func (b *Breaker) record(failed bool) {
	if b.observed == len(b.window) {
		if b.window[b.next] {
			b.failed--
		}
	} else {
		b.observed++
	}
	b.window[b.next] = failed
	if failed {
		b.failed++
	}
	b.next = (b.next + 1) % len(b.window)
}

func (b *Breaker) reset() {
	clear(b.window)
	b.next, b.observed, b.failed = 0, 0, 0
}

func (b *Breaker) transition(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.reset()
	if to == Open {
		b.openedAt = b.now()
	}

	label := b.label()
	BreakerState.WithLabelValues(label).Set(to.gauge())
	BreakerTransitions.WithLabelValues(label, from.String(), to.String()).Inc()
	if to == Open {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}

	logger := b.loggerFor(ctx)
	evt := logger.Warn()
	if to == Closed {
		evt = logger.Info()
	}
	evt = evt.Str("target", label).Str("from_state", from.String()).Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &b.logger
}
