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
	Closed State = iota
	Open
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
	}
	return "unknown"
}

const (
	defaultWindow = time.Minute
	windowBuckets = 6
)

type bucket struct {
	start  time.Time
	ok     int
	failed int
}

// Breaker guards one carrier API. Outcomes are counted over a rolling window split
// into buckets; once the window holds at least minRequests outcomes and the failure
// share reaches failureRatio the breaker opens for openFor. After that a single
// probe decides between closing and reopening.
type Breaker struct {
	mu      sync.Mutex
	state   State
	probing bool
	opened  time.Time
	buckets [windowBuckets]bucket

	minRequests  int
	failureRatio float64
	openFor      time.Duration
	window       time.Duration

	target string
	logger zerolog.Logger
	now    func() time.Time
}

// NewBreaker builds a closed breaker with a one-minute counting window.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		window:       defaultWindow,
		target:       "default",
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

// WithTarget names the guarded carrier in metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := strings.TrimSpace(target); t != "" {
		b.target = t
	}
	b.publishStateLocked()
	return b
}

// WithLogger sets the logger used when no request logger is on the context.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// WithWindow changes the span over which failures are counted.
func (b *Breaker) WithWindow(window time.Duration) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if window >= windowBuckets*time.Millisecond {
		b.window = window
		b.buckets = [windowBuckets]bucket{}
	}
	return b
}

// Allow reports whether a request may go out.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.opened) < b.openFor {
			return false
		}
		b.transitionLocked(ctx, HalfOpen)
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Report records the outcome of a request that Allow admitted.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	cur := b.currentBucketLocked()
	if success {
		cur.ok++
	} else {
		cur.failed++
	}
	ok, failed := b.countsLocked()
	total := ok + failed
	if total >= b.minRequests && float64(failed)/float64(total) >= b.failureRatio {
		b.transitionLocked(ctx, Open)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Target returns the carrier label.
func (b *Breaker) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target
}

func (b *Breaker) bucketSpan() time.Duration {
	return b.window / windowBuckets
}

func (b *Breaker) currentBucketLocked() *bucket {
	span := b.bucketSpan()
	start := b.now().Truncate(span)
	cur := &b.buckets[int(start.UnixNano()/int64(span))%windowBuckets]
	if !cur.start.Equal(start) {
		*cur = bucket{start: start}
	}
	return cur
}

func (b *Breaker) countsLocked() (ok, failed int) {
	oldest := b.now().Add(-b.window)
	for _, bk := range b.buckets {
		if bk.start.After(oldest) {
			ok += bk.ok
			failed += bk.failed
		}
	}
	return ok, failed
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.probing = false
	b.buckets = [windowBuckets]bucket{}
	if next == Open {
		b.opened = b.now()
	}
	b.publishStateLocked()

	BreakerTransitions.WithLabelValues(b.target, prev.String(), next.String()).Inc()
	if next == Open {
		BreakerOpenedTotal.WithLabelValues(b.target).Inc()
	}
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &b.logger
	}
	evt := logger.Warn()
	if next == Closed {
		evt = logger.Info()
	}
	evt = evt.Str("target", b.target).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishStateLocked() {
	BreakerState.WithLabelValues(b.target).Set(float64(b.state))
}
