package swap

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/events"
	"xchain-swap/pkg/metrics"
	"xchain-swap/pkg/transport"
)

// DefaultRequestTimeout is the relay timeout stamped on every step request
const DefaultRequestTimeout = time.Hour

// Engine owns the swap registry, the nonce correlation table and the state
// machine driver. Every exported method is one atomic unit of work: the
// engine lock is held for its whole duration so operations never interleave.
type Engine struct {
	mu sync.Mutex

	// swaps is index-addressed: a swap's id is its position
	swaps []*Swap
	corr  *correlator

	dispatcher     transport.Dispatcher
	executor       StepExecutor
	emitter        events.Emitter
	logger         *logrus.Logger
	now            func() time.Time
	requestTimeout time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEmitter sets the event sink
func WithEmitter(em events.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRequestTimeout sets the timeout stamped on outbound requests
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) { e.requestTimeout = d }
}

// WithStepExecutor sets the executor used for inbound step requests
func WithStepExecutor(x StepExecutor) Option {
	return func(e *Engine) { e.executor = x }
}

// NewEngine creates an empty engine dispatching through d
func NewEngine(d transport.Dispatcher, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		corr:           newCorrelator(),
		dispatcher:     d,
		emitter:        events.Discard{},
		logger:         discard,
		now:            time.Now,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// lookup must be called with the lock held
func (e *Engine) lookup(id uint32) (*Swap, bool) {
	if int(id) >= len(e.swaps) {
		return nil, false
	}
	return e.swaps[id], true
}

func (e *Engine) emit(kind events.Kind, payload any) {
	e.emitter.Emit(events.New(kind, e.now(), payload))
}

// setStatus records a transition; callers guarantee it is legal
func (e *Engine) setStatus(s *Swap, st Status) {
	prev := s.Status
	s.Status = st
	s.UpdatedAt = e.now()
	metrics.SwapTransitions.WithLabelValues(st.String()).Inc()

	e.logger.WithFields(logrus.Fields{
		"swap_id": s.ID,
		"from":    prev.String(),
		"to":      st.String(),
		"step":    s.CurrentStep,
	}).Info("swap status changed")
}

// fail moves an active swap to Failed and drops its in-flight request so a
// late response can no longer touch it
func (e *Engine) fail(s *Swap, reason string) {
	e.corr.dropSwap(s.ID)
	s.FailureReason = reason
	e.setStatus(s, StatusFailed)
	e.emit(events.KindSwapCompleted, events.SwapCompleted{
		SwapID:      s.ID,
		Initiator:   s.Initiator.Hex(),
		FinalStatus: StatusFailed.String(),
		Reason:      reason,
	})
}

func (e *Engine) complete(s *Swap) {
	e.setStatus(s, StatusCompleted)
	e.emit(events.KindSwapCompleted, events.SwapCompleted{
		SwapID:      s.ID,
		Initiator:   s.Initiator.Hex(),
		FinalStatus: StatusCompleted.String(),
	})
}
