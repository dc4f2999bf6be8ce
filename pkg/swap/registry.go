package swap

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/events"
	"xchain-swap/pkg/metrics"
	"xchain-swap/pkg/route"
)

// validate checks a creation request without touching engine state
func (r *CreateRequest) validate() error {
	rt := r.Route
	if rt.SourceToken == "" || rt.TargetToken == "" {
		return rejected("source and target token are required")
	}
	if rt.SourceChain == "" || rt.TargetChain == "" {
		return rejected("source and target chain are required")
	}
	if !route.IsRouteSupported(rt.SourceToken, rt.TargetToken, rt.SourceChain, rt.TargetChain) {
		return rejected("route %s/%s -> %s/%s is not supported",
			rt.SourceToken, rt.SourceChain, rt.TargetToken, rt.TargetChain)
	}
	if r.InputAmount == nil || r.InputAmount.IsZero() {
		return rejected("input amount must be greater than 0")
	}
	if r.ExpectedOutput == nil || r.ExpectedOutput.IsZero() {
		return rejected("expected output must be greater than 0")
	}
	if r.InputAmount.BitLen() > MaxAmountBits || r.ExpectedOutput.BitLen() > MaxAmountBits {
		return rejected("amounts must fit in %d bits", MaxAmountBits)
	}
	if r.Steps == 0 || r.Steps > MaxRouteSteps {
		return rejected("route steps must be between 1 and %d, got %d", MaxRouteSteps, r.Steps)
	}
	if r.TimeoutHours < MinTimeoutHours || r.TimeoutHours > MaxTimeoutHours {
		return rejected("timeout must be between %d and %d hours, got %d", MinTimeoutHours, MaxTimeoutHours, r.TimeoutHours)
	}
	if n := len(rt.Via); n != 0 && n != int(r.Steps)-1 {
		return rejected("route lists %d intermediate hops for %d steps", n, r.Steps)
	}
	for i, hop := range rt.Via {
		if !route.IsSupportedToken(hop.Token) || !route.IsSupportedChain(hop.Chain) {
			return rejected("intermediate hop %d (%s/%s) is not supported", i, hop.Token, hop.Chain)
		}
	}
	return nil
}

// Create validates and stores a new swap in Initiated state. Either the full
// record is written or nothing is.
func (e *Engine) Create(req CreateRequest) (uint32, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.swaps) >= math.MaxUint32 {
		return 0, rejected("swap id space exhausted")
	}

	now := e.now()
	s := &Swap{
		ID:             uint32(len(e.swaps)),
		Initiator:      req.Initiator,
		Route:          req.Route,
		InputAmount:    new(uint256.Int).Set(req.InputAmount),
		ExpectedOutput: new(uint256.Int).Set(req.ExpectedOutput),
		Steps:          req.Steps,
		CurrentStep:    0,
		Status:         StatusInitiated,
		Deadline:       now.Add(time.Duration(req.TimeoutHours) * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Route.Via != nil {
		s.Route.Via = append([]route.Hop(nil), req.Route.Via...)
	}
	e.swaps = append(e.swaps, s)

	metrics.SwapsCreated.Inc()
	e.logger.WithFields(logrus.Fields{
		"swap_id":   s.ID,
		"initiator": s.Initiator.Hex(),
		"route":     s.Route.SourceToken + "/" + s.Route.SourceChain + " -> " + s.Route.TargetToken + "/" + s.Route.TargetChain,
		"steps":     s.Steps,
	}).Info("swap created")

	e.emit(events.KindSwapInitiated, events.SwapInitiated{
		SwapID:         s.ID,
		Initiator:      s.Initiator.Hex(),
		SourceToken:    s.Route.SourceToken,
		TargetToken:    s.Route.TargetToken,
		SourceChain:    s.Route.SourceChain,
		TargetChain:    s.Route.TargetChain,
		InputAmount:    s.InputAmount.Dec(),
		ExpectedOutput: s.ExpectedOutput.Dec(),
		RouteSteps:     s.Steps,
		Deadline:       s.Deadline,
	})

	return s.ID, nil
}

// Count returns the number of swaps ever created
func (e *Engine) Count() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(len(e.swaps))
}

// Get returns a copy of a swap
func (e *Engine) Get(id uint32) (Swap, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return Swap{}, false
	}
	return s.clone(), true
}

// List returns copies of all swaps in id order
func (e *Engine) List() []Swap {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Swap, len(e.swaps))
	for i, s := range e.swaps {
		out[i] = s.clone()
	}
	return out
}

// Status returns the status of a swap
func (e *Engine) Status(id uint32) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return 0, false
	}
	return s.Status, true
}

// Progress returns the current step, the total step count and the status
func (e *Engine) Progress(id uint32) (Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return Progress{}, false
	}
	return Progress{CurrentStep: s.CurrentStep, TotalSteps: s.Steps, Status: s.Status}, true
}

// Route returns the route and amounts of a swap
func (e *Engine) Route(id uint32) (RouteDetails, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return RouteDetails{}, false
	}
	cp := s.clone()
	return RouteDetails{
		Route:          cp.Route,
		InputAmount:    cp.InputAmount,
		ExpectedOutput: cp.ExpectedOutput,
		Steps:          cp.Steps,
	}, true
}

// IsTimedOut reports whether the swap's deadline has passed. Unknown swaps
// are never timed out.
func (e *Engine) IsTimedOut(id uint32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return false
	}
	return e.now().After(s.Deadline)
}

// Cancel refunds a swap on behalf of its initiator. Completed swaps cannot be
// cancelled and terminal states never change.
func (e *Engine) Cancel(id uint32, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return ErrSwapNotFound
	}
	if caller != s.Initiator {
		return ErrUnauthorized
	}
	switch s.Status {
	case StatusCompleted:
		return ErrSwapCompleted
	case StatusFailed, StatusRefunded:
		return ErrSwapTerminal
	}

	e.corr.dropSwap(id)
	e.setStatus(s, StatusRefunded)
	e.emit(events.KindSwapCancelled, events.SwapCancelled{
		SwapID:    id,
		Initiator: s.Initiator.Hex(),
	})
	return nil
}
