package swap

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"xchain-swap/pkg/metrics"
)

// SwapRecord is the persisted form of a Swap. Amounts are decimal strings so
// the file stays readable and exact.
type SwapRecord struct {
	ID             uint32         `json:"id"`
	Initiator      common.Address `json:"initiator"`
	Route          Route          `json:"route"`
	InputAmount    string         `json:"input_amount"`
	ExpectedOutput string         `json:"expected_output"`
	Steps          uint32         `json:"steps"`
	CurrentStep    uint32         `json:"current_step"`
	Status         Status         `json:"status"`
	Deadline       time.Time      `json:"deadline"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	FailureReason  string         `json:"failure_reason,omitempty"`
}

// State is a point in time copy of everything the engine owns
type State struct {
	Swaps   []SwapRecord     `json:"swaps"`
	Nonce   uint64           `json:"nonce"`
	Pending []PendingRequest `json:"pending"`
}

// Snapshot copies the engine state
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := State{
		Swaps:   make([]SwapRecord, len(e.swaps)),
		Nonce:   e.corr.nonce,
		Pending: e.corr.pending(),
	}
	for i, s := range e.swaps {
		st.Swaps[i] = SwapRecord{
			ID:             s.ID,
			Initiator:      s.Initiator,
			Route:          s.clone().Route,
			InputAmount:    s.InputAmount.Dec(),
			ExpectedOutput: s.ExpectedOutput.Dec(),
			Steps:          s.Steps,
			CurrentStep:    s.CurrentStep,
			Status:         s.Status,
			Deadline:       s.Deadline,
			CreatedAt:      s.CreatedAt,
			UpdatedAt:      s.UpdatedAt,
			FailureReason:  s.FailureReason,
		}
	}
	return st
}

// Validate checks a snapshot without applying it
func (st State) Validate() error {
	_, _, err := st.build()
	return err
}

// Restore replaces the engine state with st. The snapshot is checked as a
// whole first; on error the engine is left untouched.
func (e *Engine) Restore(st State) error {
	swaps, corr, err := st.build()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.swaps = swaps
	e.corr = corr
	metrics.PendingRequests.Set(float64(len(corr.byNonce)))
	return nil
}

func (st State) build() ([]*Swap, *correlator, error) {
	swaps := make([]*Swap, len(st.Swaps))
	for i, r := range st.Swaps {
		s, err := r.toSwap()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "swap record %d", i)
		}
		if s.ID != uint32(i) {
			return nil, nil, errors.Errorf("swap record %d carries id %d", i, s.ID)
		}
		swaps[i] = s
	}

	corr := newCorrelator()
	corr.nonce = st.Nonce
	for i := range st.Pending {
		p := st.Pending[i]
		if p.Nonce == 0 || p.Nonce > st.Nonce {
			return nil, nil, errors.Errorf("pending nonce %d outside allocated range", p.Nonce)
		}
		if int(p.SwapID) >= len(swaps) {
			return nil, nil, errors.Errorf("pending nonce %d references unknown swap %d", p.Nonce, p.SwapID)
		}
		s := swaps[p.SwapID]
		if s.Status != StatusInProgress || p.Step != s.CurrentStep {
			return nil, nil, errors.Errorf("pending nonce %d does not match swap %d state", p.Nonce, p.SwapID)
		}
		if _, dup := corr.bySwap[p.SwapID]; dup {
			return nil, nil, errors.Errorf("swap %d has more than one pending request", p.SwapID)
		}
		// not track: building must not touch the pending gauge
		corr.byNonce[p.Nonce] = &p
		corr.bySwap[p.SwapID] = p.Nonce
	}
	return swaps, corr, nil
}

func (r SwapRecord) toSwap() (*Swap, error) {
	in, err := uint256.FromDecimal(r.InputAmount)
	if err != nil {
		return nil, errors.Wrap(err, "input amount")
	}
	out, err := uint256.FromDecimal(r.ExpectedOutput)
	if err != nil {
		return nil, errors.Wrap(err, "expected output")
	}
	if r.Steps == 0 || r.Steps > MaxRouteSteps {
		return nil, errors.Errorf("route steps %d out of range", r.Steps)
	}
	if r.CurrentStep > r.Steps {
		return nil, errors.Errorf("current step %d beyond %d steps", r.CurrentStep, r.Steps)
	}
	if (r.Status == StatusCompleted) != (r.CurrentStep == r.Steps) {
		return nil, errors.Errorf("status %s inconsistent with step %d of %d", r.Status, r.CurrentStep, r.Steps)
	}
	if n := len(r.Route.Via); n != 0 && n != int(r.Steps)-1 {
		return nil, errors.Errorf("route lists %d hops for %d steps", n, r.Steps)
	}

	return &Swap{
		ID:             r.ID,
		Initiator:      r.Initiator,
		Route:          r.Route,
		InputAmount:    in,
		ExpectedOutput: out,
		Steps:          r.Steps,
		CurrentStep:    r.CurrentStep,
		Status:         r.Status,
		Deadline:       r.Deadline,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		FailureReason:  r.FailureReason,
	}, nil
}
