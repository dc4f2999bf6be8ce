package swap

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"xchain-swap/pkg/route"
)

// Status is the lifecycle state of a swap
type Status uint8

const (
	StatusInitiated Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusRefunded
)

const (
	// MaxRouteSteps is the longest route a swap may take
	MaxRouteSteps = 10
	// MinTimeoutHours and MaxTimeoutHours bound the caller supplied timeout window
	MinTimeoutHours = 1
	MaxTimeoutHours = 168
	// MaxAmountBits bounds amounts to unsigned 128-bit values
	MaxAmountBits = 128
)

func (s Status) String() string {
	switch s {
	case StatusInitiated:
		return "Initiated"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusRefunded:
		return "Refunded"
	default:
		return "Unknown"
	}
}

// ParseStatus is the inverse of Status.String
func ParseStatus(s string) (Status, error) {
	for st := StatusInitiated; st <= StatusRefunded; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, errors.Errorf("unknown swap status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Active reports whether the swap may still advance
func (s Status) Active() bool {
	return s == StatusInitiated || s == StatusInProgress
}

// Terminal reports whether the swap can no longer change
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

// Route is the requested conversion. Via optionally lists the intermediate
// hops; when set it holds exactly Steps-1 entries.
type Route struct {
	SourceToken string      `json:"source_token"`
	TargetToken string      `json:"target_token"`
	SourceChain string      `json:"source_chain"`
	TargetChain string      `json:"target_chain"`
	Via         []route.Hop `json:"via,omitempty"`
}

// Swap is the canonical record of one multi-step conversion
type Swap struct {
	ID             uint32
	Initiator      common.Address
	Route          Route
	InputAmount    *uint256.Int
	ExpectedOutput *uint256.Int
	Steps          uint32
	CurrentStep    uint32
	Status         Status
	Deadline       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FailureReason  string
}

// clone returns a deep copy safe to hand out of the engine lock
func (s *Swap) clone() Swap {
	cp := *s
	cp.InputAmount = new(uint256.Int).Set(s.InputAmount)
	cp.ExpectedOutput = new(uint256.Int).Set(s.ExpectedOutput)
	if s.Route.Via != nil {
		cp.Route.Via = append([]route.Hop(nil), s.Route.Via...)
	}
	return cp
}

// hops expands the route into Steps+1 positions
func (s *Swap) hops() []route.Hop {
	src := route.Hop{Chain: s.Route.SourceChain, Token: s.Route.SourceToken}
	dst := route.Hop{Chain: s.Route.TargetChain, Token: s.Route.TargetToken}

	if len(s.Route.Via) == 0 {
		out := make([]route.Hop, 0, 2)
		return append(out, src, dst)
	}

	out := make([]route.Hop, 0, len(s.Route.Via)+2)
	out = append(out, src)
	out = append(out, s.Route.Via...)
	return append(out, dst)
}

// stepLeg returns the (from, to) hop pair and input amount of a step. Routes
// without explicit hops send the full conversion on every step.
func (s *Swap) stepLeg(step uint32) (from, to route.Hop, amount *uint256.Int) {
	hops := s.hops()
	amount = new(uint256.Int).Set(s.InputAmount)

	if len(hops) == 2 {
		return hops[0], hops[1], amount
	}

	for i := uint32(0); i < step; i++ {
		amount = route.Quote(hops[i].Token, hops[i+1].Token, amount)
	}
	return hops[step], hops[step+1], amount
}

// Progress is the read model returned by Engine.Progress
type Progress struct {
	CurrentStep uint32 `json:"current_step"`
	TotalSteps  uint32 `json:"total_steps"`
	Status      Status `json:"status"`
}

// RouteDetails is the read model returned by Engine.Route
type RouteDetails struct {
	Route          Route        `json:"route"`
	InputAmount    *uint256.Int `json:"input_amount"`
	ExpectedOutput *uint256.Int `json:"expected_output"`
	Steps          uint32       `json:"steps"`
}

// PendingRequest correlates an in-flight step request with its swap
type PendingRequest struct {
	Nonce        uint64      `json:"nonce"`
	SwapID       uint32      `json:"swap_id"`
	Step         uint32      `json:"step"`
	Digest       common.Hash `json:"digest"`
	DispatchedAt time.Time   `json:"dispatched_at"`
}

// CreateRequest holds the caller supplied fields of a new swap
type CreateRequest struct {
	Initiator      common.Address
	Route          Route
	InputAmount    *uint256.Int
	ExpectedOutput *uint256.Int
	Steps          uint32
	TimeoutHours   uint32
}
