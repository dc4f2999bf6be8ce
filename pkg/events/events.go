package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names an observable event
type Kind string

const (
	KindSwapInitiated      Kind = "SwapInitiated"
	KindSwapStepExecuted   Kind = "SwapStepExecuted"
	KindSwapCompleted      Kind = "SwapCompleted"
	KindSwapCancelled      Kind = "SwapCancelled"
	KindMerchantRegistered Kind = "MerchantRegistered"
	KindPaymentInitiated   Kind = "PaymentInitiated"
)

const (
	PhaseDispatched = "dispatched"
	PhaseConfirmed  = "confirmed"
)

// Event is the envelope handed to emitters. Payload is one of the typed
// structs below.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New wraps a payload into an event with a fresh id
func New(kind Kind, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: at,
		Payload:   payload,
	}
}

// SwapInitiated carries the full route so an indexer can rebuild a swap
type SwapInitiated struct {
	SwapID         uint32    `json:"swap_id"`
	Initiator      string    `json:"initiator"`
	SourceToken    string    `json:"source_token"`
	TargetToken    string    `json:"target_token"`
	SourceChain    string    `json:"source_chain"`
	TargetChain    string    `json:"target_chain"`
	InputAmount    string    `json:"input_amount"`
	ExpectedOutput string    `json:"expected_output"`
	RouteSteps     uint32    `json:"route_steps"`
	Deadline       time.Time `json:"deadline"`
}

// SwapStepExecuted is emitted when a step request is dispatched (PhaseDispatched)
// and again when its response is applied (PhaseConfirmed)
type SwapStepExecuted struct {
	SwapID     uint32 `json:"swap_id"`
	Phase      string `json:"phase"`
	Step       uint32 `json:"step"`
	TotalSteps uint32 `json:"total_steps"`
	Success    bool   `json:"success"`
	Nonce      uint64 `json:"nonce,omitempty"`
}

// SwapCompleted is emitted once a swap reaches Completed or Failed
type SwapCompleted struct {
	SwapID      uint32 `json:"swap_id"`
	Initiator   string `json:"initiator"`
	FinalStatus string `json:"final_status"`
	Reason      string `json:"reason,omitempty"`
}

type SwapCancelled struct {
	SwapID    uint32 `json:"swap_id"`
	Initiator string `json:"initiator"`
}

type MerchantRegistered struct {
	Merchant        string `json:"merchant"`
	PreferredAsset  string `json:"preferred_asset"`
	SettlementChain string `json:"settlement_chain"`
}

type PaymentInitiated struct {
	PaymentID      uint32    `json:"payment_id"`
	Customer       string    `json:"customer"`
	Merchant       string    `json:"merchant"`
	CustomerToken  string    `json:"customer_token"`
	CustomerChain  string    `json:"customer_chain"`
	MerchantAsset  string    `json:"merchant_asset"`
	MerchantChain  string    `json:"merchant_chain"`
	InputAmount    string    `json:"input_amount"`
	ExpectedOutput string    `json:"expected_output"`
	Deadline       time.Time `json:"deadline"`
	SwapID         *uint32   `json:"swap_id,omitempty"`
}

// Emitter receives events. Implementations must not call back into the
// component that emitted the event.
type Emitter interface {
	Emit(Event)
}

// Discard drops every event
type Discard struct{}

func (Discard) Emit(Event) {}

// Multi fans an event out to several emitters in order
type Multi []Emitter

func (m Multi) Emit(e Event) {
	for _, em := range m {
		em.Emit(e)
	}
}

// Recorder keeps emitted events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind filters recorded events by kind
func (r *Recorder) OfKind(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the recorder
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
