package payment

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"xchain-swap/pkg/swap"
)

var (
	// ErrMerchantNotFound is returned when paying an unregistered address
	ErrMerchantNotFound = errors.New("merchant not registered")
	// ErrUnsupportedRoute is returned when the customer asset or chain cannot be converted
	ErrUnsupportedRoute = errors.New("unsupported payment route")
	// ErrInvalidAmount is returned for zero or oversized payment amounts
	ErrInvalidAmount = errors.New("invalid payment amount")
)

// PaymentTimeoutHours is the timeout window of swaps opened for payments
const PaymentTimeoutHours = 1

// Merchant holds a merchant's settlement preferences
type Merchant struct {
	Address         common.Address `json:"address"`
	PreferredAsset  string         `json:"preferred_asset"`
	SettlementChain string         `json:"settlement_chain"`
	RegisteredAt    time.Time      `json:"registered_at"`
}

// Status is the settlement state of a payment. Payments backed by a swap
// report the swap's status name.
type Status string

const (
	StatusSettled    Status = "Settled"
	StatusInitiated  Status = "Initiated"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
	StatusRefunded   Status = "Refunded"
)

func statusOf(st swap.Status) Status {
	return Status(st.String())
}

// Final reports whether the payment can no longer change
func (s Status) Final() bool {
	switch s {
	case StatusSettled, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Payment links a customer payment to the swap converting it, if any
type Payment struct {
	ID             uint32
	Customer       common.Address
	Merchant       common.Address
	CustomerToken  string
	CustomerChain  string
	MerchantAsset  string
	MerchantChain  string
	InputAmount    *uint256.Int
	ExpectedOutput *uint256.Int
	// SwapID is nil for direct payments
	SwapID    *uint32
	CreatedAt time.Time
	Deadline  time.Time
}

// Direct reports whether the payment settled without a conversion
func (p *Payment) Direct() bool {
	return p.SwapID == nil
}

func (p *Payment) clone() Payment {
	cp := *p
	cp.InputAmount = new(uint256.Int).Set(p.InputAmount)
	cp.ExpectedOutput = new(uint256.Int).Set(p.ExpectedOutput)
	if p.SwapID != nil {
		id := *p.SwapID
		cp.SwapID = &id
	}
	return cp
}

// Info is a payment together with its current status
type Info struct {
	Payment
	Status Status
}

// Request describes a customer payment
type Request struct {
	Customer      common.Address
	Merchant      common.Address
	CustomerToken string
	CustomerChain string
	Amount        *uint256.Int
}
