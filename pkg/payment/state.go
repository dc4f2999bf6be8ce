package payment

import (
	"bytes"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"xchain-swap/pkg/swap"
)

// PaymentRecord is the persisted form of a Payment
type PaymentRecord struct {
	ID             uint32         `json:"id"`
	Customer       common.Address `json:"customer"`
	Merchant       common.Address `json:"merchant"`
	CustomerToken  string         `json:"customer_token"`
	CustomerChain  string         `json:"customer_chain"`
	MerchantAsset  string         `json:"merchant_asset"`
	MerchantChain  string         `json:"merchant_chain"`
	InputAmount    string         `json:"input_amount"`
	ExpectedOutput string         `json:"expected_output"`
	SwapID         *uint32        `json:"swap_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Deadline       time.Time      `json:"deadline"`
}

// State is a point in time copy of the overlay
type State struct {
	Merchants []Merchant      `json:"merchants"`
	Payments  []PaymentRecord `json:"payments"`
}

func sortMerchants(ms []Merchant) {
	sort.Slice(ms, func(i, j int) bool {
		return bytes.Compare(ms[i].Address[:], ms[j].Address[:]) < 0
	})
}

// Snapshot copies merchants and payments
func (o *Overlay) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// SnapshotWithEngine captures the engine and the overlay in one critical
// section. Payments only link swaps while the overlay lock is held, so every
// linked swap is part of the returned engine state.
func (o *Overlay) SnapshotWithEngine() (swap.State, State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.engine.Snapshot(), o.snapshotLocked()
}

func (o *Overlay) snapshotLocked() State {
	st := State{
		Merchants: make([]Merchant, 0, len(o.merchants)),
		Payments:  make([]PaymentRecord, len(o.payments)),
	}
	for _, m := range o.merchants {
		st.Merchants = append(st.Merchants, *m)
	}
	sortMerchants(st.Merchants)

	for i, p := range o.payments {
		cp := p.clone()
		st.Payments[i] = PaymentRecord{
			ID:             cp.ID,
			Customer:       cp.Customer,
			Merchant:       cp.Merchant,
			CustomerToken:  cp.CustomerToken,
			CustomerChain:  cp.CustomerChain,
			MerchantAsset:  cp.MerchantAsset,
			MerchantChain:  cp.MerchantChain,
			InputAmount:    cp.InputAmount.Dec(),
			ExpectedOutput: cp.ExpectedOutput.Dec(),
			SwapID:         cp.SwapID,
			CreatedAt:      cp.CreatedAt,
			Deadline:       cp.Deadline,
		}
	}
	return st
}

// Restore replaces the overlay state. Linked swaps must already exist in the
// engine, so restore the engine first.
func (o *Overlay) Restore(st State) error {
	merchants, payments, err := st.build(func(id uint32) bool {
		_, ok := o.engine.Status(id)
		return ok
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.merchants = merchants
	o.payments = payments
	return nil
}

// RestoreWithEngine replaces engine and overlay state together. Both
// snapshots are checked before either is applied, so a bad file leaves
// everything as it was.
func (o *Overlay) RestoreWithEngine(es swap.State, st State) error {
	if err := es.Validate(); err != nil {
		return errors.Wrap(err, "swaps")
	}
	merchants, payments, err := st.build(func(id uint32) bool {
		return int(id) < len(es.Swaps)
	})
	if err != nil {
		return errors.Wrap(err, "payments")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.engine.Restore(es); err != nil {
		return errors.Wrap(err, "swaps")
	}
	o.merchants = merchants
	o.payments = payments
	return nil
}

func (st State) build(swapExists func(uint32) bool) (map[common.Address]*Merchant, []*Payment, error) {
	merchants := make(map[common.Address]*Merchant, len(st.Merchants))
	for i := range st.Merchants {
		m := st.Merchants[i]
		merchants[m.Address] = &m
	}

	payments := make([]*Payment, len(st.Payments))
	for i, r := range st.Payments {
		if r.ID != uint32(i) {
			return nil, nil, errors.Errorf("payment record %d carries id %d", i, r.ID)
		}
		in, err := uint256.FromDecimal(r.InputAmount)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "payment %d input amount", i)
		}
		out, err := uint256.FromDecimal(r.ExpectedOutput)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "payment %d expected output", i)
		}
		if r.SwapID != nil && !swapExists(*r.SwapID) {
			return nil, nil, errors.Errorf("payment %d links unknown swap %d", i, *r.SwapID)
		}
		payments[i] = &Payment{
			ID:             r.ID,
			Customer:       r.Customer,
			Merchant:       r.Merchant,
			CustomerToken:  r.CustomerToken,
			CustomerChain:  r.CustomerChain,
			MerchantAsset:  r.MerchantAsset,
			MerchantChain:  r.MerchantChain,
			InputAmount:    in,
			ExpectedOutput: out,
			SwapID:         r.SwapID,
			CreatedAt:      r.CreatedAt,
			Deadline:       r.Deadline,
		}
	}
	return merchants, payments, nil
}
