package payment

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/events"
	"xchain-swap/pkg/metrics"
	"xchain-swap/pkg/route"
	"xchain-swap/pkg/swap"
)

// Overlay implements merchant payments on top of the swap engine. It keeps
// its own lock and only ever calls into the engine, never the other way.
type Overlay struct {
	mu sync.Mutex

	engine       *swap.Engine
	quoter       route.Quoter
	merchants    map[common.Address]*Merchant
	payments     []*Payment
	autoDispatch bool

	emitter events.Emitter
	logger  *logrus.Logger
	now     func() time.Time
}

// Option configures an Overlay
type Option func(*Overlay)

// WithQuoter replaces the fixed rate quoter
func WithQuoter(q route.Quoter) Option {
	return func(o *Overlay) { o.quoter = q }
}

// WithAutoDispatch dispatches the first step of a payment swap as soon as it
// is created
func WithAutoDispatch(enabled bool) Option {
	return func(o *Overlay) { o.autoDispatch = enabled }
}

func WithEmitter(em events.Emitter) Option {
	return func(o *Overlay) { o.emitter = em }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(o *Overlay) { o.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(o *Overlay) { o.now = now }
}

// New creates an overlay creating its swaps on engine
func New(engine *swap.Engine, opts ...Option) *Overlay {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	o := &Overlay{
		engine:    engine,
		quoter:    route.FixedRate{},
		merchants: make(map[common.Address]*Merchant),
		emitter:   events.Discard{},
		logger:    discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterMerchant stores (or replaces) the settlement preferences of addr
func (o *Overlay) RegisterMerchant(addr common.Address, asset, chain string) error {
	if !route.IsSupportedToken(asset) {
		return errors.Wrapf(swap.ErrRejectedRoute, "unsupported settlement asset %q", asset)
	}
	if !route.IsSupportedChain(chain) {
		return errors.Wrapf(swap.ErrRejectedRoute, "unsupported settlement chain %q", chain)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	o.merchants[addr] = &Merchant{
		Address:         addr,
		PreferredAsset:  asset,
		SettlementChain: chain,
		RegisteredAt:    now,
	}

	metrics.MerchantsRegistered.Inc()
	o.logger.WithFields(logrus.Fields{
		"merchant": addr.Hex(),
		"asset":    asset,
		"chain":    chain,
	}).Info("merchant registered")

	o.emitter.Emit(events.New(events.KindMerchantRegistered, now, events.MerchantRegistered{
		Merchant:        addr.Hex(),
		PreferredAsset:  asset,
		SettlementChain: chain,
	}))
	return nil
}

// Merchant returns the preferences of a registered merchant
func (o *Overlay) Merchant(addr common.Address) (Merchant, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, ok := o.merchants[addr]
	if !ok {
		return Merchant{}, false
	}
	return *m, true
}

func (o *Overlay) IsRegisteredMerchant(addr common.Address) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.merchants[addr]
	return ok
}

// ProcessPayment pays a merchant in their preferred asset. Payments already in
// that asset on the settlement chain settle directly; anything else opens a
// swap owned by the customer. Nothing is recorded unless the payment goes
// through.
func (o *Overlay) ProcessPayment(ctx context.Context, req Request) (uint32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, ok := o.merchants[req.Merchant]
	if !ok {
		return 0, errors.Wrapf(ErrMerchantNotFound, "%s", req.Merchant.Hex())
	}
	if !route.IsSupportedToken(req.CustomerToken) {
		return 0, errors.Wrapf(ErrUnsupportedRoute, "customer token %q", req.CustomerToken)
	}
	if !route.IsSupportedChain(req.CustomerChain) {
		return 0, errors.Wrapf(ErrUnsupportedRoute, "customer chain %q", req.CustomerChain)
	}
	if req.Amount == nil || req.Amount.IsZero() || req.Amount.BitLen() > swap.MaxAmountBits {
		return 0, ErrInvalidAmount
	}

	pair := route.Pair{
		SourceToken: req.CustomerToken,
		TargetToken: m.PreferredAsset,
		SourceChain: req.CustomerChain,
		TargetChain: m.SettlementChain,
	}

	now := o.now()
	p := &Payment{
		ID:            uint32(len(o.payments)),
		Customer:      req.Customer,
		Merchant:      req.Merchant,
		CustomerToken: req.CustomerToken,
		CustomerChain: req.CustomerChain,
		MerchantAsset: m.PreferredAsset,
		MerchantChain: m.SettlementChain,
		InputAmount:   new(uint256.Int).Set(req.Amount),
		CreatedAt:     now,
		Deadline:      now.Add(PaymentTimeoutHours * time.Hour),
	}

	log := o.logger.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"merchant":   req.Merchant.Hex(),
		"customer":   req.Customer.Hex(),
	})

	if req.CustomerToken == m.PreferredAsset && req.CustomerChain == m.SettlementChain {
		p.ExpectedOutput = new(uint256.Int).Set(req.Amount)
		o.record(p)
		metrics.PaymentsProcessed.WithLabelValues("direct").Inc()
		log.Info("payment settled directly")
		return p.ID, nil
	}

	expected, err := o.quoter.Quote(ctx, pair, req.Amount)
	if err != nil {
		return 0, errors.Wrap(err, "quote payment")
	}

	via, steps := route.PlanHops(pair.SourceChain, pair.TargetChain)
	swapID, err := o.engine.Create(swap.CreateRequest{
		Initiator: req.Customer,
		Route: swap.Route{
			SourceToken: pair.SourceToken,
			TargetToken: pair.TargetToken,
			SourceChain: pair.SourceChain,
			TargetChain: pair.TargetChain,
			Via:         via,
		},
		InputAmount:    req.Amount,
		ExpectedOutput: expected,
		Steps:          steps,
		TimeoutHours:   PaymentTimeoutHours,
	})
	if err != nil {
		return 0, errors.Wrapf(ErrUnsupportedRoute, "create swap: %v", err)
	}

	p.ExpectedOutput = new(uint256.Int).Set(expected)
	p.SwapID = &swapID
	o.record(p)
	metrics.PaymentsProcessed.WithLabelValues("swap").Inc()
	log.WithField("swap_id", swapID).Info("payment swap created")

	if o.autoDispatch {
		if err := o.engine.ExecuteNextStep(ctx, swapID); err != nil {
			log.WithError(err).Warn("first payment step not dispatched")
		}
	}
	return p.ID, nil
}

// record stores p and announces it; o.mu must be held
func (o *Overlay) record(p *Payment) {
	o.payments = append(o.payments, p)

	ev := events.PaymentInitiated{
		PaymentID:      p.ID,
		Customer:       p.Customer.Hex(),
		Merchant:       p.Merchant.Hex(),
		CustomerToken:  p.CustomerToken,
		CustomerChain:  p.CustomerChain,
		MerchantAsset:  p.MerchantAsset,
		MerchantChain:  p.MerchantChain,
		InputAmount:    p.InputAmount.Dec(),
		ExpectedOutput: p.ExpectedOutput.Dec(),
		Deadline:       p.Deadline,
	}
	if p.SwapID != nil {
		id := *p.SwapID
		ev.SwapID = &id
	}
	o.emitter.Emit(events.New(events.KindPaymentInitiated, p.CreatedAt, ev))
}

// Payment returns a payment with its status. Swap backed payments inherit
// the status of their swap.
func (o *Overlay) Payment(id uint32) (Info, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if int(id) >= len(o.payments) {
		return Info{}, false
	}
	p := o.payments[id]

	info := Info{Payment: p.clone(), Status: StatusSettled}
	if p.SwapID != nil {
		st, ok := o.engine.Status(*p.SwapID)
		if !ok {
			return Info{}, false
		}
		info.Status = statusOf(st)
	}
	return info, true
}

// PaymentCount returns the number of payments recorded
func (o *Overlay) PaymentCount() uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return uint32(len(o.payments))
}

// Merchants lists registered merchants ordered by address
func (o *Overlay) Merchants() []Merchant {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Merchant, 0, len(o.merchants))
	for _, m := range o.merchants {
		out = append(out, *m)
	}
	sortMerchants(out)
	return out
}
