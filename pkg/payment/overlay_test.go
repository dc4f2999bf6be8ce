package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xchain-swap/pkg/events"
	"xchain-swap/pkg/route"
	"xchain-swap/pkg/swap"
	"xchain-swap/pkg/transport"
)

var (
	shop     = common.HexToAddress("0x00000000000000000000000000000000000005b0")
	customer = common.HexToAddress("0x0000000000000000000000000000000000c0ffee")
	stranger = common.HexToAddress("0x000000000000000000000000000000000000dead")
	epoch    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func clock() time.Time { return epoch }

type fixture struct {
	engine  *swap.Engine
	overlay *Overlay
	outbox  *transport.Outbox
	events  *events.Recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{outbox: transport.NewOutbox(), events: &events.Recorder{}}
	f.engine = swap.NewEngine(f.outbox, swap.WithClock(clock), swap.WithEmitter(f.events))
	f.overlay = New(f.engine, append([]Option{WithClock(clock), WithEmitter(f.events)}, opts...)...)
	return f
}

func pay(token, chain string, amount uint64) Request {
	return Request{
		Customer:      customer,
		Merchant:      shop,
		CustomerToken: token,
		CustomerChain: chain,
		Amount:        uint256.NewInt(amount),
	}
}

func TestRegisterMerchant(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))
	assert.True(t, f.overlay.IsRegisteredMerchant(shop))
	assert.False(t, f.overlay.IsRegisteredMerchant(stranger))

	m, ok := f.overlay.Merchant(shop)
	require.True(t, ok)
	assert.Equal(t, "USDC", m.PreferredAsset)
	assert.Equal(t, "AssetHub", m.SettlementChain)

	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDT", "Moonbeam"))
	m, _ = f.overlay.Merchant(shop)
	assert.Equal(t, "USDT", m.PreferredAsset)
	assert.Equal(t, "Moonbeam", m.SettlementChain)
	assert.Len(t, f.overlay.Merchants(), 1)

	evs := f.events.OfKind(events.KindMerchantRegistered)
	require.Len(t, evs, 2)
	assert.Equal(t, "Moonbeam", evs[1].Payload.(events.MerchantRegistered).SettlementChain)
}

func TestRegisterMerchantRejects(t *testing.T) {
	f := newFixture(t)

	err := f.overlay.RegisterMerchant(shop, "EUR", "AssetHub")
	assert.True(t, errors.Is(err, swap.ErrRejectedRoute))
	err = f.overlay.RegisterMerchant(shop, "USDC", "Ethereum")
	assert.True(t, errors.Is(err, swap.ErrRejectedRoute))

	assert.False(t, f.overlay.IsRegisteredMerchant(shop))
	assert.Empty(t, f.events.Events())
}

func TestPayUnregisteredMerchant(t *testing.T) {
	f := newFixture(t)

	_, err := f.overlay.ProcessPayment(context.Background(), pay("DOT", "Acala", 1000))
	assert.ErrorIs(t, err, ErrMerchantNotFound)
	assert.Equal(t, uint32(0), f.overlay.PaymentCount())
	assert.Equal(t, uint32(0), f.engine.Count())
	assert.Empty(t, f.events.Events())
}

func TestDirectPayment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))

	id, err := f.overlay.ProcessPayment(context.Background(), pay("USDC", "AssetHub", 2500))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)
	assert.Equal(t, uint32(0), f.engine.Count())

	info, ok := f.overlay.Payment(id)
	require.True(t, ok)
	assert.True(t, info.Direct())
	assert.Equal(t, StatusSettled, info.Status)
	assert.True(t, info.Status.Final())
	assert.Equal(t, uint64(2500), info.ExpectedOutput.Uint64())

	evs := f.events.OfKind(events.KindPaymentInitiated)
	require.Len(t, evs, 1)
	assert.Nil(t, evs[0].Payload.(events.PaymentInitiated).SwapID)
}

func TestSameChainPaymentSwap(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDT", "Hydration"))

	id, err := f.overlay.ProcessPayment(context.Background(), pay("DOT", "Hydration", 1_000_000_000))
	require.NoError(t, err)

	info, ok := f.overlay.Payment(id)
	require.True(t, ok)
	require.NotNil(t, info.SwapID)
	assert.Equal(t, StatusInitiated, info.Status)
	assert.Equal(t, uint64(4_985_000_000), info.ExpectedOutput.Uint64())

	s, ok := f.engine.Get(*info.SwapID)
	require.True(t, ok)
	assert.Equal(t, customer, s.Initiator)
	assert.Equal(t, uint32(1), s.Steps)
	assert.Empty(t, s.Route.Via)
	assert.Equal(t, epoch.Add(time.Hour), s.Deadline)
}

func TestCrossChainPaymentFollowsSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))

	id, err := f.overlay.ProcessPayment(ctx, pay("KSM", "Bifrost", 1_000_000))
	require.NoError(t, err)

	info, _ := f.overlay.Payment(id)
	swapID := *info.SwapID
	s, _ := f.engine.Get(swapID)
	assert.Equal(t, uint32(2), s.Steps)
	assert.Equal(t, []route.Hop{{Chain: route.IntermediateChain, Token: route.IntermediateToken}}, s.Route.Via)

	require.NoError(t, f.engine.ExecuteNextStep(ctx, swapID))
	info, _ = f.overlay.Payment(id)
	assert.Equal(t, StatusInProgress, info.Status)
	assert.False(t, info.Status.Final())

	require.True(t, f.engine.OnResponse(1, []byte{1}))
	require.NoError(t, f.engine.ExecuteNextStep(ctx, swapID))
	require.True(t, f.engine.OnResponse(2, []byte{1}))

	info, _ = f.overlay.Payment(id)
	assert.Equal(t, StatusCompleted, info.Status)

	evs := f.events.OfKind(events.KindPaymentInitiated)
	require.Len(t, evs, 1)
	ev := evs[0].Payload.(events.PaymentInitiated)
	require.NotNil(t, ev.SwapID)
	assert.Equal(t, swapID, *ev.SwapID)
	assert.Equal(t, "1000000", ev.InputAmount)
}

func TestPaymentRejects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))
	ctx := context.Background()

	_, err := f.overlay.ProcessPayment(ctx, pay("BTC", "AssetHub", 10))
	assert.ErrorIs(t, err, ErrUnsupportedRoute)

	_, err = f.overlay.ProcessPayment(ctx, pay("DOT", "Polygon", 10))
	assert.ErrorIs(t, err, ErrUnsupportedRoute)

	_, err = f.overlay.ProcessPayment(ctx, pay("DOT", "Acala", 0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// the quote rounds down to nothing, so no swap can be opened
	require.NoError(t, f.overlay.RegisterMerchant(stranger, "USDT", "AssetHub"))
	dust := pay("ASTR", "Astar", 1)
	dust.Merchant = stranger
	_, err = f.overlay.ProcessPayment(ctx, dust)
	assert.ErrorIs(t, err, ErrUnsupportedRoute)

	assert.Equal(t, uint32(0), f.overlay.PaymentCount())
	assert.Equal(t, uint32(0), f.engine.Count())
}

type brokenQuoter struct{}

func (brokenQuoter) Quote(context.Context, route.Pair, *uint256.Int) (*uint256.Int, error) {
	return nil, errors.New("price feed unavailable")
}

func TestQuoterFailure(t *testing.T) {
	f := newFixture(t, WithQuoter(brokenQuoter{}))
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))

	_, err := f.overlay.ProcessPayment(context.Background(), pay("DOT", "Acala", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price feed unavailable")
	assert.Equal(t, uint32(0), f.overlay.PaymentCount())
}

func TestAutoDispatch(t *testing.T) {
	f := newFixture(t, WithAutoDispatch(true))
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))

	id, err := f.overlay.ProcessPayment(context.Background(), pay("DOT", "Acala", 1000))
	require.NoError(t, err)

	info, _ := f.overlay.Payment(id)
	assert.Equal(t, StatusInProgress, info.Status)
	assert.Len(t, f.outbox.Requests(), 1)

	f.outbox.RejectWith(transport.ErrRejected)
	id, err = f.overlay.ProcessPayment(context.Background(), pay("DOT", "Acala", 1000))
	require.NoError(t, err)

	info, ok := f.overlay.Payment(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, uint32(2), f.overlay.PaymentCount())
}

func TestUnknownPayment(t *testing.T) {
	f := newFixture(t)
	_, ok := f.overlay.Payment(3)
	assert.False(t, ok)
}

func TestOverlaySnapshotRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))
	require.NoError(t, f.overlay.RegisterMerchant(stranger, "DOT", "Acala"))

	_, err := f.overlay.ProcessPayment(ctx, pay("USDC", "AssetHub", 7))
	require.NoError(t, err)
	_, err = f.overlay.ProcessPayment(ctx, pay("DOT", "Acala", 7_000))
	require.NoError(t, err)

	raw, err := json.Marshal(f.overlay.Snapshot())
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(raw, &st))

	engine := swap.NewEngine(transport.NewOutbox())
	restored := New(engine)
	require.Error(t, restored.Restore(st), "linked swap must exist")

	require.NoError(t, engine.Restore(f.engine.Snapshot()))
	require.NoError(t, restored.Restore(st))

	assert.Equal(t, f.overlay.Merchants(), restored.Merchants())
	assert.Equal(t, uint32(2), restored.PaymentCount())
	for id := uint32(0); id < 2; id++ {
		want, _ := f.overlay.Payment(id)
		got, ok := restored.Payment(id)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestRestoreWithEngineIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.overlay.RegisterMerchant(shop, "USDC", "AssetHub"))
	_, err := f.overlay.ProcessPayment(ctx, pay("USDC", "AssetHub", 7))
	require.NoError(t, err)

	es, st := f.overlay.SnapshotWithEngine()
	require.Len(t, es.Swaps, 1)
	require.Len(t, st.Payments, 1)

	engine := swap.NewEngine(transport.NewOutbox())
	target := New(engine)
	require.NoError(t, target.RegisterMerchant(stranger, "DOT", "Acala"))

	// payments pointing past the swap table are rejected before anything changes
	truncated := es
	truncated.Swaps = nil
	require.Error(t, target.RestoreWithEngine(truncated, st))
	assert.Equal(t, uint32(0), engine.Count())
	assert.True(t, target.IsRegisteredMerchant(stranger))
	assert.Equal(t, uint32(0), target.PaymentCount())

	require.NoError(t, target.RestoreWithEngine(es, st))
	assert.Equal(t, uint32(1), engine.Count())
	assert.False(t, target.IsRegisteredMerchant(stranger))
	assert.True(t, target.IsRegisteredMerchant(shop))
	got, ok := target.Payment(0)
	require.True(t, ok)
	want, _ := f.overlay.Payment(0)
	assert.Equal(t, want, got)
}
