package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xchain-swap/pkg/payment"
	"xchain-swap/pkg/swap"
	"xchain-swap/pkg/transport"
)

// fixed clock; JSON drops the monotonic reading of time.Now
func clock() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func newPair() (*swap.Engine, *payment.Overlay) {
	engine := swap.NewEngine(transport.NewOutbox(), swap.WithClock(clock))
	return engine, payment.New(engine, payment.WithClock(clock))
}

func TestLoadMissingFile(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	engine, overlay := newPair()
	require.NoError(t, s.Load(overlay))
	assert.Equal(t, uint32(0), engine.Count())
	assert.Equal(t, uint32(0), overlay.PaymentCount())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s, err := NewStorage(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	ctx := context.Background()
	engine, overlay := newPair()
	shop := common.HexToAddress("0x05b0")
	require.NoError(t, overlay.RegisterMerchant(shop, "USDC", "AssetHub"))
	_, err = overlay.ProcessPayment(ctx, payment.Request{
		Customer:      common.HexToAddress("0xc0ffee"),
		Merchant:      shop,
		CustomerToken: "DOT",
		CustomerChain: "Acala",
		Amount:        uint256.NewInt(1_000_000_000),
	})
	require.NoError(t, err)
	require.NoError(t, engine.ExecuteNextStep(ctx, 0))

	require.NoError(t, s.Save(overlay))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	engine2, overlay2 := newPair()
	require.NoError(t, s.Load(overlay2))

	assert.Equal(t, engine.List(), engine2.List())
	assert.Equal(t, engine.Pending(), engine2.Pending())
	assert.True(t, overlay2.IsRegisteredMerchant(shop))

	info, ok := overlay2.Payment(0)
	require.True(t, ok)
	assert.Equal(t, payment.StatusInProgress, info.Status)
	assert.Equal(t, "4985000000", info.ExpectedOutput.Dec())
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewStorage(path)
	require.NoError(t, err)
	_, err = s.Read()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"version": 9}`), 0600))
	_, err = s.Read()
	assert.ErrorContains(t, err, "unsupported state version")
}

func sampleSwap() swap.CreateRequest {
	return swap.CreateRequest{
		Initiator: common.HexToAddress("0xa11ce"),
		Route: swap.Route{
			SourceToken: "USDT",
			TargetToken: "USDC",
			SourceChain: "AssetHub",
			TargetChain: "Hydration",
		},
		InputAmount:    uint256.NewInt(1000),
		ExpectedOutput: uint256.NewInt(997),
		Steps:          2,
		TimeoutHours:   1,
	}
}

func TestLoadLeavesStateUntouchedOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewStorage(path)
	require.NoError(t, err)

	// a valid swap table, but a payment pointing past it
	other, otherOverlay := newPair()
	_, err = other.Create(sampleSwap())
	require.NoError(t, err)
	require.NoError(t, s.Save(otherOverlay))

	snap, err := s.Read()
	require.NoError(t, err)
	missing := uint32(5)
	snap.Payments.Payments = []payment.PaymentRecord{{
		ID:             0,
		InputAmount:    "1",
		ExpectedOutput: "1",
		SwapID:         &missing,
	}}
	require.NoError(t, s.Write(snap))

	engine, overlay := newPair()
	_, err = engine.Create(sampleSwap())
	require.NoError(t, err)
	_, err = engine.Create(sampleSwap())
	require.NoError(t, err)

	err = s.Load(overlay)
	assert.ErrorContains(t, err, "links unknown swap 5")
	assert.Equal(t, uint32(2), engine.Count())
	assert.Equal(t, uint32(0), overlay.PaymentCount())
}

func TestSaveWhilePaying(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	engine, overlay := newPair()
	shop := common.HexToAddress("0x05b0")
	require.NoError(t, overlay.RegisterMerchant(shop, "USDC", "AssetHub"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, err := overlay.ProcessPayment(context.Background(), payment.Request{
				Customer:      common.HexToAddress("0xc0ffee"),
				Merchant:      shop,
				CustomerToken: "DOT",
				CustomerChain: "Acala",
				Amount:        uint256.NewInt(1_000_000_000),
			})
			assert.NoError(t, err)
		}
	}()

	// every saved file links only swaps it also contains
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Save(overlay))
		_, fresh := newPair()
		require.NoError(t, s.Load(fresh))
	}
	wg.Wait()

	require.NoError(t, s.Save(overlay))
	e2, o2 := newPair()
	require.NoError(t, s.Load(o2))
	assert.Equal(t, uint32(50), o2.PaymentCount())
	assert.Equal(t, engine.Count(), e2.Count())
}

func TestUpdateSharesStateBetweenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	first, err := NewStorage(path)
	require.NoError(t, err)
	second, err := NewStorage(path)
	require.NoError(t, err)

	ctx := context.Background()
	e1, o1 := newPair()
	e2, o2 := newPair()

	require.NoError(t, first.Update(o1, func() error {
		id, err := e1.Create(sampleSwap())
		require.NoError(t, err)
		return e1.ExecuteNextStep(ctx, id)
	}))

	// the second handle sees the first swap and continues the nonce sequence
	require.NoError(t, second.Update(o2, func() error {
		assert.Equal(t, uint32(1), e2.Count())
		assert.Equal(t, uint64(1), e2.LastNonce())
		id, err := e2.Create(sampleSwap())
		require.NoError(t, err)
		return e2.ExecuteNextStep(ctx, id)
	}))
	nonce, ok := e2.PendingNonce(1)
	require.True(t, ok)
	assert.Equal(t, uint64(2), nonce)

	// and the first one sees both on its next unit of work
	require.NoError(t, first.Update(o1, func() error {
		assert.Equal(t, uint32(2), e1.Count())
		assert.Len(t, e1.Pending(), 2)
		return nil
	}))
}

func TestUpdateSavesWhenFnFails(t *testing.T) {
	s, err := NewStorage(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	engine, overlay := newPair()
	boom := errors.New("boom")
	err = s.Update(overlay, func() error {
		_, err := engine.Create(sampleSwap())
		require.NoError(t, err)
		return boom
	})
	assert.Equal(t, boom, err)

	fresh, freshOverlay := newPair()
	require.NoError(t, s.Load(freshOverlay))
	assert.Equal(t, uint32(1), fresh.Count())
}

func TestUpdateSerializesHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	const workers, perWorker = 2, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		s, err := NewStorage(path)
		require.NoError(t, err)
		engine, overlay := newPair()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, s.Update(overlay, func() error {
					_, err := engine.Create(sampleSwap())
					return err
				}))
			}
		}()
	}
	wg.Wait()

	s, err := NewStorage(path)
	require.NoError(t, err)
	engine, overlay := newPair()
	require.NoError(t, s.Load(overlay))
	assert.Equal(t, uint32(workers*perWorker), engine.Count())
}
