package swap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xchain-swap/pkg/route"
	"xchain-swap/pkg/transport"
)

func TestSnapshotRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	done := h.create(t, usdtToUSDC(1))
	require.NoError(t, h.engine.ExecuteNextStep(ctx, done))
	require.True(t, h.engine.OnResponse(1, []byte{1}))

	req := usdtToUSDC(2)
	req.Route.Via = []route.Hop{{Chain: "Acala", Token: "DOT"}}
	inflight := h.create(t, req)
	require.NoError(t, h.engine.ExecuteNextStep(ctx, inflight))

	raw, err := json.Marshal(h.engine.Snapshot())
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal(raw, &st))

	restored := NewEngine(transport.NewOutbox(), WithClock(h.clock.now))
	require.NoError(t, restored.Restore(st))

	assert.Equal(t, h.engine.List(), restored.List())
	assert.Equal(t, uint64(2), restored.LastNonce())

	nonce, ok := restored.PendingNonce(inflight)
	require.True(t, ok)
	assert.Equal(t, uint64(2), nonce)
	assert.Equal(t, h.engine.Pending(), restored.Pending())

	// the restored engine keeps correlating and allocating
	require.True(t, restored.OnResponse(2, []byte{1}))
	n, err := restored.DispatchStep(ctx, inflight, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestRestoreRejectsInconsistentState(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, usdtToUSDC(2))
	require.NoError(t, h.engine.ExecuteNextStep(context.Background(), id))
	good := h.engine.Snapshot()

	clone := func() State {
		raw, err := json.Marshal(good)
		require.NoError(t, err)
		var st State
		require.NoError(t, json.Unmarshal(raw, &st))
		return st
	}

	tests := map[string]func(*State){
		"bad amount":          func(s *State) { s.Swaps[0].InputAmount = "ten" },
		"id out of order":     func(s *State) { s.Swaps[0].ID = 3 },
		"step beyond total":   func(s *State) { s.Swaps[0].CurrentStep = 5 },
		"completed too early": func(s *State) { s.Swaps[0].Status = StatusCompleted },
		"nonce not allocated": func(s *State) { s.Nonce = 0 },
		"unknown swap":        func(s *State) { s.Pending[0].SwapID = 9 },
		"terminal with pending": func(s *State) {
			s.Swaps[0].Status = StatusFailed
		},
		"duplicate pending": func(s *State) {
			s.Nonce = 2
			dup := s.Pending[0]
			dup.Nonce = 2
			s.Pending = append(s.Pending, dup)
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			st := clone()
			mutate(&st)

			e := NewEngine(transport.NewOutbox())
			existing, err := e.Create(usdtToUSDC(1))
			require.NoError(t, err)

			require.Error(t, e.Restore(st))
			_, ok := e.Get(existing)
			assert.True(t, ok, "failed restore must leave the engine untouched")
		})
	}
}

func TestSnapshotAmountsAreDecimal(t *testing.T) {
	h := newHarness(t)
	h.create(t, usdtToUSDC(1))
	h.clock.advance(time.Minute)

	st := h.engine.Snapshot()
	require.Len(t, st.Swaps, 1)
	assert.Equal(t, "1000", st.Swaps[0].InputAmount)
	assert.Equal(t, "997", st.Swaps[0].ExpectedOutput)
	assert.Empty(t, st.Pending)
}
