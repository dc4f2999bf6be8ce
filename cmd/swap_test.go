package cmd

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xchain-swap/pkg/route"
	"xchain-swap/pkg/swap"
)

func TestParseVia(t *testing.T) {
	hops, err := parseVia([]string{"acala:polkadot", "Hydration:usdc"})
	require.NoError(t, err)
	assert.Equal(t, []route.Hop{
		{Chain: "Acala", Token: "DOT"},
		{Chain: "Hydration", Token: "USDC"},
	}, hops)

	_, err = parseVia([]string{"Acala"})
	assert.Error(t, err)
	_, err = parseVia([]string{"Kusama:KSM"})
	assert.Error(t, err)
}

func TestChainedQuote(t *testing.T) {
	direct := swap.Route{SourceToken: "USDT", TargetToken: "USDC"}
	assert.Equal(t, uint64(997), chainedQuote(direct, uint256.NewInt(1000)).Uint64())

	viaDOT := swap.Route{
		SourceToken: "USDT",
		TargetToken: "USDC",
		Via:         []route.Hop{{Chain: "Acala", Token: "DOT"}},
	}
	// USDT -> DOT at the default rate, then DOT -> USDC at 5x
	assert.Equal(t, uint64(4971), chainedQuote(viaDOT, uint256.NewInt(1000)).Uint64())
}

func TestParseSwapID(t *testing.T) {
	id, err := parseSwapID("42")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), id)

	_, err = parseSwapID("-1")
	assert.Error(t, err)
	_, err = parseSwapID("4294967296")
	assert.Error(t, err)
}
