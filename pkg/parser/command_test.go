package parser

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xchain-swap/pkg/types"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		in   string
		want types.SwapOrder
	}{
		{"swap 1000 USDT to USDC", types.SwapOrder{Amount: "1000", SourceToken: "USDT", TargetToken: "USDC"}},
		{"1000 usdt on assethub to usdc on HYDRATION", types.SwapOrder{
			Amount: "1000", SourceToken: "USDT", TargetToken: "USDC", SourceChain: "AssetHub", TargetChain: "Hydration",
		}},
		{"  2.5   DOT on Acala to USDT ", types.SwapOrder{Amount: "2.5", SourceToken: "DOT", TargetToken: "USDT", SourceChain: "Acala"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseSwapCommandErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"swap USDT to USDC",
		"1000 USDT USDC",
		"1000 USDT on Ethereum to USDC",
		"-5 DOT to USDT",
	} {
		_, err := ParseSwapCommand(in)
		assert.Error(t, err, in)
	}
}

func TestValidateSwapOrder(t *testing.T) {
	order := &types.SwapOrder{Amount: "1", SourceToken: "DOT", TargetToken: "USDT", SourceChain: "Acala"}
	assert.ErrorContains(t, ValidateSwapOrder(order), "target chain")

	order.TargetChain = "AssetHub"
	assert.NoError(t, ValidateSwapOrder(order))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "DOT", NormalizeTokenSymbol(" polkadot "))
	assert.Equal(t, "USDC", NormalizeTokenSymbol("usdc"))

	chain, ok := NormalizeChain("moonbeam")
	assert.True(t, ok)
	assert.Equal(t, "Moonbeam", chain)
	_, ok = NormalizeChain("Solana")
	assert.False(t, ok)
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1000", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got.Uint64())

	got, err = ParseAmount("2.5", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(25_000_000_000), got.Uint64())

	_, err = ParseAmount("1.0000001", 6)
	assert.ErrorContains(t, err, "decimal places")

	_, err = ParseAmount("0", 6)
	assert.Error(t, err)

	_, err = ParseAmount("1e40", 0)
	assert.ErrorContains(t, err, "too large")

	_, err = ParseAmount("ten", 0)
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "4985", FormatAmount(uint256.NewInt(4_985_000_000), 6))
	assert.Equal(t, "0.000997", FormatAmount(uint256.NewInt(997), 6))
	assert.Equal(t, "997", FormatAmount(uint256.NewInt(997), 0))
	assert.Equal(t, "0", FormatAmount(nil, 6))
}
