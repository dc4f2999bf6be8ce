package route

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowLists(t *testing.T) {
	for _, token := range Tokens() {
		assert.True(t, IsSupportedToken(token), token)
	}
	for _, chain := range Chains() {
		assert.True(t, IsSupportedChain(chain), chain)
	}

	assert.False(t, IsSupportedToken(""))
	assert.False(t, IsSupportedToken("usdt"))
	assert.False(t, IsSupportedToken("BTC"))
	assert.False(t, IsSupportedChain("Kusama"))
	assert.False(t, IsSupportedChain(""))
}

func TestIsRouteSupported(t *testing.T) {
	assert.True(t, IsRouteSupported("USDT", "USDC", "AssetHub", "Hydration"))
	assert.False(t, IsRouteSupported("USDT", "BTC", "AssetHub", "Hydration"))
	assert.False(t, IsRouteSupported("USDT", "USDC", "AssetHub", "Ethereum"))
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		amount uint64
		want   uint64
	}{
		{"dot to usdt", "DOT", "USDT", 1_000_000_000, 4_985_000_000},
		{"dot to usdc", "DOT", "USDC", 1_000_000_000, 4_985_000_000},
		{"usdt to usdc", "USDT", "USDC", 1000, 997},
		{"ksm to usdt", "KSM", "USDT", 1_000_000, 19_940_000},
		{"astr to usdt", "ASTR", "USDT", 1_000_000, 99_700},
		{"unknown pair is one to one", "HDX", "BNC", 1000, 997},
		{"reverse of dot pair is one to one", "USDT", "DOT", 1000, 997},
		{"fee truncates toward zero", "USDT", "USDC", 999, 997},
		{"small amounts pay no fee", "USDT", "USDC", 100, 100},
		{"zero", "DOT", "USDT", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quote(tt.from, tt.to, uint256.NewInt(tt.amount))
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestQuoteIsDeterministic(t *testing.T) {
	amount := uint256.NewInt(1_000_000_000)
	first := Quote("DOT", "USDT", amount)
	for i := 0; i < 10; i++ {
		require.True(t, first.Eq(Quote("DOT", "USDT", amount)))
	}
	// input must not be mutated
	assert.Equal(t, uint64(1_000_000_000), amount.Uint64())
}

func TestQuoteLargeAmount(t *testing.T) {
	// 2^127 does not overflow the intermediate product
	amount := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	got := Quote("KSM", "USDT", amount)

	want := new(uint256.Int).Mul(amount, uint256.NewInt(20))
	fee := new(uint256.Int).Mul(want, uint256.NewInt(3))
	fee.Div(fee, uint256.NewInt(1000))
	want.Sub(want, fee)

	assert.True(t, want.Eq(got))
}

func TestFixedRateQuoter(t *testing.T) {
	var q Quoter = FixedRate{}
	out, err := q.Quote(context.Background(), Pair{SourceToken: "DOT", TargetToken: "USDT"}, uint256.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(4_985_000_000), out.Uint64())
}

func TestPlanHops(t *testing.T) {
	via, steps := PlanHops("Hydration", "Hydration")
	assert.Nil(t, via)
	assert.Equal(t, uint32(1), steps)

	via, steps = PlanHops("AssetHub", "Hydration")
	assert.Equal(t, []Hop{{Chain: "Acala", Token: "DOT"}}, via)
	assert.Equal(t, uint32(2), steps)
}
