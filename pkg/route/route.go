package route

import (
	"github.com/holiman/uint256"
)

const (
	// RateScale is the fixed-point scale of every entry in the rate table
	RateScale = 1_000_000

	// FeeNumerator and FeeDenominator express the 0.3% conversion fee
	FeeNumerator   = 3
	FeeDenominator = 1000

	// IntermediateToken and IntermediateChain are used when a payment has to leave its chain
	IntermediateToken = "DOT"
	IntermediateChain = "Acala"
)

var supportedTokens = map[string]bool{
	"USDT": true,
	"DOT":  true,
	"USDC": true,
	"KSM":  true,
	"ASTR": true,
	"BNC":  true,
	"HDX":  true,
}

var supportedChains = map[string]bool{
	"AssetHub":  true,
	"Acala":     true,
	"Hydration": true,
	"Moonbeam":  true,
	"Astar":     true,
	"Bifrost":   true,
}

// pair keys the rate table. Pairs are directed; the reverse direction of a
// pair needs its own entry or falls back to 1:1.
type pair struct {
	from, to string
}

var rates = map[pair]uint64{
	{"DOT", "USDT"}:  5_000_000, // 1 DOT = 5 USDT
	{"DOT", "USDC"}:  5_000_000, // 1 DOT = 5 USDC
	{"USDT", "USDC"}: 1_000_000,
	{"USDC", "USDT"}: 1_000_000,
	{"KSM", "USDT"}:  20_000_000, // 1 KSM = 20 USDT
	{"ASTR", "USDT"}: 100_000,    // 1 ASTR = 0.1 USDT
}

// Hop is one (chain, token) position along a route
type Hop struct {
	Chain string `json:"chain"`
	Token string `json:"token"`
}

// IsSupportedToken reports whether token is in the token allow-list
func IsSupportedToken(token string) bool {
	return supportedTokens[token]
}

// IsSupportedChain reports whether chain is in the chain allow-list
func IsSupportedChain(chain string) bool {
	return supportedChains[chain]
}

// IsRouteSupported checks both tokens and both chains of a route
func IsRouteSupported(sourceToken, targetToken, sourceChain, targetChain string) bool {
	return IsSupportedToken(sourceToken) &&
		IsSupportedToken(targetToken) &&
		IsSupportedChain(sourceChain) &&
		IsSupportedChain(targetChain)
}

// Tokens returns the token allow-list in a stable order
func Tokens() []string {
	return []string{"USDT", "DOT", "USDC", "KSM", "ASTR", "BNC", "HDX"}
}

// Chains returns the chain allow-list in a stable order
func Chains() []string {
	return []string{"AssetHub", "Acala", "Hydration", "Moonbeam", "Astar", "Bifrost"}
}

// Rate returns the scaled conversion rate for a directed pair
func Rate(sourceToken, targetToken string) uint64 {
	if r, ok := rates[pair{sourceToken, targetToken}]; ok {
		return r
	}
	return RateScale
}

// Quote converts amount of sourceToken into targetToken using the fixed rate
// table and deducts the conversion fee. Division truncates toward zero.
func Quote(sourceToken, targetToken string, amount *uint256.Int) *uint256.Int {
	if amount == nil {
		return new(uint256.Int)
	}

	before := new(uint256.Int).Mul(amount, uint256.NewInt(Rate(sourceToken, targetToken)))
	before.Div(before, uint256.NewInt(RateScale))

	fee := new(uint256.Int).Mul(before, uint256.NewInt(FeeNumerator))
	fee.Div(fee, uint256.NewInt(FeeDenominator))

	return before.Sub(before, fee)
}

// PlanHops returns the intermediate hops and step count used for a payment
// conversion. Conversions that stay on one chain take a single step; anything
// else is routed through the intermediate chain in two steps.
func PlanHops(sourceChain, targetChain string) (via []Hop, steps uint32) {
	if sourceChain == targetChain {
		return nil, 1
	}
	return []Hop{{Chain: IntermediateChain, Token: IntermediateToken}}, 2
}
