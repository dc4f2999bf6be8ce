package parser

import (
	"regexp"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"xchain-swap/pkg/route"
	"xchain-swap/pkg/types"
)

// <amount> <token> [on <chain>] to <token> [on <chain>]
var swapPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+([A-Z0-9]+)(?:\s+ON\s+([A-Z0-9]+))?\s+TO\s+([A-Z0-9]+)(?:\s+ON\s+([A-Z0-9]+))?$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1000 USDT to USDC"
//   - "1000 USDT on AssetHub to USDC on Hydration"
//   - "2.5 DOT on Acala to USDT"
func ParseSwapCommand(command string) (*types.SwapOrder, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, errors.New("invalid swap command format. Expected: '<amount> <token> [on <chain>] to <token> [on <chain>]' (e.g., '1000 USDT on AssetHub to USDC on Hydration')")
	}

	order := &types.SwapOrder{
		Amount:      matches[1],
		SourceToken: matches[2],
		TargetToken: matches[4],
	}
	for _, c := range []struct {
		raw string
		dst *string
	}{{matches[3], &order.SourceChain}, {matches[5], &order.TargetChain}} {
		if c.raw == "" {
			continue
		}
		chain, ok := NormalizeChain(c.raw)
		if !ok {
			return nil, errors.Errorf("unsupported chain %q", c.raw)
		}
		*c.dst = chain
	}
	return order, nil
}

// ValidateSwapOrder checks that an order is complete after flags were merged in
func ValidateSwapOrder(order *types.SwapOrder) error {
	if order.Amount == "" {
		return errors.New("amount is required")
	}
	if order.SourceToken == "" {
		return errors.New("source token is required")
	}
	if order.TargetToken == "" {
		return errors.New("target token is required")
	}
	if order.SourceChain == "" {
		return errors.New("source chain is required (use 'on <chain>' or --from-chain)")
	}
	if order.TargetChain == "" {
		return errors.New("target chain is required (use 'on <chain>' or --to-chain)")
	}
	return nil
}

// NormalizeTokenSymbol upper-cases a symbol and resolves common aliases
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"POLKADOT": "DOT",
		"KUSAMA":   "KSM",
		"ASTAR":    "ASTR",
		"BIFROST":  "BNC",
		"HYDRADX":  "HDX",
	}
	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}
	return symbol
}

// NormalizeChain maps a chain name in any case to its canonical spelling
func NormalizeChain(name string) (string, bool) {
	for _, chain := range route.Chains() {
		if strings.EqualFold(chain, strings.TrimSpace(name)) {
			return chain, true
		}
	}
	return "", false
}

// ParseAmount converts a decimal amount into integer base units. decimals is
// the number of fractional digits of the token; amounts with more precision
// than that are rejected rather than rounded.
func ParseAmount(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", s)
	}
	if d.Sign() <= 0 {
		return nil, errors.Errorf("amount must be positive, got %s", s)
	}

	base := d.Shift(decimals)
	if !base.Equal(base.Truncate(0)) {
		return nil, errors.Errorf("amount %s has more than %d decimal places", s, decimals)
	}

	out, overflow := uint256.FromBig(base.BigInt())
	if overflow || out.BitLen() > 128 {
		return nil, errors.Errorf("amount %s is too large", s)
	}
	return out, nil
}

// FormatAmount renders base units with decimals fractional digits
func FormatAmount(amount *uint256.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount.ToBig(), -decimals).String()
}
