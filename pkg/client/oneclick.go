package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/route"
)

const (
	// slippage tolerance in basis points
	quoteSlippageBps = 100
	quoteDeadline    = time.Hour
	tokenCacheTTL    = 5 * time.Minute
)

// OneClickClient quotes conversions against the 1Click API. It implements
// route.Quoter so payments can be priced from live market data instead of the
// fixed rate table.
type OneClickClient struct {
	client    *oneclick.APIClient
	jwtToken  string
	recipient string
	logger    *logrus.Logger

	mu       sync.Mutex
	tokens   []oneclick.TokenResponse
	loadedAt time.Time
}

var _ route.Quoter = (*OneClickClient)(nil)

// NewOneClickClient creates a new 1Click API client. recipient is the address
// quotes are requested for; the API refuses quotes without one.
func NewOneClickClient(jwtToken, recipient string, logger *logrus.Logger) *OneClickClient {
	return &OneClickClient{
		client:    oneclick.NewAPIClient(oneclick.NewConfiguration()),
		jwtToken:  jwtToken,
		recipient: recipient,
		logger:    logger,
	}
}

func (c *OneClickClient) authorized(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all tokens the API can route. The list is
// cached for a few minutes.
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokens != nil && time.Since(c.loadedAt) < tokenCacheTTL {
		return c.tokens, nil
	}

	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authorized(ctx)).Execute()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get tokens")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	c.tokens = resp
	c.loadedAt = time.Now()
	return resp, nil
}

// FindToken searches for a token by symbol, preferring an exact match
func (c *OneClickClient) FindToken(ctx context.Context, symbol string) (*oneclick.TokenResponse, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(tokens))
	for i, t := range tokens {
		symbols[i] = t.GetSymbol()
	}

	i, ok := matchSymbol(symbols, symbol)
	if !ok {
		return nil, errors.Errorf("token '%s' not found", symbol)
	}
	return &tokens[i], nil
}

// matchSymbol returns the index of the first exact (case insensitive) match,
// falling back to the first partial match
func matchSymbol(symbols []string, symbol string) (int, bool) {
	symbol = strings.ToUpper(symbol)
	for i, s := range symbols {
		if strings.ToUpper(s) == symbol {
			return i, true
		}
	}
	for i, s := range symbols {
		if strings.Contains(strings.ToUpper(s), symbol) {
			return i, true
		}
	}
	return 0, false
}

// Quote asks the API for a dry-run quote and returns the output in base units
// of the target token. amount is in base units of the source token.
func (c *OneClickClient) Quote(ctx context.Context, p route.Pair, amount *uint256.Int) (*uint256.Int, error) {
	if c.recipient == "" {
		return nil, errors.New("a recipient address is required for 1Click quotes")
	}

	src, err := c.FindToken(ctx, p.SourceToken)
	if err != nil {
		return nil, errors.Wrap(err, "source token")
	}
	dst, err := c.FindToken(ctx, p.TargetToken)
	if err != nil {
		return nil, errors.Wrap(err, "target token")
	}

	req := oneclick.NewQuoteRequest(
		true, // dry run, no deposit address is opened
		"EXACT_INPUT",
		quoteSlippageBps,
		src.GetAssetId(),
		"ORIGIN_CHAIN",
		dst.GetAssetId(),
		amount.Dec(),
		c.recipient,
		"ORIGIN_CHAIN",
		c.recipient,
		"DESTINATION_CHAIN",
		time.Now().Add(quoteDeadline),
	)

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authorized(ctx)).QuoteRequest(*req).Execute()
	if err != nil {
		return nil, apiError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, errors.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, errors.New("empty quote response")
	}

	quote := resp.GetQuote()
	out, err := toBaseUnits(quote.GetAmountOutFormatted(), int32(dst.GetDecimals()))
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"source":     p.SourceToken,
		"target":     p.TargetToken,
		"amount_in":  quote.GetAmountInFormatted(),
		"amount_out": quote.GetAmountOutFormatted(),
	}).Debug("1click quote")
	return out, nil
}

// toBaseUnits converts a human formatted amount such as "12.5" into integer
// base units, truncating digits beyond the token's precision
func toBaseUnits(formatted string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(formatted)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", formatted)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("negative amount %q", formatted)
	}

	base := d.Shift(decimals).Truncate(0)
	out, overflow := uint256.FromBig(base.BigInt())
	if overflow {
		return nil, errors.Errorf("amount %q overflows", formatted)
	}
	return out, nil
}

// apiError extracts the message from an error response body when there is one
func apiError(httpResp *http.Response, err error) error {
	if httpResp == nil {
		return errors.Wrap(err, "failed to get quote from API")
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(body) == 0 {
		return errors.Wrapf(err, "failed to get quote from API (status: %d)", httpResp.StatusCode)
	}

	var errorResp map[string]any
	if json.Unmarshal(body, &errorResp) == nil {
		if message, ok := errorResp["message"].(string); ok {
			return errors.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errs, ok := errorResp["errors"]; ok {
			return errors.Errorf("API error (status %d): %v", httpResp.StatusCode, errs)
		}
	}
	return errors.Errorf("API error (status %d): %s", httpResp.StatusCode, string(body))
}
