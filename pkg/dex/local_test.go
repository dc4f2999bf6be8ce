package dex

import (
	"context"
	"io"
	"testing"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"xchain-swap/pkg/route"
	"xchain-swap/pkg/swap"
)

func TestLocalExecuteStep(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	l := NewLocal(route.FixedRate{}, logger)
	ctx := context.Background()

	step := func(src, dst string, amount uint64) *swap.StepPayload {
		return &swap.StepPayload{SourceAsset: src, TargetAsset: dst, Amount: uint256.NewInt(amount)}
	}

	assert.NoError(t, l.ExecuteStep(ctx, step("DOT", "USDT", 1_000_000)))
	assert.Error(t, l.ExecuteStep(ctx, step("BTC", "USDT", 1_000_000)))
	assert.Error(t, l.ExecuteStep(ctx, step("DOT", "USDT", 0)))
	// 0.1 rate and the fee leave nothing
	assert.Error(t, l.ExecuteStep(ctx, step("ASTR", "USDT", 5)))
}
