package dex

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/route"
	"xchain-swap/pkg/swap"
)

// Local executes inbound step requests against the local exchange. Only
// allow-listed tokens are traded and the fill is priced by the quoter.
type Local struct {
	quoter route.Quoter
	logger *logrus.Logger
}

var _ swap.StepExecutor = (*Local)(nil)

func NewLocal(quoter route.Quoter, logger *logrus.Logger) *Local {
	return &Local{quoter: quoter, logger: logger}
}

// ExecuteStep implements swap.StepExecutor
func (l *Local) ExecuteStep(ctx context.Context, p *swap.StepPayload) error {
	if !route.IsSupportedToken(p.SourceAsset) || !route.IsSupportedToken(p.TargetAsset) {
		return errors.Errorf("pair %s/%s is not traded here", p.SourceAsset, p.TargetAsset)
	}
	if p.Amount == nil || p.Amount.IsZero() {
		return errors.New("nothing to swap")
	}

	out, err := l.quoter.Quote(ctx, route.Pair{SourceToken: p.SourceAsset, TargetToken: p.TargetAsset}, p.Amount)
	if err != nil {
		return errors.Wrap(err, "price step")
	}
	if out.IsZero() {
		return errors.Errorf("%s %s is too small to convert", p.Amount.Dec(), p.SourceAsset)
	}

	l.logger.WithFields(logrus.Fields{
		"swap_id":    p.SwapID,
		"step":       p.Step,
		"source":     p.SourceAsset,
		"target":     p.TargetAsset,
		"amount_in":  p.Amount.Dec(),
		"amount_out": out.Dec(),
	}).Info("local swap filled")
	return nil
}
