package swap

import (
	"context"

	"github.com/pkg/errors"
)

// StepExecutor performs one hop on the local DEX when a remote engine asks
// for it. A nil error means the conversion went through.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, p *StepPayload) error
}

// StepExecutorFunc adapts a function to StepExecutor
type StepExecutorFunc func(ctx context.Context, p *StepPayload) error

func (f StepExecutorFunc) ExecuteStep(ctx context.Context, p *StepPayload) error {
	return f(ctx, p)
}

// HandleRequest answers a request sent by a remote engine. Step requests run
// through the configured StepExecutor; status queries return the local
// swap's status byte. The returned bytes are a response envelope.
func (e *Engine) HandleRequest(ctx context.Context, body []byte) ([]byte, error) {
	payload, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case *StepPayload:
		if e.executor == nil {
			return nil, ErrNoStepExecutor
		}
		log := e.logger.WithField("swap_id", p.SwapID).WithField("step", p.Step)
		if err := e.executor.ExecuteStep(ctx, p); err != nil {
			log.WithError(err).Warn("inbound step failed")
			return Response{Status: ResponseFailure, Data: []byte(err.Error())}.Encode(), nil
		}
		log.Info("inbound step executed")
		return Response{Status: ResponseSuccess}.Encode(), nil

	case *QueryPayload:
		st, ok := e.Status(p.SwapID)
		if !ok {
			return Response{Status: ResponseFailure}.Encode(), nil
		}
		return Response{Status: ResponseSuccess, Data: []byte{byte(st)}}.Encode(), nil

	default:
		return nil, errors.Errorf("unhandled payload %T", payload)
	}
}
