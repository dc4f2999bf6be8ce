package swap

import (
	"context"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/events"
	"xchain-swap/pkg/metrics"
	"xchain-swap/pkg/transport"
)

// ExecuteNextStep dispatches the swap's current step. A nil error means the
// transport accepted the request; the step only counts once its response
// arrives through OnResponse or DeliverResponse.
func (e *Engine) ExecuteNextStep(ctx context.Context, id uint32) error {
	_, err := e.advance(ctx, id, nil)
	return err
}

// DispatchStep is ExecuteNextStep pinned to an explicit step index. It fails
// with ErrStepMismatch unless step is the swap's current step, and returns
// the nonce allocated for the request.
func (e *Engine) DispatchStep(ctx context.Context, id, step uint32) (uint64, error) {
	return e.advance(ctx, id, &step)
}

func (e *Engine) advance(ctx context.Context, id uint32, want *uint32) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.lookup(id)
	if !ok {
		return 0, ErrSwapNotFound
	}
	if !s.Status.Active() {
		return 0, errors.Wrapf(ErrSwapNotActive, "swap %d is %s", id, s.Status)
	}
	if e.now().After(s.Deadline) {
		e.fail(s, "deadline exceeded")
		return 0, errors.Wrapf(ErrDeadlineExceeded, "swap %d deadline was %s", id, s.Deadline)
	}
	if p, busy := e.corr.forSwap(id); busy {
		return 0, errors.Wrapf(ErrStepPending, "swap %d step %d awaits nonce %d", id, p.Step, p.Nonce)
	}
	if want != nil && *want != s.CurrentStep {
		return 0, errors.Wrapf(ErrStepMismatch, "swap %d is at step %d, not %d", id, s.CurrentStep, *want)
	}

	return e.dispatch(ctx, s)
}

// dispatch sends the current step of an active swap with no request in flight
func (e *Engine) dispatch(ctx context.Context, s *Swap) (uint64, error) {
	step := s.CurrentStep
	from, to, amount := s.stepLeg(step)

	body, err := (&StepPayload{
		SwapID:      s.ID,
		Step:        step,
		SourceAsset: from.Token,
		TargetAsset: to.Token,
		Amount:      amount,
	}).Encode()
	if err != nil {
		metrics.StepDispatches.WithLabelValues(metrics.ResultRejected).Inc()
		e.stepRejected(s, 0, err)
		return 0, errors.Wrapf(ErrDispatchRejected, "encode step %d: %v", step, err)
	}

	now := e.now()
	req := &transport.Request{
		Nonce:   e.corr.next(),
		SwapID:  s.ID,
		Step:    step,
		Source:  from.Chain,
		Dest:    to.Chain,
		From:    transport.ModuleName,
		To:      transport.DexModule,
		Timeout: now.Add(e.requestTimeout),
		Body:    body,
	}
	e.corr.track(&PendingRequest{
		Nonce:        req.Nonce,
		SwapID:       s.ID,
		Step:         step,
		Digest:       crypto.Keccak256Hash(body),
		DispatchedAt: now,
	})

	log := e.logger.WithFields(logrus.Fields{
		"swap_id": s.ID,
		"step":    step,
		"nonce":   req.Nonce,
		"dest":    req.Dest,
	})

	if err := e.dispatcher.Dispatch(ctx, req); err != nil {
		e.corr.resolve(req.Nonce)
		metrics.StepDispatches.WithLabelValues(metrics.ResultRejected).Inc()
		log.WithError(err).Warn("step dispatch rejected")
		e.stepRejected(s, req.Nonce, err)
		return req.Nonce, errors.Wrapf(ErrDispatchRejected, "swap %d step %d: %v", s.ID, step, err)
	}

	metrics.StepDispatches.WithLabelValues(metrics.ResultAccepted).Inc()
	log.Info("step dispatched")

	if s.Status == StatusInitiated {
		e.setStatus(s, StatusInProgress)
	} else {
		s.UpdatedAt = now
	}
	e.emit(events.KindSwapStepExecuted, events.SwapStepExecuted{
		SwapID:     s.ID,
		Phase:      events.PhaseDispatched,
		Step:       step,
		TotalSteps: s.Steps,
		Success:    true,
		Nonce:      req.Nonce,
	})
	return req.Nonce, nil
}

func (e *Engine) stepRejected(s *Swap, nonce uint64, cause error) {
	e.emit(events.KindSwapStepExecuted, events.SwapStepExecuted{
		SwapID:     s.ID,
		Phase:      events.PhaseDispatched,
		Step:       s.CurrentStep,
		TotalSteps: s.Steps,
		Success:    false,
		Nonce:      nonce,
	})
	e.fail(s, "dispatch rejected: "+cause.Error())
}

// OnResponse applies a bare response payload: non-empty means the step
// succeeded, empty means it failed. It reports whether the nonce matched an
// in-flight request; unmatched responses change nothing.
func (e *Engine) OnResponse(nonce uint64, payload []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.applyResponse(nonce, LegacyResponse(payload), nil)
}

// DeliverResponse applies a response envelope with an explicit status byte.
// An envelope that fails to decode fails the swap.
func (e *Engine) DeliverResponse(nonce uint64, raw []byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp, err := DecodeResponse(raw)
	return e.applyResponse(nonce, resp, err)
}

func (e *Engine) applyResponse(nonce uint64, resp Response, decodeErr error) bool {
	p, ok := e.corr.resolve(nonce)
	if !ok {
		metrics.Responses.WithLabelValues(metrics.ResultStale).Inc()
		e.logger.WithField("nonce", nonce).Debug("ignoring response for unknown nonce")
		return false
	}

	s := e.swaps[p.SwapID]
	log := e.logger.WithFields(logrus.Fields{
		"swap_id": s.ID,
		"step":    p.Step,
		"nonce":   nonce,
	})

	// a pending entry only survives while its swap is active, so s is
	// InProgress and p.Step == s.CurrentStep here
	if decodeErr != nil {
		metrics.Responses.WithLabelValues(metrics.ResultInvalid).Inc()
		log.WithError(decodeErr).Warn("undecodable response")
		e.stepFailed(s, p.Step, "decode response: "+decodeErr.Error())
		return true
	}
	if !resp.Success() {
		metrics.Responses.WithLabelValues(metrics.ResultFailure).Inc()
		log.Warn("step failed on remote chain")
		e.stepFailed(s, p.Step, "remote step failed")
		return true
	}

	metrics.Responses.WithLabelValues(metrics.ResultSuccess).Inc()
	s.CurrentStep++
	s.UpdatedAt = e.now()
	log.WithField("current_step", s.CurrentStep).Info("step confirmed")

	e.emit(events.KindSwapStepExecuted, events.SwapStepExecuted{
		SwapID:     s.ID,
		Phase:      events.PhaseConfirmed,
		Step:       p.Step,
		TotalSteps: s.Steps,
		Success:    true,
		Nonce:      nonce,
	})
	if s.CurrentStep == s.Steps {
		e.complete(s)
	}
	return true
}

func (e *Engine) stepFailed(s *Swap, step uint32, reason string) {
	e.emit(events.KindSwapStepExecuted, events.SwapStepExecuted{
		SwapID:     s.ID,
		Phase:      events.PhaseConfirmed,
		Step:       step,
		TotalSteps: s.Steps,
		Success:    false,
	})
	e.fail(s, reason)
}
