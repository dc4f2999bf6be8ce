package swap

import "github.com/pkg/errors"

var (
	// ErrRejectedRoute is returned when swap creation fails validation
	ErrRejectedRoute = errors.New("rejected route")
	// ErrSwapNotFound is returned for unknown swap ids
	ErrSwapNotFound = errors.New("swap not found")
	// ErrUnauthorized is returned when someone other than the initiator cancels
	ErrUnauthorized = errors.New("caller is not the swap initiator")
	// ErrSwapCompleted is returned when cancelling a completed swap
	ErrSwapCompleted = errors.New("swap already completed")
	// ErrSwapTerminal is returned when cancelling a failed or refunded swap
	ErrSwapTerminal = errors.New("swap already terminal")
	// ErrSwapNotActive is returned when advancing a swap that is not Initiated or InProgress
	ErrSwapNotActive = errors.New("swap is not active")
	// ErrDeadlineExceeded is returned when an advance attempt finds the deadline passed
	ErrDeadlineExceeded = errors.New("swap deadline exceeded")
	// ErrStepPending is returned while the previous step request is unresolved
	ErrStepPending = errors.New("step request already pending")
	// ErrStepMismatch is returned when dispatching a step other than the current one
	ErrStepMismatch = errors.New("step is not the swap's current step")
	// ErrDispatchRejected is returned when the transport refuses a step request
	ErrDispatchRejected = errors.New("step dispatch rejected")
	// ErrNoStepExecutor is returned when an inbound step request arrives without an executor
	ErrNoStepExecutor = errors.New("no step executor configured")
	// ErrDecode is the root of every payload decoding failure
	ErrDecode = errors.New("decode error")
)

func rejected(format string, args ...any) error {
	return errors.Wrapf(ErrRejectedRoute, format, args...)
}
