package swap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Action is the discriminant byte leading every step payload
type Action byte

const (
	ActionExecuteStep Action = 1
	ActionQueryStatus Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionExecuteStep:
		return "execute_step"
	case ActionQueryStatus:
		return "query_status"
	default:
		return fmt.Sprintf("action(%d)", byte(a))
	}
}

const (
	amountLen = 16
	headerLen = 1 + 4 + 4
)

// DecodeError describes a malformed payload
type DecodeError struct {
	Reason string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at byte %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Payload is a decoded request body. The set of implementations is closed:
// *StepPayload and *QueryPayload.
type Payload interface {
	Action() Action
	Encode() ([]byte, error)
}

// StepPayload asks the remote side to execute one hop of a swap.
//
// Wire layout: action(1) | swap id u32 LE | step u32 LE | source asset | 0x00 |
// target asset | 0x00 | amount u128 LE (16 bytes)
type StepPayload struct {
	SwapID      uint32
	Step        uint32
	SourceAsset string
	TargetAsset string
	Amount      *uint256.Int
}

func (*StepPayload) Action() Action { return ActionExecuteStep }

func (p *StepPayload) Encode() ([]byte, error) {
	if strings.IndexByte(p.SourceAsset, 0) >= 0 || strings.IndexByte(p.TargetAsset, 0) >= 0 {
		return nil, errors.New("asset identifiers must not contain NUL bytes")
	}
	if p.Amount == nil || p.Amount.BitLen() > MaxAmountBits {
		return nil, errors.Errorf("amount must fit in %d bits", MaxAmountBits)
	}

	buf := make([]byte, 0, headerLen+len(p.SourceAsset)+len(p.TargetAsset)+2+amountLen)
	buf = append(buf, byte(ActionExecuteStep))
	buf = binary.LittleEndian.AppendUint32(buf, p.SwapID)
	buf = binary.LittleEndian.AppendUint32(buf, p.Step)
	buf = append(buf, p.SourceAsset...)
	buf = append(buf, 0)
	buf = append(buf, p.TargetAsset...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint64(buf, p.Amount[0])
	buf = binary.LittleEndian.AppendUint64(buf, p.Amount[1])
	return buf, nil
}

// QueryPayload asks for the status of a swap: action(1) | swap id u32 LE
type QueryPayload struct {
	SwapID uint32
}

func (*QueryPayload) Action() Action { return ActionQueryStatus }

func (p *QueryPayload) Encode() ([]byte, error) {
	buf := []byte{byte(ActionQueryStatus)}
	return binary.LittleEndian.AppendUint32(buf, p.SwapID), nil
}

// DecodePayload parses a request body. Unknown discriminants are rejected.
func DecodePayload(b []byte) (Payload, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}

	switch Action(b[0]) {
	case ActionExecuteStep:
		return decodeStep(b)
	case ActionQueryStatus:
		return decodeQuery(b)
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown action %d", b[0])}
	}
}

func decodeStep(b []byte) (*StepPayload, error) {
	if len(b) < headerLen {
		return nil, &DecodeError{Reason: "truncated step header", Offset: len(b)}
	}

	p := &StepPayload{
		SwapID: binary.LittleEndian.Uint32(b[1:5]),
		Step:   binary.LittleEndian.Uint32(b[5:9]),
	}

	off := headerLen
	src, n, err := readCString(b, off)
	if err != nil {
		return nil, err
	}
	off += n
	dst, n, err := readCString(b, off)
	if err != nil {
		return nil, err
	}
	off += n

	if len(b)-off != amountLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("amount must be %d bytes, got %d", amountLen, len(b)-off), Offset: off}
	}

	p.SourceAsset = src
	p.TargetAsset = dst
	p.Amount = &uint256.Int{
		binary.LittleEndian.Uint64(b[off : off+8]),
		binary.LittleEndian.Uint64(b[off+8 : off+16]),
		0, 0,
	}
	return p, nil
}

func decodeQuery(b []byte) (*QueryPayload, error) {
	if len(b) != 5 {
		return nil, &DecodeError{Reason: "status query must be 5 bytes", Offset: len(b)}
	}
	return &QueryPayload{SwapID: binary.LittleEndian.Uint32(b[1:5])}, nil
}

// readCString reads a NUL terminated string starting at off and returns the
// number of bytes consumed including the terminator.
func readCString(b []byte, off int) (string, int, error) {
	idx := bytes.IndexByte(b[off:], 0)
	if idx < 0 {
		return "", 0, &DecodeError{Reason: "missing NUL terminator", Offset: off}
	}
	return string(b[off : off+idx]), idx + 1, nil
}
