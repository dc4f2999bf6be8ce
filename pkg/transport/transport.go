package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// ModuleName identifies this engine as the sender of step requests
	ModuleName = "cross_chain_swap"
	// DexModule is the receiving module on the remote chain
	DexModule = "dex_aggregator"
)

// ErrRejected is returned by dispatchers that refuse a request
var ErrRejected = errors.New("request rejected by transport")

// Request is an outbound cross-chain step request. Body is self-describing;
// the remaining fields let the transport route and correlate it.
type Request struct {
	Nonce   uint64    `json:"nonce"`
	SwapID  uint32    `json:"swap_id"`
	Step    uint32    `json:"step"`
	Source  string    `json:"source"`
	Dest    string    `json:"dest"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Timeout time.Time `json:"timeout"`
	Body    []byte    `json:"body"`
}

// Dispatcher hands requests to the cross-chain transport. A nil error means
// the transport accepted the request; delivery is the transport's concern.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) error
}

// ResponseHandler receives inbound responses keyed by request nonce
type ResponseHandler func(nonce uint64, payload []byte)

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, req *Request) error

func (f DispatcherFunc) Dispatch(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// Outbox accepts every request and keeps it for inspection. Responses are
// delivered out of band, for example with the CLI respond command.
type Outbox struct {
	mu       sync.Mutex
	requests []Request
	reject   error
}

// NewOutbox creates an empty outbox
func NewOutbox() *Outbox {
	return &Outbox{}
}

// RejectWith makes subsequent dispatches fail with err; nil accepts again
func (o *Outbox) RejectWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reject = err
}

func (o *Outbox) Dispatch(ctx context.Context, req *Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.reject != nil {
		return o.reject
	}
	cp := *req
	cp.Body = append([]byte(nil), req.Body...)
	o.requests = append(o.requests, cp)
	return nil
}

// Requests returns all accepted requests in dispatch order
func (o *Outbox) Requests() []Request {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Request, len(o.requests))
	copy(out, o.requests)
	return out
}

// Last returns the most recently accepted request
func (o *Outbox) Last() (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.requests) == 0 {
		return Request{}, false
	}
	return o.requests[len(o.requests)-1], true
}
