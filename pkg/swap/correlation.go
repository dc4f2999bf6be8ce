package swap

import (
	"sort"

	"xchain-swap/pkg/metrics"
)

// correlator maps in-flight nonces to swaps and back. The two maps are kept
// as mutual inverses: every entry in byNonce has its twin in bySwap.
type correlator struct {
	// nonce is the last allocated value; the first request gets 1
	nonce   uint64
	byNonce map[uint64]*PendingRequest
	bySwap  map[uint32]uint64
}

func newCorrelator() *correlator {
	return &correlator{
		byNonce: make(map[uint64]*PendingRequest),
		bySwap:  make(map[uint32]uint64),
	}
}

// next allocates a nonce. Allocated nonces are never handed out again, even
// if the request they were meant for is rejected.
func (c *correlator) next() uint64 {
	c.nonce++
	return c.nonce
}

func (c *correlator) track(p *PendingRequest) {
	c.byNonce[p.Nonce] = p
	c.bySwap[p.SwapID] = p.Nonce
	metrics.PendingRequests.Set(float64(len(c.byNonce)))
}

// resolve removes and returns the entry for nonce
func (c *correlator) resolve(nonce uint64) (*PendingRequest, bool) {
	p, ok := c.byNonce[nonce]
	if !ok {
		return nil, false
	}
	delete(c.byNonce, nonce)
	delete(c.bySwap, p.SwapID)
	metrics.PendingRequests.Set(float64(len(c.byNonce)))
	return p, true
}

func (c *correlator) forSwap(id uint32) (*PendingRequest, bool) {
	nonce, ok := c.bySwap[id]
	if !ok {
		return nil, false
	}
	return c.byNonce[nonce], true
}

func (c *correlator) dropSwap(id uint32) {
	if nonce, ok := c.bySwap[id]; ok {
		c.resolve(nonce)
	}
}

// pending returns the in-flight requests ordered by nonce
func (c *correlator) pending() []PendingRequest {
	out := make([]PendingRequest, 0, len(c.byNonce))
	for _, p := range c.byNonce {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out
}

// PendingNonce returns the nonce of the swap's in-flight request, if any
func (e *Engine) PendingNonce(id uint32) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.corr.forSwap(id)
	if !ok {
		return 0, false
	}
	return p.Nonce, true
}

// Pending lists every in-flight request
func (e *Engine) Pending() []PendingRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.corr.pending()
}

// LastNonce returns the most recently allocated nonce, 0 if none
func (e *Engine) LastNonce() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.corr.nonce
}

// SwapForNonce returns the swap an in-flight nonce belongs to
func (e *Engine) SwapForNonce(nonce uint64) (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.corr.byNonce[nonce]
	if !ok {
		return 0, false
	}
	return p.SwapID, true
}
