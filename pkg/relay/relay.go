package relay

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"xchain-swap/pkg/payment"
	"xchain-swap/pkg/store"
	"xchain-swap/pkg/swap"
	"xchain-swap/pkg/transport"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	MinRefreshInterval     = time.Second
)

// Transport is the part of the NATS transport the relay drives
type Transport interface {
	Subscribe(handler transport.ResponseHandler) error
	Serve(ctx context.Context, chain string, handler transport.RequestHandler) error
	Close() error
}

// Config tunes the relay
type Config struct {
	// AutoAdvance dispatches the next step as soon as a step is confirmed
	AutoAdvance bool
	// LegacyResponses treats any non-empty response as success instead of
	// decoding the status envelope
	LegacyResponses bool
	// ServeChain, when set, answers remote requests addressed to this chain
	ServeChain string
	// RefreshInterval is how often the state file is re-read so the daemon's
	// view follows changes written by other processes
	RefreshInterval time.Duration
}

// Relay is the long running side of the engine: it feeds transport responses
// into the engine and answers remote requests. With a storage, the state file
// is the source of truth: every response is applied as a locked
// read-modify-write so CLI commands working on the same file are never
// overwritten and nonces stay unique across processes.
type Relay struct {
	engine    *swap.Engine
	overlay   *payment.Overlay
	storage   *store.Storage
	transport Transport
	cfg       Config
	logger    *logrus.Logger

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a relay. overlay must wrap engine. storage may be nil to keep
// state in memory only.
func New(engine *swap.Engine, overlay *payment.Overlay, storage *store.Storage, tr Transport, cfg Config, logger *logrus.Logger) *Relay {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.RefreshInterval < MinRefreshInterval {
		cfg.RefreshInterval = MinRefreshInterval
	}

	return &Relay{
		engine:    engine,
		overlay:   overlay,
		storage:   storage,
		transport: tr,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start subscribes to responses and begins periodic refreshes
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("relay is already running")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	if err := r.transport.Subscribe(r.HandleResponse); err != nil {
		r.cancel()
		return err
	}
	if r.cfg.ServeChain != "" {
		if err := r.transport.Serve(r.ctx, r.cfg.ServeChain, r.serveRequest); err != nil {
			r.cancel()
			r.transport.Close()
			return err
		}
	}

	r.running = true
	r.stopChan = make(chan struct{})
	r.done = make(chan struct{})
	go r.refreshLoop()

	r.logger.WithFields(logrus.Fields{
		"auto_advance":     r.cfg.AutoAdvance,
		"serve_chain":      r.cfg.ServeChain,
		"refresh_interval": r.cfg.RefreshInterval.String(),
	}).Info("relay started")
	return nil
}

// Stop unsubscribes and waits for the refresh loop. Nothing is written on
// stop: every change was saved when it was made.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopChan)
	done := r.done
	r.mu.Unlock()

	err := r.transport.Close()
	<-done
	r.cancel()

	r.logger.Info("relay stopped")
	return err
}

// HandleResponse applies one inbound response against the latest state.
// Unknown nonces are dropped by the engine; with AutoAdvance a confirmed step
// that leaves the swap in progress immediately dispatches the next one.
func (r *Relay) HandleResponse(nonce uint64, payload []byte) {
	if r.storage == nil {
		r.applyResponse(nonce, payload)
		return
	}

	err := r.storage.Update(r.overlay, func() error {
		r.applyResponse(nonce, payload)
		return nil
	})
	if err != nil {
		r.logger.WithError(err).WithField("nonce", nonce).Error("response not applied")
	}
}

func (r *Relay) applyResponse(nonce uint64, payload []byte) {
	swapID, known := r.engine.SwapForNonce(nonce)

	var matched bool
	if r.cfg.LegacyResponses {
		matched = r.engine.OnResponse(nonce, payload)
	} else {
		matched = r.engine.DeliverResponse(nonce, payload)
	}
	if !matched {
		r.logger.WithField("nonce", nonce).Debug("response did not match a pending request")
		return
	}

	if !r.cfg.AutoAdvance || !known {
		return
	}
	progress, ok := r.engine.Progress(swapID)
	if !ok || progress.Status != swap.StatusInProgress {
		return
	}

	log := r.logger.WithFields(logrus.Fields{
		"swap_id": swapID,
		"step":    progress.CurrentStep,
	})
	if err := r.engine.ExecuteNextStep(r.context(), swapID); err != nil {
		log.WithError(err).Warn("auto advance failed")
		return
	}
	log.Debug("auto advanced")
}

// serveRequest answers a remote request from the latest state
func (r *Relay) serveRequest(ctx context.Context, body []byte) ([]byte, error) {
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r.engine.HandleRequest(ctx, body)
}

func (r *Relay) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Refresh reloads engine and overlay from the state file, if one is configured
func (r *Relay) Refresh() error {
	if r.storage == nil {
		return nil
	}
	if err := r.storage.Load(r.overlay); err != nil {
		return errors.Wrap(err, "failed to refresh state")
	}
	return nil
}

func (r *Relay) refreshLoop() {
	defer close(r.done)

	if r.storage == nil {
		<-r.stopChan
		return
	}

	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.Refresh(); err != nil {
				r.logger.WithError(err).Error("periodic refresh failed")
			}
		}
	}
}
