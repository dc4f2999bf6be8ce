package transport

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Message headers carried next to the request body
const (
	HeaderNonce   = "Xchain-Nonce"
	HeaderSwapID  = "Xchain-Swap-Id"
	HeaderStep    = "Xchain-Step"
	HeaderSource  = "Xchain-Source"
	HeaderFrom    = "Xchain-From"
	HeaderTo      = "Xchain-To"
	HeaderTimeout = "Xchain-Timeout"
)

// Conn is the subset of *nats.Conn the transport uses
type Conn interface {
	PublishMsg(m *nats.Msg) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

var _ Conn = (*nats.Conn)(nil)

// NATS publishes step requests on "<requestSubject>.<dest chain>" and
// receives responses on responseSubject, correlated by the nonce header.
type NATS struct {
	conn            Conn
	requestSubject  string
	responseSubject string
	logger          *logrus.Logger

	mu    sync.Mutex
	sub   *nats.Subscription
	serve *nats.Subscription
}

// RequestHandler answers an inbound step request with a response envelope
type RequestHandler func(ctx context.Context, body []byte) ([]byte, error)

// Connect dials a NATS server with the reconnect policy used by the daemon
func Connect(url string, timeout time.Duration, logger *logrus.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Timeout(timeout),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", url)
	}
	return conn, nil
}

// NewNATS creates a NATS transport over an established connection
func NewNATS(conn Conn, requestSubject, responseSubject string, logger *logrus.Logger) *NATS {
	return &NATS{
		conn:            conn,
		requestSubject:  requestSubject,
		responseSubject: responseSubject,
		logger:          logger,
	}
}

// Dispatch publishes the request. The publish is accepted once the client
// buffered it; the remote side answers asynchronously.
func (n *NATS) Dispatch(ctx context.Context, req *Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(n.requestSubject + "." + req.Dest)
	msg.Header.Set(HeaderNonce, strconv.FormatUint(req.Nonce, 10))
	msg.Header.Set(HeaderSwapID, strconv.FormatUint(uint64(req.SwapID), 10))
	msg.Header.Set(HeaderStep, strconv.FormatUint(uint64(req.Step), 10))
	msg.Header.Set(HeaderSource, req.Source)
	msg.Header.Set(HeaderFrom, req.From)
	msg.Header.Set(HeaderTo, req.To)
	msg.Header.Set(HeaderTimeout, strconv.FormatInt(req.Timeout.UnixMilli(), 10))
	msg.Data = req.Body
	// responses come back on our own subject so engines sharing a server
	// never see each other's nonces
	msg.Reply = n.responseSubject

	if err := n.conn.PublishMsg(msg); err != nil {
		return errors.Wrap(ErrRejected, err.Error())
	}

	n.logger.WithFields(logrus.Fields{
		"subject": msg.Subject,
		"nonce":   req.Nonce,
		"swap_id": req.SwapID,
		"step":    req.Step,
	}).Debug("step request published")

	return nil
}

// Subscribe starts delivering responses to handler. Messages without a
// parseable nonce header are dropped.
func (n *NATS) Subscribe(handler ResponseHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sub != nil {
		return errors.New("already subscribed to responses")
	}

	sub, err := n.conn.Subscribe(n.responseSubject, func(msg *nats.Msg) {
		nonce, err := ParseNonce(msg)
		if err != nil {
			n.logger.WithError(err).WithField("subject", msg.Subject).Warn("dropping response without nonce")
			return
		}
		handler(nonce, msg.Data)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", n.responseSubject)
	}

	n.sub = sub
	return nil
}

// Serve answers requests addressed to chain. Each answer is published to
// the request's reply subject carrying the request's nonce header. Requests
// the handler cannot process get no answer; the sender's deadline covers them.
func (n *NATS) Serve(ctx context.Context, chain string, handler RequestHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.serve != nil {
		return errors.New("already serving requests")
	}

	subject := n.requestSubject + "." + chain
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		log := n.logger.WithField("subject", msg.Subject)

		nonce, err := ParseNonce(msg)
		if err != nil || msg.Reply == "" {
			log.Warn("dropping request without nonce or reply subject")
			return
		}

		body, err := handler(ctx, msg.Data)
		if err != nil {
			log.WithError(err).WithField("nonce", nonce).Warn("request not handled")
			return
		}

		resp := nats.NewMsg(msg.Reply)
		resp.Header.Set(HeaderNonce, strconv.FormatUint(nonce, 10))
		resp.Data = body
		if err := n.conn.PublishMsg(resp); err != nil {
			log.WithError(err).WithField("nonce", nonce).Warn("failed to publish response")
		}
	})
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", subject)
	}

	n.serve = sub
	return nil
}

// Close stops both subscriptions
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var first error
	for _, sub := range []**nats.Subscription{&n.sub, &n.serve} {
		if *sub == nil {
			continue
		}
		if err := (*sub).Unsubscribe(); err != nil && first == nil {
			first = err
		}
		*sub = nil
	}
	return first
}

// ParseNonce reads the nonce header of a response message
func ParseNonce(msg *nats.Msg) (uint64, error) {
	if msg.Header == nil {
		return 0, errors.New("missing headers")
	}
	raw := msg.Header.Get(HeaderNonce)
	if raw == "" {
		return 0, errors.Errorf("missing %s header", HeaderNonce)
	}
	nonce, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s header", HeaderNonce)
	}
	return nonce, nil
}
