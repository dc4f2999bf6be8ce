package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher is the subset of *nats.Conn used for publishing events
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// NATSEmitter publishes events as JSON on "<prefix>.<kind>"
type NATSEmitter struct {
	conn   Publisher
	prefix string
	logger *logrus.Logger
}

// NewNATSEmitter creates an emitter publishing under prefix
func NewNATSEmitter(conn Publisher, prefix string, logger *logrus.Logger) *NATSEmitter {
	return &NATSEmitter{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject an event of the given kind is published on
func (n *NATSEmitter) Subject(kind Kind) string {
	return n.prefix + "." + string(kind)
}

// Emit publishes the event. Publishing is best-effort; failures are logged
// and never reach the emitting component.
func (n *NATSEmitter) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		n.logger.WithError(err).WithField("kind", e.Kind).Error("failed to marshal event")
		return
	}

	if err := n.conn.Publish(n.Subject(e.Kind), data); err != nil {
		n.logger.WithError(err).WithField("kind", e.Kind).Warn("failed to publish event")
	}
}
