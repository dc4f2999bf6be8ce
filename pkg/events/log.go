package events

import (
	"github.com/sirupsen/logrus"
)

// LogEmitter writes every event as a structured log line
type LogEmitter struct {
	logger *logrus.Logger
}

// NewLogEmitter creates an emitter backed by logger
func NewLogEmitter(logger *logrus.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (l *LogEmitter) Emit(e Event) {
	l.logger.WithFields(logrus.Fields{
		"event_id": e.ID,
		"kind":     e.Kind,
		"payload":  e.Payload,
	}).Info("event emitted")
}
