package notify

import (
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// EventStreamNotifier logs each message and publishes it on the actor event stream,
// where the mqtt actor picks it up. Publish only enqueues to subscribers, so Notify never blocks on the broker.
type EventStreamNotifier struct {
	eventStream *eventstream.EventStream
	clock       port.Clock
	logger      *zap.Logger
}

func NewEventStreamNotifier(eventStream *eventstream.EventStream, clock port.Clock, logger *zap.Logger) *EventStreamNotifier {
	if clock == nil {
		clock = port.SystemClock{}
	}
	return &EventStreamNotifier{
		eventStream: eventStream,
		clock:       clock,
		logger:      logger,
	}
}

func (n *EventStreamNotifier) Notify(text string) {
	n.logger.Info("notify: " + text)
	n.eventStream.Publish(domain.NotificationEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_NOTIFICATION},
		Text:                   text,
		At:                     n.clock.Now(),
	})
}

// ensure interface compliance
var _ port.Notifier = (*EventStreamNotifier)(nil)
