package actor

import (
	"fmt"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/events"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"
	. "github.com/berfenger/solarcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// TelemetryActor decodes bridge payloads, republishes them as sensors and
// forwards every snapshot to the charge control actor
type TelemetryActor struct {
	behavior           actor.Behavior
	config             *config.Config
	chargeControlActor *actor.PID
	eventStream        *eventstream.EventStream
	clock              port.Clock
	received           uint64
	rejected           uint64

	logger *zap.Logger
}

func NewTelemetryActor(config *config.Config, chargeControlActor *actor.PID, eventStream *eventstream.EventStream, clock port.Clock, logger *zap.Logger) *TelemetryActor {
	if clock == nil {
		clock = port.SystemClock{}
	}
	act := &TelemetryActor{
		config:             config,
		chargeControlActor: chargeControlActor,
		behavior:           actor.NewBehavior(),
		eventStream:        eventStream,
		clock:              clock,
		logger:             ActorLogger(domain.ACTOR_ID_TELEMETRY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *TelemetryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TelemetryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("telemetry@default started")
	case domain.ActorHealthRequest:
		state.logger.Debug("telemetry@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TELEMETRY,
			Healthy: true,
			State:   fmt.Sprintf("received=%d rejected=%d", state.received, state.rejected),
		})
	case domain.TelemetryMessage:
		tl, err := domain.ParseTelemetry(msg.Payload, state.gridPowerScale(), state.clock.Now())
		if err != nil {
			state.rejected++
			state.logger.Warn("telemetry@default: rejected payload", zap.String("topic", msg.Topic), zap.Error(err))
			return
		}
		state.received++
		for _, ev := range events.TelemetryToUpdateEvents(tl) {
			state.eventStream.Publish(ev)
		}
		if state.chargeControlActor != nil {
			ctx.Send(state.chargeControlActor, domain.TelemetryUpdate{Telemetry: tl})
		}
	default:
		state.logger.Debug("telemetry@default: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TelemetryActor) gridPowerScale() float64 {
	if state.config.Control.GridPowerScale == 0 {
		return 1
	}
	return state.config.Control.GridPowerScale
}
