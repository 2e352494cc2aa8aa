package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	mqttActor *actor.PID

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// discovery is only published once MQTT is up
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 5*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}

		sensors, switches := DiscoveryEntities(state.config)

		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors:  sensors,
			Switches: switches,
		}, 5*time.Second), func(err error) any {
			return domain.PublishDiscoveryResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
		state.behavior.Become(state.WaitingPublishReceive)
	default:
		state.logger.Debug("hadiscovery@healthcheck: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingPublishReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Info("home assistant discovery published")
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@publish: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

// DiscoveryEntities lists every entity announced to Home Assistant
func DiscoveryEntities(config *config.Config) ([]domain.GenericSensor, []domain.GenericSwitch) {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(config.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	chargerDevice := domain.ChargerDevice(config.Fleet.VIN)
	chargerDevice.ViaDevice = bridgeDevice.Id
	telemetrySensors := domain.TelemetrySensors(chargerDevice)
	for i := range telemetrySensors {
		// full device description goes out once
		if i > 0 {
			telemetrySensors[i].Device = domain.IdDevice(chargerDevice)
		}
		sensors = append(sensors, telemetrySensors[i])
	}
	sensors = append(sensors, domain.ControllerSensors(domain.IdDevice(chargerDevice))...)

	switches := domain.ChargeControlSwitches(domain.IdDevice(chargerDevice))

	return sensors, switches
}
