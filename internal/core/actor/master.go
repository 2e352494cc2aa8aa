package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/solarcharge2mqtt/internal/adapter/actor"
	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"
	. "github.com/berfenger/solarcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	logic              port.ChargeControlLogic
	clock              port.Clock
	mqttActor          *actor.PID
	telemetryActor     *actor.PID
	chargeControlActor *actor.PID
	mqttActorProvider  MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	mqttActorHealthy          bool
	telemetryActorHealthy     bool
	chargeControlActorHealthy bool
	checksReceived            int
	respondTo                 *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, eventStream *eventstream.EventStream, logic port.ChargeControlLogic,
	clock port.Clock, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	if eventStream == nil {
		eventStream = &eventstream.EventStream{}
	}
	act := &MasterOfPuppetsActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:       eventStream,
		logic:             logic,
		clock:             clock,
		mqttActorProvider: mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start ChargeControl child
		chargeControlActorPID, err := state.startChargeControlActor(ctx)
		if err != nil {
			panic(err)
		}
		state.chargeControlActor = chargeControlActorPID

		// start Telemetry child
		telemetryActorPID, err := state.startTelemetryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.telemetryActor = telemetryActorPID

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Telemetry Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.telemetryActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_TELEMETRY,
				Healthy: false,
			}
		})
		// ChargeControl Actor Request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.chargeControlActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CHARGE_CONTROL,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default unknown command", zap.Error(err))
				return
			}
			ctx.Send(state.chargeControlActor, cmd)
		}
	case domain.TelemetryMessage:
		ctx.Send(state.telemetryActor, msg)
	case domain.ChargeControlRequest:
		// status requests from the HTTP server and scheduled jobs
		ctx.Forward(state.chargeControlActor)
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.Id))
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			case domain.ACTOR_ID_TELEMETRY:
				state.currentHealthCheck.telemetryActorHealthy = true
			case domain.ACTOR_ID_CHARGE_CONTROL:
				state.currentHealthCheck.chargeControlActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	case domain.TelemetryMessage:
		// telemetry is not worth delaying
		ctx.Send(state.telemetryActor, msg)
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startChargeControlActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	chargeControlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(&state.config, state.logic, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	chargeControlPID, err := ctx.SpawnNamed(chargeControlProps, domain.ACTOR_ID_CHARGE_CONTROL)
	if err != nil {
		return nil, err
	}

	return chargeControlPID, nil
}

func (state *MasterOfPuppetsActor) startTelemetryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	telemetryProps := actor.PropsFromProducer(func() actor.Actor {
		return NewTelemetryActor(&state.config, state.chargeControlActor, state.eventStream, state.clock, state.logger)
	}, actor.WithSupervisor(supervisor))
	telemetryPID, err := ctx.SpawnNamed(telemetryProps, domain.ACTOR_ID_TELEMETRY)
	if err != nil {
		return nil, err
	}

	return telemetryPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset() {
	state.mqttActorHealthy = false
	state.telemetryActorHealthy = false
	state.chargeControlActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.mqttActorHealthy && state.telemetryActorHealthy && state.chargeControlActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
