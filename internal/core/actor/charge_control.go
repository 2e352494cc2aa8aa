package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/events"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"
	. "github.com/berfenger/solarcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const (
	DEFAULT_TICK_TIMEOUT = 30 * time.Second
)

var ErrTickTimeout = errors.New("control tick did not complete in time")

type ChargeControlActor struct {
	ActorWithStates
	stash       *Stash
	pending     *Slot
	config      *config.Config
	logic       port.ChargeControlLogic
	eventStream *eventstream.EventStream
	status      domain.ControllerStatus

	logger *zap.Logger
}

type tickCompleted struct {
	Result domain.TickResult
	Status domain.ControllerStatus
	Error  error
}

func NewChargeControlActor(config *config.Config, logic port.ChargeControlLogic, eventStream *eventstream.EventStream, logger *zap.Logger) *ChargeControlActor {
	act := &ChargeControlActor{
		config:      config,
		logic:       logic,
		stash:       &Stash{},
		pending:     &Slot{},
		eventStream: eventStream,
		logger:      ActorLogger(domain.ACTOR_ID_CHARGE_CONTROL, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CCStartingState{
		actor: act,
	})
	return act
}

func (state *ChargeControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CCStartingState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCStartingState) Name() string {
	return "starting"
}

func (state CCStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("charge_control@starting started")
		state.actor.status = state.actor.logic.Status()
		state.actor.publishStatus()
		state.actor.Become(CCIdleState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("charge_control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state, waiting for telemetry

type CCIdleState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCIdleState) Name() string {
	return "idle"
}

func (state CCIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charge_control@idle: ActorHealthRequest")
		state.actor.respondHealth(ctx)
	case domain.TelemetryUpdate:
		state.actor.startTick(ctx, msg.Telemetry)
		state.actor.BecomeStacked(CCTickingState{
			actor: state.actor,
		})
	case domain.ChargeControlRequest:
		switch cmd := msg.(type) {
		case domain.ChargeControlEnableRequest:
			state.actor.logger.Sugar().Debugf("charge_control@idle: cmd enable %t", cmd.Enable)
			changed := state.actor.logic.SetEnabled(cmd.Enable)
			if changed {
				state.actor.logger.Sugar().Infof("charge control %s", enabledText(cmd.Enable))
			}
			state.actor.status.Enabled = cmd.Enable
			state.actor.eventStream.Publish(events.ChargeControlSwitchEvent(cmd.Enable))
			ForRequest(cmd).Respond(ctx, domain.ChargeControlEnableResponse{
				Changed: changed,
			})
		default:
			state.actor.handleStatusRequest(ctx, msg)
		}
	default:
		state.actor.logger.Debug("charge_control@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Ticking state, a control loop evaluation runs in background

type CCTickingState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCTickingState) Name() string {
	return "ticking"
}

func (state CCTickingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charge_control@ticking: ActorHealthRequest")
		state.actor.respondHealth(ctx)
	case tickCompleted:
		if msg.Error != nil {
			state.actor.logger.Error("charge_control@ticking: tick failed", zap.Error(msg.Error))
		} else {
			state.actor.status = msg.Status
			if msg.Result.Outcome != domain.TICK_OUTCOME_NO_CHANGE {
				state.actor.logger.Debug("charge_control@ticking: tick completed", zap.String("outcome", string(msg.Result.Outcome)))
			}
		}
		state.actor.publishStatus()
		state.actor.UnbecomeStacked()
		// newest telemetry first, then anything that waited for the tick
		state.actor.pending.Take(ctx)
		state.actor.stash.UnstashAll(ctx)
	case domain.TelemetryUpdate:
		if state.actor.pending.Put(ctx, msg) {
			state.actor.logger.Debug("charge_control@ticking: telemetry superseded")
		}
	case domain.ChargeControlEnableRequest:
		state.actor.stash.Stash(ctx, msg)
	case domain.ChargeControlRequest:
		state.actor.handleStatusRequest(ctx, msg)
	default:
		state.actor.logger.Debug("charge_control@ticking: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state *ChargeControlActor) startTick(ctx actor.Context, telemetry domain.Telemetry) {
	timeout := state.config.Control.TickTimeout()
	if timeout <= 0 {
		timeout = DEFAULT_TICK_TIMEOUT
	}
	logic := state.logic
	NewBackgroundTaskNoError(ctx, func(c context.Context) *tickCompleted {
		result := logic.Tick(c, telemetry)
		return &tickCompleted{
			Result: result,
			Status: logic.Status(),
		}
	}).WithTimeout(timeout).Recover(func(err error) tickCompleted {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTickTimeout
		}
		return tickCompleted{Error: err}
	}).PipeTo(ctx.Self())
}

func (state *ChargeControlActor) handleStatusRequest(ctx actor.Context, msg domain.ChargeControlRequest) {
	switch cmd := msg.(type) {
	case domain.ChargeControlStatusRequest:
		ForRequest(cmd).Respond(ctx, domain.ChargeControlStatusResponse{
			Status: state.status,
		})
	case domain.ChargeControlPublishStatusRequest:
		state.publishStatus()
	}
}

func (state *ChargeControlActor) publishStatus() {
	for _, ev := range events.ControllerStatusToUpdateEvents(state.status) {
		state.eventStream.Publish(ev)
	}
}

func (state *ChargeControlActor) respondHealth(ctx actor.Context) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CHARGE_CONTROL,
		Healthy: true,
		State:   state.StateName(),
	})
}

func enabledText(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
