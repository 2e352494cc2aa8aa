package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	qlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func probeActor(as *actor.ActorSystem) (*actor.PID, chan any) {
	received := make(chan any, 10)
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.ChargeControlPublishStatusRequest:
			received <- msg
		}
	}))
	return pid, received
}

func TestStatusJobFunction(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()

	pid, received := probeActor(as)

	ok, err := StatusJobFunction(as.Root, pid)(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case msg := <-received:
		assert.IsType(t, domain.ChargeControlPublishStatusRequest{}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("status request not delivered")
	}
}

func TestScheduleStatusJob(t *testing.T) {
	as := actor.NewActorSystem()
	defer as.Shutdown()

	pid, received := probeActor(as)

	sched := NewScheduler(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	err := ScheduleStatusJob(sched, config.StatusConfig{Cron: "* * * * * *"}, time.UTC, as.Root, pid)
	require.NoError(t, err)

	keys, err := sched.GetJobKeys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, STATUS_JOB_KEY, keys[0].Name())

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled status request not delivered")
	}
}

func TestScheduleStatusJobInvalidCron(t *testing.T) {
	sched := quartz.NewStdScheduler()

	err := ScheduleStatusJob(sched, config.StatusConfig{Cron: "not a cron"}, time.UTC, nil, nil)
	assert.Error(t, err)

	err = ScheduleStatusJob(sched, config.StatusConfig{}, time.UTC, nil, nil)
	assert.Error(t, err)
}

func TestQuartzLevel(t *testing.T) {
	assert.Equal(t, qlogger.LevelDebug, quartzLevel(zap.DebugLevel))
	assert.Equal(t, qlogger.LevelWarn, quartzLevel(zap.WarnLevel))
	assert.Equal(t, qlogger.LevelError, quartzLevel(zap.FatalLevel))
}
