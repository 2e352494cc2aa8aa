package actor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/util"
	"github.com/berfenger/solarcharge2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func publishedMessages(t *testing.T, context *actor.RootContext, pid *actor.PID) map[string]string {
	result, err := context.RequestFuture(pid, PublishedMessagesRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(PublishedMessagesResponse)
	require.True(t, ok)
	return resp.Messages
}

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_GRID_POWER,
		},
		Value: 245,
	})
	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_GRID_VOLTAGE,
		},
		Value:    230.52,
		Decimals: 1,
	})
	es.Publish(domain.SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SWITCH_ID_CHARGE_CONTROL,
		},
		Value: true,
	})
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	es.Publish(domain.NotificationEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_NOTIFICATION,
		},
		Text: "Daily counter reset",
		At:   at,
	})

	assert.Eventually(t, func() bool {
		return len(publishedMessages(t, context, pid)) >= 4
	}, 2*time.Second, 50*time.Millisecond)

	messages := publishedMessages(t, context, pid)
	assert.Equal(t, "245", messages["solarcharge/sensor/grid_power/state"])
	assert.Equal(t, "230.5", messages["solarcharge/sensor/grid_voltage/state"])
	assert.Equal(t, "on", messages["solarcharge/switch/charge_control/state"])

	var notification notificationPayload
	require.NoError(t, json.Unmarshal([]byte(messages["solarcharge/notification"]), &notification))
	assert.Equal(t, "Daily counter reset", notification.Text)
	assert.True(t, at.Equal(notification.At))

	err = context.StopFuture(pid).Wait()
	assert.NoError(t, err)
}

func TestMQTTActorDiscovery(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, nil, logger) })
	pid := context.Spawn(props)

	dev := domain.ChargerDevice(cfg.Fleet.VIN)
	result, err := context.RequestFuture(pid, domain.PublishDiscoveryRequest{
		Sensors:  domain.TelemetrySensors(dev),
		Switches: domain.ChargeControlSwitches(dev),
	}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.PublishDiscoveryResponse)
	require.True(t, ok)
	assert.False(t, resp.HasResponseError())

	messages := publishedMessages(t, context, pid)
	assert.Contains(t, messages, "homeassistant/switch/"+dev.Id+"/charge_control/config")
	assert.Len(t, messages, len(domain.TelemetrySensors(dev))+1)
}
