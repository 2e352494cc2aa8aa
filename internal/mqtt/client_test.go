package mqtt

import (
	"testing"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Host:           "localhost",
			Port:           1883,
			BaseTopic:      "solarcharge",
			TelemetryTopic: "solar_bridge/+/state",
		},
	}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("loremTopic")
	cmd, err := parseSwitchCommand(r, "loremTopic/switch/my_device/command", "on")

	assert.NoError(err)
	assert.Equal("my_device", cmd.DeviceId, "device extract")
	assert.Equal("switch", cmd.Command)
	assert.Equal("on", cmd.Payload)
}

func TestSwitchCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := switchCommandExtractor("loremTopic")
	_, err := parseSwitchCommand(r, "loremTopic/switch/my_device/state", "on")
	assert.Error(err, "state topic is not a command")

	_, err = parseSwitchCommand(r, "otherloremTopic/switch/my_device/command", "on")
	assert.Error(err, "base topic must match from the start")

	_, err = parseSwitchCommand(r, "loremTopic/switch/my_device/command", "maybe")
	assert.Error(err, "invalid payload")
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("solarcharge/bridge/state", c.BridgeStateTopic())
	assert.Equal("solarcharge/notification", c.NotificationTopic())
	assert.Equal("solar_bridge/+/state", c.TelemetryTopic())
	assert.Equal("solarcharge/sensor/grid_power/state", c.SensorStateTopic(domain.SENSOR_ID_GRID_POWER))
	assert.Equal("solarcharge/switch/charge_control/command", c.SwitchCommandTopic(domain.SWITCH_ID_CHARGE_CONTROL))
	assert.Equal("solarcharge/switch/+/command", c.commandTopic())
	assert.Equal("homeassistant", c.DiscoveryPrefix())
}

func TestHADiscoveryMessages(t *testing.T) {
	c := testClient()
	dev := domain.ChargerDevice("5YJ3E1EA7KF000001")
	bridge := domain.BridgeDevice("solarcharge")

	sensors := append(domain.BridgeSensors(bridge), domain.TelemetrySensors(dev)...)
	byId := map[string]HADiscoveryConfig{}
	for _, s := range sensors {
		byId[s.Id] = GenericSensorToHADiscoveryMessage(c, s)
	}

	require.Contains(t, byId, domain.SENSOR_ID_NOTIFICATION)
	assert.Equal(t, "solarcharge/notification", byId[domain.SENSOR_ID_NOTIFICATION].StateTopic)
	assert.NotEmpty(t, byId[domain.SENSOR_ID_NOTIFICATION].ValueTemplate)

	assert.Equal(t, "solarcharge/bridge/state", byId[domain.SENSOR_ID_BRIDGE_STATE].StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, byId[domain.SENSOR_ID_BRIDGE_STATE].PayloadOn)

	connected := byId[domain.SENSOR_ID_VEHICLE_CONNECTED]
	assert.Equal(t, "solarcharge/binary_sensor/vehicle_connected/state", connected.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ON, connected.PayloadOn)

	sw := domain.ChargeControlSwitches(dev)[0]
	swCfg := GenericSwitchToHADiscoveryMessage(c, sw)
	assert.Equal(t, "solarcharge/switch/charge_control/command", swCfg.CommandTopic)
	assert.Equal(t, "homeassistant/switch/"+dev.Id+"/charge_control/config", HADiscoverySwitchTopic(c.DiscoveryPrefix(), sw))
}
