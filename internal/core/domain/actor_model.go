package domain

const (
	ACTOR_ID_MASTER         = "master"
	ACTOR_ID_MQTT           = "mqtt"
	ACTOR_ID_TELEMETRY      = "telemetry"
	ACTOR_ID_CHARGE_CONTROL = "charge_control"
	ACTOR_ID_HA_DISCOVERY   = "hadiscovery"
)

// TelemetryMessage carries a raw bridge payload received from MQTT
type TelemetryMessage struct {
	Topic   string
	Payload []byte
}

// TelemetryUpdate carries a decoded snapshot to the control actor
type TelemetryUpdate struct {
	Telemetry Telemetry
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
