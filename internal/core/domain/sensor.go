package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE          = "bridge"
	SENSOR_ID_NOTIFICATION          = "notification"
	SENSOR_ID_GRID_POWER            = "grid_power"
	SENSOR_ID_GRID_POWER_AVG        = "grid_power_avg"
	SENSOR_ID_GRID_VOLTAGE          = "grid_voltage"
	SENSOR_ID_VEHICLE_CURRENT       = "vehicle_current"
	SENSOR_ID_VEHICLE_CONNECTED     = "vehicle_connected"
	SENSOR_ID_VEHICLE_SOC           = "vehicle_soc"
	SENSOR_ID_VEHICLE_CHARGE_LIMIT  = "vehicle_charge_limit"
	SENSOR_ID_CHARGING_POWER        = "charging_power"
	SENSOR_ID_CHARGE_CURRENT_TARGET = "charge_current_target"
	SENSOR_ID_LAST_SENT_CURRENT     = "last_sent_current"
	SENSOR_ID_DAILY_COMMANDS        = "daily_commands"
	SENSOR_ID_CONTROLLER_STATE      = "controller_state"
	SENSOR_ID_LAST_OUTCOME          = "last_outcome"
	SENSOR_ID_LAST_DIRECTION        = "last_direction"
	SENSOR_ID_TOKEN_EXPIRES_AT      = "token_expires_at"
	SWITCH_ID_CHARGE_CONTROL        = "charge_control"
	STATE_CLASS_MEASUREMENT         = "measurement"
	STATE_CLASS_TOTAL_INCREASING    = "total_increasing"
	DEVICE_CLASS_BATTERY            = "battery"
	DEVICE_CLASS_CURRENT            = "current"
	DEVICE_CLASS_POWER              = "power"
	DEVICE_CLASS_VOLTAGE            = "voltage"
	DEVICE_CLASS_CONNECTIVITY       = "connectivity"
	DEVICE_CLASS_PLUG               = "plug"
	DEVICE_CLASS_TIMESTAMP          = "timestamp"
	ENTITY_CLASS_DIAGNOSTIC         = "diagnostic"
	ENTITY_CLASS_CONFIG             = "config"
	SENSOR_TYPE_SENSOR              = "sensor"
	SENSOR_TYPE_BINARY              = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("solarcharge_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "SolarCharge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SolarCharge %s", md5HashShort(baseTopic)),
	}
}

// ChargerDevice groups the entities of the controlled vehicle, keyed by VIN
func ChargerDevice(vin string) Device {
	return Device{
		Id:           fmt.Sprintf("sc_charger_%s", md5HashShort(vin)),
		Manufacturer: "Tesla",
		Model:        "Wall Connector",
		Name:         fmt.Sprintf("Solar charger %s", md5HashShort(vin)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Last notification
	sensors = append(sensors, GenericSensor{
		Device:         IdDevice(bridgeDevice),
		Id:             SENSOR_ID_NOTIFICATION,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last notification",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:message-text",
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_NOTIFICATION),
	})

	return sensors
}

func TelemetrySensors(chargerDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_GRID_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Grid power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_GRID_POWER),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_GRID_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Grid voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_GRID_VOLTAGE),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_VEHICLE_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Vehicle current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_VEHICLE_CURRENT),
	})

	sensors = append(sensors, GenericSensor{
		Device:      chargerDevice,
		Id:          SENSOR_ID_VEHICLE_CONNECTED,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Vehicle connected",
		DeviceClass: DEVICE_CLASS_PLUG,
		UniqueId:    uniqueId(chargerDevice.Id, SENSOR_ID_VEHICLE_CONNECTED),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_CHARGING_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charging power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_CHARGING_POWER),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_VEHICLE_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Vehicle state of charge",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_VEHICLE_SOC),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_VEHICLE_CHARGE_LIMIT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Vehicle charge limit",
		UnitOfMeasurement: "%",
		Icon:              "mdi:battery-charging-high",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_VEHICLE_CHARGE_LIMIT),
	})

	return sensors
}

func ControllerSensors(chargerDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_GRID_POWER_AVG,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Grid power average",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_GRID_POWER_AVG),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_CHARGE_CURRENT_TARGET,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charge current target",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_CHARGE_CURRENT_TARGET),
	})

	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                SENSOR_ID_LAST_SENT_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Last sent current",
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_LAST_SENT_CURRENT),
	})

	sensors = append(sensors, GenericSensor{
		Device:         chargerDevice,
		Id:             SENSOR_ID_DAILY_COMMANDS,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Daily commands",
		StateClass:     STATE_CLASS_MEASUREMENT,
		Icon:           "mdi:counter",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(chargerDevice.Id, SENSOR_ID_DAILY_COMMANDS),
	})

	sensors = append(sensors, GenericSensor{
		Device:         chargerDevice,
		Id:             SENSOR_ID_CONTROLLER_STATE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Controller state",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(chargerDevice.Id, SENSOR_ID_CONTROLLER_STATE),
	})

	sensors = append(sensors, GenericSensor{
		Device:         chargerDevice,
		Id:             SENSOR_ID_LAST_OUTCOME,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last control decision",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:scale-balance",
		UniqueId:       uniqueId(chargerDevice.Id, SENSOR_ID_LAST_OUTCOME),
	})

	sensors = append(sensors, GenericSensor{
		Device:     chargerDevice,
		Id:         SENSOR_ID_LAST_DIRECTION,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Last adjust direction",
		Icon:       "mdi:swap-vertical",
		UniqueId:   uniqueId(chargerDevice.Id, SENSOR_ID_LAST_DIRECTION),
	})

	sensors = append(sensors, GenericSensor{
		Device:           chargerDevice,
		Id:               SENSOR_ID_TOKEN_EXPIRES_AT,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Access token expiry",
		DeviceClass:      DEVICE_CLASS_TIMESTAMP,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(chargerDevice.Id, SENSOR_ID_TOKEN_EXPIRES_AT),
	})

	return sensors
}

func ChargeControlSwitches(chargerDevice Device) []GenericSwitch {

	var switches []GenericSwitch

	switches = append(switches, GenericSwitch{
		Device:   chargerDevice,
		Id:       SWITCH_ID_CHARGE_CONTROL,
		Name:     "Solar charge control",
		UniqueId: uniqueId(chargerDevice.Id, SWITCH_ID_CHARGE_CONTROL),
		Icon:     "mdi:solar-power",
	})

	return switches
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
