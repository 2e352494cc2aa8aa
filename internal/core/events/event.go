package events

import (
	"time"

	. "github.com/berfenger/solarcharge2mqtt/internal/core/domain"
)

func TelemetryToUpdateEvents(tl Telemetry) []any {
	var events []any

	// Grid power, positive while importing
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_GRID_POWER,
		},
		Value: tl.GridPowerW,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_GRID_VOLTAGE,
		},
		Value:    tl.GridVoltageV,
		Decimals: 1,
	})
	// Wall connector
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_VEHICLE_CURRENT,
		},
		Value:    tl.VehicleCurrentA,
		Decimals: 1,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_VEHICLE_CONNECTED,
		},
		Value: tl.VehicleConnected,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGING_POWER,
		},
		Value: tl.ChargingPowerW(),
	})
	// Vehicle
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_VEHICLE_SOC,
		},
		Value: tl.SoC,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_VEHICLE_CHARGE_LIMIT,
		},
		Value: tl.ChargeLimitSoC,
	})

	return events
}

func ControllerStatusToUpdateEvents(status ControllerStatus) []any {
	var events []any

	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_GRID_POWER_AVG,
		},
		Value:    status.SmoothedGridW,
		Decimals: 1,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGE_CURRENT_TARGET,
		},
		Value: float64(status.CurrentAmps),
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_SENT_CURRENT,
		},
		Value: float64(status.LastSentAmps),
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_DAILY_COMMANDS,
		},
		Value: float64(status.DailyCounter),
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROLLER_STATE,
		},
		Value: string(status.State),
	})
	if status.LastOutcome != "" {
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_LAST_OUTCOME,
			},
			Value: string(status.LastOutcome),
		})
	}
	if status.LastDirection != DIRECTION_NONE {
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_LAST_DIRECTION,
			},
			Value: string(status.LastDirection),
		})
	}
	// HA timestamp sensors expect ISO 8601
	if !status.TokenExpiresAt.IsZero() {
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_TOKEN_EXPIRES_AT,
			},
			Value: status.TokenExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	events = append(events, ChargeControlSwitchEvent(status.Enabled))

	return events
}

func ChargeControlSwitchEvent(enabled bool) SwitchSensorUpdateEvent {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_CHARGE_CONTROL,
		},
		Value: enabled,
	}
}
