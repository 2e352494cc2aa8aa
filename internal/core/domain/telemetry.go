package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Telemetry is one snapshot of the home energy monitor and the wall charger.
// GridPowerW is positive while importing from the grid.
type Telemetry struct {
	GridPowerW       float64
	VehicleCurrentA  float64
	VehicleConnected bool
	GridVoltageV     float64
	SoC              float64
	ChargeLimitSoC   float64
	ReceivedAt       time.Time
}

// ChargingPowerW estimates the power drawn by the vehicle
func (t Telemetry) ChargingPowerW() float64 {
	return t.GridVoltageV * t.VehicleCurrentA
}

type bridgePayload struct {
	DeviceState struct {
		GridPower float64 `json:"grid_power"`
	} `json:"deviceState"`
	Tesla struct {
		WallCharge struct {
			VehicleCurrentA  float64 `json:"vehicle_current_a"`
			VehicleConnected bool    `json:"vehicle_connected"`
			GridV            float64 `json:"grid_v"`
		} `json:"wallCharge"`
		TeslaMate struct {
			SoC         float64 `json:"soc"`
			ChargeLimit float64 `json:"charge_limit"`
		} `json:"teslaMate"`
	} `json:"tesla"`
}

// ParseTelemetry decodes a bridge state document. gridPowerScale converts the
// reported grid power into watts (1000 when the device reports kW).
func ParseTelemetry(payload []byte, gridPowerScale float64, receivedAt time.Time) (Telemetry, error) {
	var p bridgePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Telemetry{}, fmt.Errorf("invalid telemetry payload: %w", err)
	}
	return Telemetry{
		GridPowerW:       p.DeviceState.GridPower * gridPowerScale,
		VehicleCurrentA:  p.Tesla.WallCharge.VehicleCurrentA,
		VehicleConnected: p.Tesla.WallCharge.VehicleConnected,
		GridVoltageV:     p.Tesla.WallCharge.GridV,
		SoC:              p.Tesla.TeslaMate.SoC,
		ChargeLimitSoC:   p.Tesla.TeslaMate.ChargeLimit,
		ReceivedAt:       receivedAt,
	}, nil
}
