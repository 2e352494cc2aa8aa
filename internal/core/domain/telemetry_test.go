package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelemetry(t *testing.T) {
	payload := []byte(`{
		"deviceState": {"grid_power": 0.3},
		"tesla": {
			"wallCharge": {"vehicle_current_a": 16.4, "vehicle_connected": true, "grid_v": 230.5},
			"teslaMate": {"soc": 57, "charge_limit": 80}
		}
	}`)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tl, err := ParseTelemetry(payload, 1000, now)
	require.NoError(t, err)

	assert.InDelta(t, 300, tl.GridPowerW, 0.001)
	assert.InDelta(t, 16.4, tl.VehicleCurrentA, 0.001)
	assert.True(t, tl.VehicleConnected)
	assert.InDelta(t, 230.5, tl.GridVoltageV, 0.001)
	assert.EqualValues(t, 57, tl.SoC)
	assert.EqualValues(t, 80, tl.ChargeLimitSoC)
	assert.Equal(t, now, tl.ReceivedAt)
	assert.InDelta(t, 230.5*16.4, tl.ChargingPowerW(), 0.001)
}

func TestParseTelemetryMissingFields(t *testing.T) {
	tl, err := ParseTelemetry([]byte(`{"deviceState": {"grid_power": -1.2}}`), 1000, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, -1200, tl.GridPowerW, 0.001)
	assert.Zero(t, tl.VehicleCurrentA)
	assert.False(t, tl.VehicleConnected)
}

func TestParseTelemetryInvalid(t *testing.T) {
	_, err := ParseTelemetry([]byte(`not json`), 1000, time.Now())
	assert.Error(t, err)
}

func TestCredentialRecordTimes(t *testing.T) {
	rec := CredentialRecord{
		ExpiresAt:  1735689600000,
		LastUpdate: "2025-01-01T00:00:00.000Z",
	}
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rec.ExpiresAtTime().UTC())

	last, ok := rec.LastUpdateTime()
	require.True(t, ok)
	assert.Equal(t, 2025, last.Year())

	_, ok = CredentialRecord{}.LastUpdateTime()
	assert.False(t, ok)

	touched := rec.Touch(7, time.Date(2025, 2, 3, 4, 5, 6, 7000000, time.UTC))
	assert.Equal(t, 7, touched.DailyCounter)
	assert.Equal(t, "2025-02-03T04:05:06.007Z", touched.LastUpdate)
}
