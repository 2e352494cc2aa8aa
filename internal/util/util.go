package util

import (
	"github.com/berfenger/solarcharge2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "solarcharge",
			TelemetryTopic:    "solar_bridge/+/state",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		Control: config.ControlConfig{
			MinAmps:              6,
			MaxAmps:              32,
			Step:                 1,
			ImportThreshold:      130,
			ZeroThreshold:        60,
			GridAvgSamples:       3,
			AdjustDelayMillis:    40000,
			MaxDailyCommands:     200,
			RefreshMarginMinutes: 10,
			ChargeHourStart:      0,
			ChargeHourEnd:        23,
			Timezone:             "UTC",
			GridPowerScale:       1000,
			TickTimeoutMillis:    2000,
		},
		Fleet: config.FleetConfig{
			ProxyBase:            "https://localhost:4443",
			OAuthBase:            "https://auth.tesla.com",
			VIN:                  "5YJ3E1EA7KF000001",
			ClientId:             "client-id",
			RequestTimeoutMillis: 5000,
		},
		Store: config.StoreConfig{
			Driver: config.STORE_DRIVER_FILE,
			Path:   "token.json",
		},
		Status: config.StatusConfig{
			Cron: "0 */5 * * * *",
		},
		Port: 8080,
	}
}
