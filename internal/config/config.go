package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	Control  ControlConfig `mapstructure:"control"`
	Fleet    FleetConfig   `mapstructure:"fleet"`
	Store    StoreConfig   `mapstructure:"store"`
	Status   StatusConfig  `mapstructure:"status"`
	Port     uint          `mapstructure:"port"`
	HttpLog  bool          `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	TelemetryTopic    string `mapstructure:"telemetry_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// ControlConfig holds the charging-current control loop parameters.
// Hours are local to Timezone and both bounds are inclusive.
type ControlConfig struct {
	MinAmps              int     `mapstructure:"min_amps"`
	MaxAmps              int     `mapstructure:"max_amps"`
	Step                 int     `mapstructure:"step"`
	ImportThreshold      float64 `mapstructure:"import_threshold"`
	ZeroThreshold        float64 `mapstructure:"zero_threshold"`
	GridAvgSamples       int     `mapstructure:"grid_avg_samples"`
	AdjustDelayMillis    uint32  `mapstructure:"adjust_delay_millis"`
	MaxDailyCommands     int     `mapstructure:"max_daily_commands"`
	RefreshMarginMinutes uint32  `mapstructure:"refresh_margin_minutes"`
	ChargeHourStart      int     `mapstructure:"charge_hour_start"`
	ChargeHourEnd        int     `mapstructure:"charge_hour_end"`
	Timezone             string  `mapstructure:"timezone"`
	GridPowerScale       float64 `mapstructure:"grid_power_scale"`
	TickTimeoutMillis    uint32  `mapstructure:"tick_timeout_millis"`
}

type FleetConfig struct {
	ProxyBase            string `mapstructure:"proxy_base"`
	OAuthBase            string `mapstructure:"oauth_base"`
	VIN                  string `mapstructure:"vin"`
	ClientId             string `mapstructure:"client_id"`
	ClientSecret         string `mapstructure:"client_secret"`
	InsecureSkipVerify   bool   `mapstructure:"insecure_skip_verify"`
	RequestTimeoutMillis uint32 `mapstructure:"request_timeout_millis"`
}

type StoreConfig struct {
	Driver     string
	Path       string
	SQLitePath string `mapstructure:"sqlite_path"`
}

type StatusConfig struct {
	Cron string
}

const (
	STORE_DRIVER_FILE   = "file"
	STORE_DRIVER_SQLITE = "sqlite"
)

func (c ControlConfig) AdjustDelay() time.Duration {
	return time.Duration(c.AdjustDelayMillis) * time.Millisecond
}

func (c ControlConfig) RefreshMargin() time.Duration {
	return time.Duration(c.RefreshMarginMinutes) * time.Minute
}

func (c ControlConfig) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutMillis) * time.Millisecond
}

func (c ControlConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c FleetConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

// Validate checks the control loop bounds
func (c ControlConfig) Validate() error {
	if c.MinAmps < 1 {
		return errors.New("config param control.min_amps should be >= 1")
	}
	if c.MaxAmps <= c.MinAmps {
		return errors.New("config param control.max_amps must be > control.min_amps")
	}
	if c.Step < 1 {
		return errors.New("config param control.step should be >= 1")
	}
	if c.ZeroThreshold <= 0 || c.ImportThreshold < c.ZeroThreshold {
		return errors.New("config param control.import_threshold must be >= control.zero_threshold > 0")
	}
	if c.GridAvgSamples < 1 {
		return errors.New("config param control.grid_avg_samples should be >= 1")
	}
	if c.AdjustDelayMillis < 1000 {
		return errors.New("config param control.adjust_delay_millis should be >= 1000")
	}
	if c.MaxDailyCommands < 1 {
		return errors.New("config param control.max_daily_commands should be >= 1")
	}
	if c.ChargeHourStart < 0 || c.ChargeHourStart > 23 || c.ChargeHourEnd < 0 || c.ChargeHourEnd > 23 {
		return errors.New("config params control.charge_hour_start and control.charge_hour_end must be in 0..23")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config param control.timezone: %w", err)
	}
	return nil
}

func (c FleetConfig) Validate() error {
	if c.ProxyBase == "" || c.OAuthBase == "" {
		return errors.New("config params fleet.proxy_base and fleet.oauth_base are required")
	}
	if c.VIN == "" {
		return errors.New("config param fleet.vin is required")
	}
	if c.ClientId == "" {
		return errors.New("config param fleet.client_id is required")
	}
	return nil
}

func (c StoreConfig) Validate() error {
	switch c.Driver {
	case STORE_DRIVER_FILE:
		if c.Path == "" {
			return errors.New("config param store.path is required")
		}
	case STORE_DRIVER_SQLITE:
		if c.SQLitePath == "" {
			return errors.New("config param store.sqlite_path is required")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Driver)
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// CheckSubscriptionTopic accepts MQTT filters with + and # wildcards
func CheckSubscriptionTopic(topic string) error {
	if topic == "" {
		return errors.New("empty subscription topic")
	}
	levels := strings.Split(topic, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return errors.New("invalid subscription topic. # must be the last level")
		}
		if strings.Contains(level, "+") && level != "+" {
			return errors.New("invalid subscription topic. + must occupy a whole level")
		}
	}
	return nil
}
