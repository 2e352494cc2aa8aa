package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/solarcharge2mqtt/internal/adapter/actor"
	"github.com/berfenger/solarcharge2mqtt/internal/adapter/fleet"
	"github.com/berfenger/solarcharge2mqtt/internal/adapter/notify"
	"github.com/berfenger/solarcharge2mqtt/internal/adapter/store"
	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/actor"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"
	"github.com/berfenger/solarcharge2mqtt/internal/core/service"
	"github.com/berfenger/solarcharge2mqtt/internal/jobs"
	"github.com/berfenger/solarcharge2mqtt/internal/server"
	"github.com/berfenger/solarcharge2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/joho/godotenv"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ENV_PREFIX = "solarcharge"
)

// short variable names accepted alongside the prefixed ones
var envAliases = map[string]string{
	"PORT":                "port",
	"TESLA_CLIENT_ID":     "fleet.client_id",
	"TESLA_CLIENT_SECRET": "fleet.client_secret",
	"TESLA_OAUTH_BASE":    "fleet.oauth_base",
	"TESLA_PROXY_BASE":    "fleet.proxy_base",
	"TESLA_VIN":           "fleet.vin",
	"CHARGE_HOUR_START":   "control.charge_hour_start",
	"CHARGE_HOUR_END":     "control.charge_hour_end",
}

var unboundKeys = []string{
	"mqtt.host",
	"mqtt.username",
	"mqtt.password",
	"fleet.proxy_base",
	"fleet.vin",
	"fleet.client_id",
	"fleet.client_secret",
}

// gracefulShutdown waits for SIGINT/SIGTERM, drains HTTP and then stops the scheduler
func gracefulShutdown(apiServer *http.Server, sched quartz.Scheduler, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Warn("shutting down gracefully, press Ctrl+C again to force")

	// in-flight /status and /healthcheck requests get 5 seconds
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	sched.Stop()
	sched.Wait(ctx)

	done <- true
}

func main() {

	// .env.local overrides .env, both are optional
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	// load and print config
	cfg, err := initConfig(viper.GetViper())
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// credential record
	repo, closeRepo, err := store.Open(context.Background(), cfg.Store, afero.NewOsFs(), logger)
	if err != nil {
		logger.Fatal("could not open credential store", zap.Error(err))
	}
	defer closeRepo()

	if _, err := repo.Load(context.Background()); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			logger.Fatal("credential record not found, complete the OAuth authorization first", zap.String("driver", cfg.Store.Driver))
		}
		logger.Fatal("could not load credential record", zap.Error(err))
	}

	// controller
	controllerCfg, err := service.ChargeControllerConfigFrom(cfg.Control)
	if err != nil {
		logger.Fatal("invalid control config", zap.Error(err))
	}
	clock := port.SystemClock{}
	eventStream := &eventstream.EventStream{}
	fleetClient := fleet.NewClient(cfg.Fleet, logger)
	controller := service.NewChargeController(controllerCfg, service.ChargeControllerDeps{
		Issuer:     fleetClient,
		Refresher:  fleetClient,
		Repository: repo,
		Notifier:   notify.NewEventStreamNotifier(eventStream, clock, logger),
		Clock:      clock,
	}, logger)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, eventStream, controller, clock, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("could not spawn master actor", zap.Error(err))
		return
	}

	// periodic status publishing
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	sched := jobs.NewScheduler(logger)
	sched.Start(schedCtx)
	if err := jobs.ScheduleStatusJob(sched, cfg.Status, controllerCfg.Location, ctx, pid); err != nil {
		logger.Error("could not schedule status job", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, sched, logger, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done

	// children stop first, mqtt publishes the bridge offline state
	if err := ctx.StopFuture(pid).Wait(); err != nil {
		logger.Error("master actor did not stop cleanly", zap.Error(err))
	}
	logger.Warn("graceful shutdown complete")
	as.Shutdown()
}

func initConfig(v *viper.Viper) (*config.Config, error) {

	setConfigDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// keys without a default are only seen by Unmarshal once bound
	for _, key := range unboundKeys {
		_ = v.BindEnv(key)
	}
	// aliases, SOLARCHARGE_* wins when both are set
	for alias, key := range envAliases {
		_ = v.BindEnv(key, strings.ToUpper(ENV_PREFIX+"_"+strings.ReplaceAll(key, ".", "_")), alias)
	}

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch v.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.WarnLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if err := config.CheckSubscriptionTopic(cfg.MQTT.TelemetryTopic); err != nil {
		return nil, fmt.Errorf("invalid telemetry topic: %w", err)
	}

	// check bounds
	if err := cfg.Control.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Fleet.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.base_topic", "solarcharge")
	v.SetDefault("mqtt.telemetry_topic", "solar_bridge/+/state")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("control.min_amps", 6)
	v.SetDefault("control.max_amps", 32)
	v.SetDefault("control.step", 1)
	v.SetDefault("control.import_threshold", 130)
	v.SetDefault("control.zero_threshold", 60)
	v.SetDefault("control.grid_avg_samples", 10)
	v.SetDefault("control.adjust_delay_millis", 40000)
	v.SetDefault("control.max_daily_commands", 330)
	v.SetDefault("control.refresh_margin_minutes", 30)
	v.SetDefault("control.charge_hour_start", 0)
	v.SetDefault("control.charge_hour_end", 23)
	v.SetDefault("control.timezone", "Local")
	v.SetDefault("control.grid_power_scale", 1000)
	v.SetDefault("control.tick_timeout_millis", 30000)
	v.SetDefault("fleet.oauth_base", "https://auth.tesla.com")
	v.SetDefault("fleet.insecure_skip_verify", false)
	v.SetDefault("fleet.request_timeout_millis", 10000)
	v.SetDefault("store.driver", config.STORE_DRIVER_FILE)
	v.SetDefault("store.path", "data/token.json")
	v.SetDefault("store.sqlite_path", "data/solarcharge.db")
	v.SetDefault("status.cron", "0 * * * * *")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Fleet.ClientSecret = "*redacted*"
	slog.Info("Using", "config", cfg)
}
