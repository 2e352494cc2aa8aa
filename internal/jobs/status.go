package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	qlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	STATUS_JOB_KEY = "publish_status"
)

// NewScheduler returns a quartz scheduler whose internal logging goes through zap
func NewScheduler(logger *zap.Logger) quartz.Scheduler {
	qlogger.SetDefault(qlogger.NewSimpleLogger(zap.NewStdLog(logger.Named("quartz")), quartzLevel(logger.Level())))
	return quartz.NewStdScheduler()
}

// ScheduleStatusJob makes the charge control actor republish its status sensors on cfg.Cron
func ScheduleStatusJob(sched quartz.Scheduler, cfg config.StatusConfig, loc *time.Location,
	rootContext *actor.RootContext, masterActor *actor.PID) error {
	if cfg.Cron == "" {
		return errors.New("empty status cron expression")
	}
	trigger, err := quartz.NewCronTriggerWithLoc(cfg.Cron, loc)
	if err != nil {
		return err
	}
	statusJob := job.NewFunctionJob(StatusJobFunction(rootContext, masterActor))
	return sched.ScheduleJob(quartz.NewJobDetail(statusJob, quartz.NewJobKey(STATUS_JOB_KEY)), trigger)
}

func StatusJobFunction(rootContext *actor.RootContext, masterActor *actor.PID) job.Function[bool] {
	return func(_ context.Context) (bool, error) {
		rootContext.Send(masterActor, domain.ChargeControlPublishStatusRequest{})
		return true, nil
	}
}

func quartzLevel(level zapcore.Level) qlogger.Level {
	switch {
	case level <= zapcore.DebugLevel:
		return qlogger.LevelDebug
	case level == zapcore.InfoLevel:
		return qlogger.LevelInfo
	case level == zapcore.WarnLevel:
		return qlogger.LevelWarn
	default:
		return qlogger.LevelError
	}
}
