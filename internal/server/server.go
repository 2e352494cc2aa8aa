package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/config"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	HEALTH_CHECK_TIMEOUT = 10 * time.Second
	STATUS_TIMEOUT       = 5 * time.Second
)

// Server answers HTTP requests by asking the master actor
type Server struct {
	httpLog       bool
	rootContext   *actor.RootContext
	masterActor   *actor.PID
	healthTimeout time.Duration
	statusTimeout time.Duration
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID) *http.Server {
	s := &Server{
		httpLog:       cfg.HttpLog,
		rootContext:   rootContext,
		masterActor:   masterActor,
		healthTimeout: HEALTH_CHECK_TIMEOUT,
		statusTimeout: STATUS_TIMEOUT,
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      s.healthTimeout + 5*time.Second,
	}
}
