package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/config"
	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChargeControllerConfig struct {
	Policy           StepPolicy
	GridAvgSamples   int
	AdjustDelay      time.Duration
	MaxDailyCommands int
	RefreshMargin    time.Duration
	ChargeHourStart  int
	ChargeHourEnd    int
	Location         *time.Location
}

func ChargeControllerConfigFrom(cfg config.ControlConfig) (ChargeControllerConfig, error) {
	loc, err := cfg.Location()
	if err != nil {
		return ChargeControllerConfig{}, err
	}
	return ChargeControllerConfig{
		Policy: StepPolicy{
			MinAmps:         cfg.MinAmps,
			MaxAmps:         cfg.MaxAmps,
			Step:            cfg.Step,
			ImportThreshold: cfg.ImportThreshold,
			ZeroThreshold:   cfg.ZeroThreshold,
		},
		GridAvgSamples:   cfg.GridAvgSamples,
		AdjustDelay:      cfg.AdjustDelay(),
		MaxDailyCommands: cfg.MaxDailyCommands,
		RefreshMargin:    cfg.RefreshMargin(),
		ChargeHourStart:  cfg.ChargeHourStart,
		ChargeHourEnd:    cfg.ChargeHourEnd,
		Location:         loc,
	}, nil
}

type ChargeControllerDeps struct {
	Issuer     port.CommandIssuer
	Refresher  port.TokenRefresher
	Repository port.CredentialRepository
	Notifier   port.Notifier
	Clock      port.Clock
}

// ChargeController drives the vehicle charging current towards zero grid exchange.
// Ticks are serialized; a tick that arrives while another runs waits for it.
type ChargeController struct {
	mtx sync.Mutex

	cfg         ChargeControllerConfig
	issuer      port.CommandIssuer
	credentials *CredentialStore
	notifier    port.Notifier
	clock       port.Clock

	state        domain.ControllerState
	enabled      bool
	currentAmps  int
	lastSentAmps int
	smoother     *GridPowerSmoother
	budget       *CommandBudget
	gate         *AdjustmentGate
	last         domain.TickResult

	logger *zap.Logger
}

func NewChargeController(cfg ChargeControllerConfig, deps ChargeControllerDeps, logger *zap.Logger) *ChargeController {
	clock := deps.Clock
	if clock == nil {
		clock = port.SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &ChargeController{
		cfg:         cfg,
		issuer:      deps.Issuer,
		credentials: NewCredentialStore(deps.Repository, deps.Refresher, deps.Notifier, clock, cfg.RefreshMargin, logger),
		notifier:    deps.Notifier,
		clock:       clock,
		state:       domain.CONTROLLER_STATE_UNINITIALIZED,
		enabled:     true,
		smoother:    NewGridPowerSmoother(cfg.GridAvgSamples),
		budget:      NewCommandBudget(cfg.MaxDailyCommands, cfg.Location),
		gate:        NewAdjustmentGate(cfg.AdjustDelay, clock.Now()),
		logger:      logger,
	}
}

// Tick evaluates one telemetry snapshot. Failures are reported in the result, never returned.
func (c *ChargeController) Tick(ctx context.Context, telemetry domain.Telemetry) domain.TickResult {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	now := c.clock.Now()
	if c.state == domain.CONTROLLER_STATE_UNINITIALIZED {
		return c.finish(c.coldStart(ctx, telemetry))
	}

	// an idle or unplugged car reads 0A, the setpoint never leaves the configured range
	c.currentAmps = c.cfg.Policy.Clamp(roundAmps(telemetry.VehicleCurrentA))
	gridW := c.smoother.Update(telemetry.GridPowerW)
	result := domain.TickResult{
		CurrentAmps:   c.currentAmps,
		TargetAmps:    c.currentAmps,
		SmoothedGridW: gridW,
		Samples:       c.smoother.Len(),
	}

	if !c.enabled {
		result.Outcome = domain.TICK_OUTCOME_DISABLED
		return c.finish(result)
	}
	if !InChargeWindow(now.In(c.cfg.Location).Hour(), c.cfg.ChargeHourStart, c.cfg.ChargeHourEnd) {
		result.Outcome = domain.TICK_OUTCOME_OUTSIDE_WINDOW
		return c.finish(result)
	}

	c.rollover(ctx, now)

	elapsed, open := c.gate.Pass(now)
	if !open {
		result.Outcome = domain.TICK_OUTCOME_GATE_CLOSED
		return c.finish(result)
	}

	token, err := c.credentials.GetValid(ctx, c.budget.Counter())
	if err != nil {
		result.Outcome = domain.TICK_OUTCOME_TOKEN_ERROR
		result.Err = err
		return c.finish(result)
	}

	direction, step, target := c.cfg.Policy.Decide(c.currentAmps, gridW)
	result.Direction = direction
	result.Step = step
	result.TargetAmps = target

	if direction == domain.DIRECTION_NONE || target == c.currentAmps || !c.smoother.Full() {
		result.Outcome = domain.TICK_OUTCOME_NO_CHANGE
		return c.finish(result)
	}

	result = c.commit(ctx, token, result, elapsed, telemetry)
	if result.Committed() {
		c.currentAmps = target
		result.CurrentAmps = target
	}
	return c.finish(result)
}

func (c *ChargeController) coldStart(ctx context.Context, telemetry domain.Telemetry) domain.TickResult {
	rec, err := c.credentials.Load(ctx)
	if err != nil {
		c.logger.Error("charge_control@uninitialized: could not load credential record", zap.Error(err))
		return domain.TickResult{
			Outcome: domain.TICK_OUTCOME_LOAD_ERROR,
			Err:     err,
		}
	}
	lastUpdate, known := rec.LastUpdateTime()
	c.budget.Seed(rec.DailyCounter, lastUpdate, known)

	detected := roundAmps(telemetry.VehicleCurrentA)
	actual := c.cfg.Policy.Clamp(detected)
	c.currentAmps = actual
	c.lastSentAmps = actual
	c.state = domain.CONTROLLER_STATE_SYNCED

	c.logger.Info("charge_control@uninitialized: synced", zap.Int("amps", actual), zap.Int("detected_amps", detected),
		zap.Int("daily_counter", c.budget.Counter()), zap.String("last_reset_date", c.budget.LastResetDate()))
	c.notifier.Notify(fmt.Sprintf("Starting amps sync. Detected current from wall connector: %dA", detected))

	return domain.TickResult{
		Outcome:      domain.TICK_OUTCOME_SYNCED,
		CurrentAmps:  actual,
		TargetAmps:   actual,
		DailyCounter: c.budget.Counter(),
	}
}

func (c *ChargeController) rollover(ctx context.Context, now time.Time) {
	if !c.budget.Rollover(now) {
		return
	}
	c.logger.Info("charge_control@synced: daily counter reset", zap.String("date", c.budget.LastResetDate()))
	if err := c.credentials.Persist(ctx, c.budget.Counter()); err != nil {
		c.logger.Error("charge_control@synced: could not persist counter reset", zap.Error(err))
	}
	c.notifier.Notify("Daily counter reset")
}

func (c *ChargeController) commit(ctx context.Context, token string, result domain.TickResult,
	elapsed time.Duration, telemetry domain.Telemetry) domain.TickResult {

	newAmps := result.TargetAmps
	if newAmps == c.lastSentAmps {
		c.logger.Debug("charge_control@commit: skip, same amps already sent", zap.Int("amps", newAmps))
		result.Outcome = domain.TICK_OUTCOME_DUPLICATE
		result.Err = ErrDuplicateTarget
		return result
	}

	// a tick that waited out its deadline must not spend quota
	if err := ctx.Err(); err != nil {
		c.logger.Warn("charge_control@commit: skip, tick context done", zap.Error(err))
		result.Outcome = domain.TICK_OUTCOME_COMMAND_FAILED
		result.Err = err
		return result
	}

	counter, err := c.budget.Spend()
	if err != nil {
		c.logger.Info("charge_control@commit: daily command limit reached", zap.Int("counter", counter))
		result.Outcome = domain.TICK_OUTCOME_QUOTA_EXHAUSTED
		result.Err = err
		return result
	}

	attemptId := uuid.NewString()
	logger := c.logger.With(zap.String("attempt_id", attemptId))
	logger.Info("charge_control@commit: set charging amps",
		zap.Int("from", c.lastSentAmps), zap.Int("to", newAmps),
		zap.String("direction", string(result.Direction)), zap.Int("step", result.Step),
		zap.Float64("grid_avg_w", result.SmoothedGridW), zap.Int("daily_counter", counter))
	c.notifier.Notify(c.commitMessage(result, counter, elapsed, telemetry))

	if err := c.issuer.SetChargingAmps(ctx, token, newAmps); err != nil {
		logger.Error("charge_control@commit: set charging amps failed", zap.Error(err))
		c.notifier.Notify(fmt.Sprintf("Set charging amps failed: %s", err))
		result.Outcome = domain.TICK_OUTCOME_COMMAND_FAILED
		result.Err = err
		return result
	}

	c.lastSentAmps = newAmps
	if err := c.credentials.Persist(ctx, counter); err != nil {
		logger.Error("charge_control@commit: could not persist daily counter", zap.Error(err))
		c.notifier.Notify(fmt.Sprintf("Daily counter could not be saved: %s", err))
	}
	result.Outcome = domain.TICK_OUTCOME_COMMITTED
	return result
}

func (c *ChargeController) commitMessage(result domain.TickResult, counter int, elapsed time.Duration, t domain.Telemetry) string {
	arrow := "⬆️"
	if result.Direction == domain.DIRECTION_DOWN {
		arrow = "⬇️"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Set charging %dA to %dA\n", c.lastSentAmps, result.TargetAmps)
	fmt.Fprintf(&sb, "Direction: %s (STEP: %dA) ~ %.0fW\n", arrow, result.Step, result.SmoothedGridW)
	fmt.Fprintf(&sb, "Daily Counter: %d / %d per day\n", counter, c.budget.Max())
	fmt.Fprintf(&sb, "Soc: %.0f%% | Charge Limit: %.0f%%\n", t.SoC, t.ChargeLimitSoC)
	fmt.Fprintf(&sb, "%.1fs since last adjust\n", elapsed.Seconds())
	fmt.Fprintf(&sb, "Grid: %.0f V / %.0f A | Charging: ~ %.0f W\n", t.GridVoltageV, t.VehicleCurrentA, t.ChargingPowerW())
	fmt.Fprintf(&sb, "LastUpdate: %s", c.clock.Now().In(c.cfg.Location).Format(time.DateTime))
	return sb.String()
}

func (c *ChargeController) finish(result domain.TickResult) domain.TickResult {
	result.DailyCounter = c.budget.Counter()
	c.last = result
	c.logger.Debug("charge_control@tick",
		zap.String("outcome", string(result.Outcome)),
		zap.Float64("grid_avg_w", result.SmoothedGridW),
		zap.Int("target_amps", result.TargetAmps),
		zap.Int("current_amps", c.currentAmps),
		zap.String("direction", string(result.Direction)),
		zap.Int("samples", result.Samples),
		zap.Int("daily_counter", result.DailyCounter),
		zap.Int("max_daily", c.budget.Max()),
		zap.Error(result.Err))
	return result
}

func (c *ChargeController) Status() domain.ControllerStatus {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return domain.ControllerStatus{
		State:          c.state,
		Enabled:        c.enabled,
		CurrentAmps:    c.currentAmps,
		LastSentAmps:   c.lastSentAmps,
		DailyCounter:   c.budget.Counter(),
		MaxDaily:       c.budget.Max(),
		LastResetDate:  c.budget.LastResetDate(),
		SmoothedGridW:  c.smoother.Mean(),
		Samples:        c.smoother.Len(),
		LastAdjust:     c.gate.Last(),
		LastDirection:  c.last.Direction,
		LastStep:       c.last.Step,
		LastOutcome:    c.last.Outcome,
		TokenExpiresAt: c.credentials.Record().ExpiresAtTime(),
	}
}

// SetEnabled turns the control loop on or off and reports whether the state changed
func (c *ChargeController) SetEnabled(enabled bool) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.enabled == enabled {
		return false
	}
	c.enabled = enabled
	c.logger.Info("charge_control: control loop toggled", zap.Bool("enabled", enabled))
	return true
}

func roundAmps(amps float64) int {
	return int(math.Round(amps))
}

// ensure interface compliance
var _ port.ChargeControlLogic = (*ChargeController)(nil)
