package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
	"github.com/berfenger/solarcharge2mqtt/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

var testControllerConfig = ChargeControllerConfig{
	Policy:           policy,
	GridAvgSamples:   10,
	AdjustDelay:      40 * time.Second,
	MaxDailyCommands: 330,
	RefreshMargin:    30 * time.Minute,
	ChargeHourStart:  0,
	ChargeHourEnd:    23,
	Location:         time.UTC,
}

type controllerFixture struct {
	ctrl      *ChargeController
	clock     *fakeClock
	issuer    *fakeIssuer
	refresher *fakeRefresher
	repo      *memoryRepository
	notifier  *recordingNotifier
}

func validRecord() domain.CredentialRecord {
	return domain.CredentialRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    28800,
		ExpiresAt:    t0.Add(8 * time.Hour).UnixMilli(),
		DailyCounter: 0,
		LastUpdate:   t0.Add(-time.Hour).Format(domain.ISO8601_MILLIS),
	}
}

func newFixture(cfg ChargeControllerConfig, record domain.CredentialRecord) *controllerFixture {
	f := &controllerFixture{
		clock:     newFakeClock(t0),
		issuer:    &fakeIssuer{},
		refresher: &fakeRefresher{},
		repo:      &memoryRepository{record: record},
		notifier:  &recordingNotifier{},
	}
	f.ctrl = NewChargeController(cfg, ChargeControllerDeps{
		Issuer:     f.issuer,
		Refresher:  f.refresher,
		Repository: f.repo,
		Notifier:   f.notifier,
		Clock:      f.clock,
	}, zap.Must(zap.NewDevelopment()))
	return f
}

func tl(gridW, amps float64) domain.Telemetry {
	return domain.Telemetry{
		GridPowerW:       gridW,
		VehicleCurrentA:  amps,
		VehicleConnected: true,
		GridVoltageV:     230,
		SoC:              55,
		ChargeLimitSoC:   80,
	}
}

// tickAt moves the clock to t0+offset and runs one tick
func (f *controllerFixture) tickAt(offset time.Duration, telemetry domain.Telemetry) domain.TickResult {
	f.clock.Set(t0.Add(offset))
	return f.ctrl.Tick(context.Background(), telemetry)
}

// coldStartAndFill syncs at amps and fills the window with gridW before the gate opens
func (f *controllerFixture) coldStartAndFill(require *require.Assertions, amps, gridW float64) {
	r := f.tickAt(0, tl(gridW, amps))
	require.Equal(domain.TICK_OUTCOME_SYNCED, r.Outcome)
	for i := 1; i <= 9; i++ {
		r = f.tickAt(time.Duration(i)*time.Second, tl(gridW, amps))
		require.Equal(domain.TICK_OUTCOME_GATE_CLOSED, r.Outcome)
	}
}

func TestControllerScenario(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())

	// cold start: adopt the measured current, no command
	r := f.tickAt(0, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_SYNCED, r.Outcome)
	require.Equal(16, r.CurrentAmps)
	require.Empty(f.issuer.calls)
	require.Contains(f.notifier.messages, "Starting amps sync. Detected current from wall connector: 16A")
	require.Zero(f.ctrl.Status().Samples, "cold start does not feed the smoother")

	for i := 1; i <= 9; i++ {
		r = f.tickAt(time.Duration(i)*time.Second, tl(300, 16))
		require.Equal(domain.TICK_OUTCOME_GATE_CLOSED, r.Outcome)
	}

	// window full and gate open: small import steps down by one
	r = f.tickAt(41*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_COMMITTED, r.Outcome)
	require.Equal(domain.DIRECTION_DOWN, r.Direction)
	require.Equal(1, r.Step)
	require.Equal(15, r.TargetAmps)
	require.Equal(1, r.DailyCounter)
	require.Equal([]int{15}, f.issuer.calls)
	require.Equal([]string{"access-1"}, f.issuer.tokens)
	require.Len(f.repo.saved, 1)
	require.Equal(1, f.repo.record.DailyCounter)
	require.Equal("access-1", f.repo.record.AccessToken)

	// heavy import inside the adjustment delay is ignored
	for i := 42; i <= 51; i++ {
		r = f.tickAt(time.Duration(i)*time.Second, tl(5000, 15))
		require.Equal(domain.TICK_OUTCOME_GATE_CLOSED, r.Outcome)
	}
	require.Len(f.issuer.calls, 1)

	// after the delay the sustained import steps down by four
	r = f.tickAt(82*time.Second, tl(5000, 15))
	require.Equal(domain.TICK_OUTCOME_COMMITTED, r.Outcome)
	require.Equal(4, r.Step)
	require.Equal(11, r.TargetAmps)
	require.Equal(2, r.DailyCounter)
	require.Equal([]int{15, 11}, f.issuer.calls)

	status := f.ctrl.Status()
	assert.Equal(t, domain.CONTROLLER_STATE_SYNCED, status.State)
	assert.Equal(t, 11, status.CurrentAmps)
	assert.Equal(t, 11, status.LastSentAmps)
	assert.Equal(t, 2, status.DailyCounter)
	assert.Equal(t, t0.Add(82*time.Second), status.LastAdjust)
	assert.Equal(t, domain.TICK_OUTCOME_COMMITTED, status.LastOutcome)
}

func TestControllerCommitNotification(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.coldStartAndFill(require, 16, 0)

	r := f.tickAt(41*time.Second, tl(0, 16))
	require.Equal(domain.TICK_OUTCOME_COMMITTED, r.Outcome)
	require.Equal(domain.DIRECTION_UP, r.Direction)

	msg := f.notifier.messages[len(f.notifier.messages)-1]
	assert.Contains(t, msg, "Set charging 16A to 17A")
	assert.Contains(t, msg, "Daily Counter: 1 / 330 per day")
	assert.Contains(t, msg, "Soc: 55% | Charge Limit: 80%")
	assert.Contains(t, msg, "41.0s since last adjust")
	assert.Contains(t, msg, "2025-06-01 10:00:41")
}

func TestControllerWaitsForFullWindow(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.tickAt(0, tl(0, 16))

	r := f.tickAt(41*time.Second, tl(0, 16))
	require.Equal(domain.TICK_OUTCOME_NO_CHANGE, r.Outcome)
	require.Equal(domain.DIRECTION_UP, r.Direction)
	require.Equal(1, r.Samples)
	require.Empty(f.issuer.calls)
}

func TestControllerDeadBand(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.coldStartAndFill(require, 16, 100)

	r := f.tickAt(41*time.Second, tl(100, 16))
	require.Equal(domain.TICK_OUTCOME_NO_CHANGE, r.Outcome)
	require.Equal(domain.DIRECTION_NONE, r.Direction)
	require.Empty(f.issuer.calls)
}

func TestControllerClampedTargetIsNoChange(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.coldStartAndFill(require, 32, 0)

	r := f.tickAt(41*time.Second, tl(0, 32))
	require.Equal(domain.TICK_OUTCOME_NO_CHANGE, r.Outcome)
	require.Equal(32, r.TargetAmps)
	require.Empty(f.issuer.calls)
}

func TestControllerIdleVehicleStaysInRange(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.coldStartAndFill(require, 16, 3000)

	// car stopped drawing current while the house imports heavily
	for i := 41; i <= 131; i += 45 {
		r := f.tickAt(time.Duration(i)*time.Second, tl(3000, 0))
		require.Equal(domain.TICK_OUTCOME_NO_CHANGE, r.Outcome)
		require.Equal(domain.DIRECTION_DOWN, r.Direction)
		require.Equal(6, r.CurrentAmps)
		require.Equal(6, r.TargetAmps)
	}
	require.Empty(f.issuer.calls, "a down decision at the floor never raises the setpoint")
	require.Zero(f.ctrl.Status().DailyCounter)
	require.Equal(6, f.ctrl.Status().CurrentAmps)
}

func TestControllerColdStartClampsDetectedCurrent(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())

	r := f.tickAt(0, tl(0, 0))
	require.Equal(domain.TICK_OUTCOME_SYNCED, r.Outcome)
	require.Equal(6, r.CurrentAmps)
	require.Contains(f.notifier.messages, "Starting amps sync. Detected current from wall connector: 0A")

	status := f.ctrl.Status()
	require.Equal(6, status.CurrentAmps)
	require.Equal(6, status.LastSentAmps)
}

func TestControllerExpiredContextKeepsQuota(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.coldStartAndFill(require, 16, 300)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.clock.Set(t0.Add(41 * time.Second))
	r := f.ctrl.Tick(ctx, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_COMMAND_FAILED, r.Outcome)
	require.ErrorIs(r.Err, context.Canceled)
	require.Zero(r.DailyCounter)
	require.Empty(f.issuer.calls)
	require.Empty(f.repo.saved)
}

func TestControllerDuplicateSuppressed(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	r := f.tickAt(0, tl(0, 16))
	require.Equal(domain.TICK_OUTCOME_SYNCED, r.Outcome)

	// vehicle reports 15A but 16A was the last setpoint
	for i := 1; i <= 9; i++ {
		f.tickAt(time.Duration(i)*time.Second, tl(0, 15))
	}
	r = f.tickAt(41*time.Second, tl(0, 15))
	require.Equal(domain.TICK_OUTCOME_DUPLICATE, r.Outcome)
	require.Equal(16, r.TargetAmps)
	require.Zero(r.DailyCounter, "duplicates do not spend the quota")
	require.Empty(f.issuer.calls)
}

func TestControllerQuotaExhausted(t *testing.T) {
	require := require.New(t)
	cfg := testControllerConfig
	cfg.MaxDailyCommands = 3
	rec := validRecord()
	rec.DailyCounter = 3
	f := newFixture(cfg, rec)
	f.coldStartAndFill(require, 16, 300)

	r := f.tickAt(41*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_QUOTA_EXHAUSTED, r.Outcome)
	require.ErrorIs(r.Err, ErrQuotaExhausted)
	require.Equal(3, r.DailyCounter)
	require.Empty(f.issuer.calls)
}

func TestControllerCommandFailure(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.issuer.err = errCommandRejected
	f.coldStartAndFill(require, 16, 300)

	r := f.tickAt(41*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_COMMAND_FAILED, r.Outcome)
	require.ErrorIs(r.Err, errCommandRejected)
	require.Equal(1, r.DailyCounter, "failed attempts still count")
	require.Empty(f.repo.saved, "failed attempts are not persisted")
	require.Equal(16, f.ctrl.Status().LastSentAmps)
	require.Contains(f.notifier.messages, "Set charging amps failed: command rejected")

	// the gate was consumed by the failed attempt
	r = f.tickAt(42*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_GATE_CLOSED, r.Outcome)
}

func TestControllerTokenRefresh(t *testing.T) {
	require := require.New(t)
	rec := validRecord()
	rec.ExpiresAt = t0.Add(20 * time.Minute).UnixMilli()
	f := newFixture(testControllerConfig, rec)
	f.refresher.resp = &port.TokenResponse{AccessToken: "access-2", ExpiresIn: 28800}
	f.coldStartAndFill(require, 16, 300)

	r := f.tickAt(41*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_COMMITTED, r.Outcome)
	require.Equal([]string{"refresh-1"}, f.refresher.calls)
	require.Equal([]string{"access-2"}, f.issuer.tokens)

	require.Len(f.repo.saved, 2)
	refreshed := f.repo.saved[0]
	require.Equal("access-2", refreshed.AccessToken)
	require.Equal("refresh-1", refreshed.RefreshToken, "refresh token kept when not rotated")
	require.Equal(t0.Add(41*time.Second+8*time.Hour).UnixMilli(), refreshed.ExpiresAt)
	require.Equal(1, f.repo.saved[1].DailyCounter)
	require.Equal("access-2", f.repo.saved[1].AccessToken)
}

func TestControllerTokenFailure(t *testing.T) {
	require := require.New(t)
	rec := validRecord()
	rec.ExpiresAt = t0.Add(-time.Minute).UnixMilli()
	f := newFixture(testControllerConfig, rec)
	f.refresher.err = reauthError{}
	f.coldStartAndFill(require, 16, 300)

	r := f.tickAt(41*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_TOKEN_ERROR, r.Outcome)
	require.Error(r.Err)
	require.Empty(f.issuer.calls)
	require.Contains(f.notifier.messages, "Token refresh failed: invalid_grant")
	require.Contains(f.notifier.messages, "Refresh token expired or invalid, OAuth authorization required")
	require.Zero(f.ctrl.Status().DailyCounter)
}

func TestControllerLoadError(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.repo.loadErr = errors.New("disk gone")

	r := f.tickAt(0, tl(0, 16))
	require.Equal(domain.TICK_OUTCOME_LOAD_ERROR, r.Outcome)
	require.Equal(domain.CONTROLLER_STATE_UNINITIALIZED, f.ctrl.Status().State)

	f.repo.loadErr = nil
	r = f.tickAt(time.Second, tl(0, 16))
	require.Equal(domain.TICK_OUTCOME_SYNCED, r.Outcome)
}

func TestControllerDailyRollover(t *testing.T) {
	require := require.New(t)
	rec := validRecord()
	rec.DailyCounter = 200
	rec.LastUpdate = t0.Add(-24 * time.Hour).Format(domain.ISO8601_MILLIS)
	f := newFixture(testControllerConfig, rec)

	r := f.tickAt(0, tl(100, 16))
	require.Equal(200, r.DailyCounter, "rollover is evaluated on synced ticks")

	r = f.tickAt(time.Second, tl(100, 16))
	require.Equal(domain.TICK_OUTCOME_GATE_CLOSED, r.Outcome)
	require.Zero(r.DailyCounter)
	require.Contains(f.notifier.messages, "Daily counter reset")
	require.Len(f.repo.saved, 1)
	require.Zero(f.repo.saved[0].DailyCounter)
	require.Equal("2025-06-01", f.ctrl.Status().LastResetDate)
}

func TestControllerOutsideWindow(t *testing.T) {
	require := require.New(t)
	cfg := testControllerConfig
	cfg.ChargeHourStart = 12
	cfg.ChargeHourEnd = 17
	f := newFixture(cfg, validRecord())

	f.tickAt(0, tl(0, 16))
	r := f.tickAt(time.Minute, tl(0, 16))
	require.Equal(domain.TICK_OUTCOME_OUTSIDE_WINDOW, r.Outcome)
	require.Equal(1, r.Samples, "the smoother is fed outside the window")
}

func TestControllerDisabled(t *testing.T) {
	require := require.New(t)
	f := newFixture(testControllerConfig, validRecord())
	f.coldStartAndFill(require, 16, 300)

	require.True(f.ctrl.SetEnabled(false))
	require.False(f.ctrl.SetEnabled(false))

	r := f.tickAt(41*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_DISABLED, r.Outcome)
	require.Equal(10, r.Samples)
	require.False(f.ctrl.Status().Enabled)

	// the gate was not consumed while disabled
	require.True(f.ctrl.SetEnabled(true))
	r = f.tickAt(42*time.Second, tl(300, 16))
	require.Equal(domain.TICK_OUTCOME_COMMITTED, r.Outcome)
}
