package domain

import "time"

type Direction string

const (
	DIRECTION_NONE Direction = ""
	DIRECTION_UP   Direction = "UP"
	DIRECTION_DOWN Direction = "DOWN"
)

type ControllerState string

const (
	CONTROLLER_STATE_UNINITIALIZED ControllerState = "uninitialized"
	CONTROLLER_STATE_SYNCED        ControllerState = "synced"
)

type TickOutcome string

const (
	TICK_OUTCOME_SYNCED          TickOutcome = "synced"
	TICK_OUTCOME_LOAD_ERROR      TickOutcome = "load_error"
	TICK_OUTCOME_DISABLED        TickOutcome = "disabled"
	TICK_OUTCOME_OUTSIDE_WINDOW  TickOutcome = "outside_window"
	TICK_OUTCOME_GATE_CLOSED     TickOutcome = "gate_closed"
	TICK_OUTCOME_TOKEN_ERROR     TickOutcome = "token_error"
	TICK_OUTCOME_NO_CHANGE       TickOutcome = "no_change"
	TICK_OUTCOME_DUPLICATE       TickOutcome = "duplicate"
	TICK_OUTCOME_QUOTA_EXHAUSTED TickOutcome = "quota_exhausted"
	TICK_OUTCOME_COMMITTED       TickOutcome = "committed"
	TICK_OUTCOME_COMMAND_FAILED  TickOutcome = "command_failed"
)

// TickResult describes what a single control loop evaluation decided
type TickResult struct {
	Outcome       TickOutcome
	Direction     Direction
	Step          int
	CurrentAmps   int
	TargetAmps    int
	SmoothedGridW float64
	Samples       int
	DailyCounter  int
	Err           error
}

// Committed reports whether a new current was accepted by the vehicle
func (r TickResult) Committed() bool {
	return r.Outcome == TICK_OUTCOME_COMMITTED
}

type ControllerStatus struct {
	State          ControllerState `json:"state"`
	Enabled        bool            `json:"enabled"`
	CurrentAmps    int             `json:"current_amps"`
	LastSentAmps   int             `json:"last_sent_amps"`
	DailyCounter   int             `json:"daily_counter"`
	MaxDaily       int             `json:"max_daily_commands"`
	LastResetDate  string          `json:"last_reset_date,omitempty"`
	SmoothedGridW  float64         `json:"smoothed_grid_w"`
	Samples        int             `json:"samples"`
	LastAdjust     time.Time       `json:"last_adjust"`
	LastDirection  Direction       `json:"last_direction,omitempty"`
	LastStep       int             `json:"last_step"`
	LastOutcome    TickOutcome     `json:"last_outcome,omitempty"`
	TokenExpiresAt time.Time       `json:"token_expires_at"`
}
