package service

import (
	"errors"
	"time"
)

const DATE_LAYOUT = "2006-01-02"

var (
	ErrQuotaExhausted  = errors.New("daily command quota exhausted")
	ErrDuplicateTarget = errors.New("target current already sent")
)

// CommandBudget is the calendar-day quota of remote commands.
// The day boundary is evaluated lazily by Rollover, in the configured location.
type CommandBudget struct {
	max           int
	counter       int
	lastResetDate string
	loc           *time.Location
}

func NewCommandBudget(max int, loc *time.Location) *CommandBudget {
	if loc == nil {
		loc = time.Local
	}
	return &CommandBudget{
		max: max,
		loc: loc,
	}
}

// Seed restores the counter and takes the reset date from the persisted last update.
// When lastUpdate is unknown the date stays unset until the first Rollover.
func (b *CommandBudget) Seed(counter int, lastUpdate time.Time, known bool) {
	b.counter = max(counter, 0)
	if known {
		b.lastResetDate = lastUpdate.In(b.loc).Format(DATE_LAYOUT)
	} else {
		b.lastResetDate = ""
	}
}

// Rollover resets the counter when the local date changed since the last reset.
// It returns true only when a reset happened.
func (b *CommandBudget) Rollover(now time.Time) bool {
	today := now.In(b.loc).Format(DATE_LAYOUT)
	if b.lastResetDate == "" {
		b.lastResetDate = today
		return false
	}
	if today == b.lastResetDate {
		return false
	}
	b.counter = 0
	b.lastResetDate = today
	return true
}

func (b *CommandBudget) Exhausted() bool {
	return b.counter >= b.max
}

// Spend takes one command from the quota and returns the new counter value
func (b *CommandBudget) Spend() (int, error) {
	if b.Exhausted() {
		return b.counter, ErrQuotaExhausted
	}
	b.counter++
	return b.counter, nil
}

func (b *CommandBudget) Counter() int {
	return b.counter
}

func (b *CommandBudget) Max() int {
	return b.max
}

func (b *CommandBudget) LastResetDate() string {
	return b.lastResetDate
}
