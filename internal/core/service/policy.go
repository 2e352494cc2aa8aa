package service

import (
	"math"

	"github.com/berfenger/solarcharge2mqtt/internal/core/domain"
)

// step escalation tiers while importing, highest matching tier wins
var importStepTiers = []struct {
	aboveW float64
	step   int
}{
	{4000, 4},
	{2000, 3},
	{500, 2},
}

// StepPolicy decides direction and step from the smoothed grid power.
// Between ZeroThreshold and ImportThreshold there is a dead band.
type StepPolicy struct {
	MinAmps         int
	MaxAmps         int
	Step            int
	ImportThreshold float64
	ZeroThreshold   float64
}

func (p StepPolicy) Decide(currentAmps int, gridW float64) (domain.Direction, int, int) {
	switch {
	case gridW > p.ImportThreshold:
		step := p.importStep(gridW)
		return domain.DIRECTION_DOWN, step, p.Clamp(currentAmps - step)
	case math.Abs(gridW) < p.ZeroThreshold:
		return domain.DIRECTION_UP, p.Step, p.Clamp(currentAmps + p.Step)
	default:
		return domain.DIRECTION_NONE, 0, p.Clamp(currentAmps)
	}
}

func (p StepPolicy) importStep(gridW float64) int {
	for _, tier := range importStepTiers {
		if gridW > tier.aboveW {
			return max(tier.step, p.Step)
		}
	}
	return p.Step
}

func (p StepPolicy) Clamp(amps int) int {
	return min(max(amps, p.MinAmps), p.MaxAmps)
}

// InChargeWindow reports whether hour falls in [start, end], wrapping past midnight when start > end
func InChargeWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}
