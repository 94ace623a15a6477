package gateway

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/datadog"
	"github.com/thatsimonsguy/heating-engine/internal/heatingcurve"
	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Hard protocol limits of the downstream gateway. Commands outside this
// range are clamped, never surfaced as errors.
const (
	MinSetpoint = 0.0
	MaxSetpoint = 90.0
)

const pwmDutyThreshold = 0.5

// Candidate is one heating area's proposed boiler setpoint for the
// current cycle.
type Candidate struct {
	AreaID   string
	Setpoint float64
	System   model.HeatingSystem
}

// Aggregator combines all areas' candidates into the one command the
// shared boiler can take. Candidates must all come from the same
// control cycle; mixing cycles is a correctness bug.
type Aggregator struct {
	pwmEnabled        bool
	reportsModulation bool
	maxBoilerTemp     float64
}

func New(pwmEnabled, reportsModulation bool, maxBoilerTemp float64) *Aggregator {
	return &Aggregator{
		pwmEnabled:        pwmEnabled,
		reportsModulation: reportsModulation,
		maxBoilerTemp:     maxBoilerTemp,
	}
}

// Aggregate picks the highest candidate as the boiler command, or 0
// (boiler off) when no eligible area is heating. Airco areas never
// participate. For gateways without true modulation reporting, a PWM
// duty ratio decides whether the setpoint is worth firing the burner
// at all.
func (a *Aggregator) Aggregate(candidates []Candidate) float64 {
	best := 0.0
	anyFloor := false
	eligible := 0

	for _, c := range candidates {
		if c.System == model.SystemAirco {
			continue
		}
		eligible++
		if c.System == model.SystemFloorHeating {
			anyFloor = true
		}
		if c.Setpoint > best {
			best = c.Setpoint
		}
	}

	datadog.Gauge("boiler.candidates", float64(eligible))

	if eligible == 0 {
		return 0.0
	}

	if a.pwmEnabled && !a.reportsModulation {
		base := heatingcurve.RadiatorBaseOffset
		if anyFloor {
			base = heatingcurve.FloorBaseOffset
		}
		if duty, ok := dutyRatio(best, base, a.maxBoilerTemp); ok && duty < pwmDutyThreshold {
			log.Debug().
				Float64("setpoint", best).
				Float64("duty", duty).
				Msg("PWM duty below threshold, suppressing boiler command")
			best = 0.0
		}
	}

	return Clamp(best)
}

func dutyRatio(setpoint, base, boilerTemp float64) (float64, bool) {
	span := boilerTemp - base
	if span <= 0 {
		return 0, false
	}
	return (setpoint - base) / span, true
}

// Clamp forces a command into the gateway's protocol range.
func Clamp(setpoint float64) float64 {
	if setpoint < MinSetpoint {
		return MinSetpoint
	}
	if setpoint > MaxSetpoint {
		return MaxSetpoint
	}
	return setpoint
}
