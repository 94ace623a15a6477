package hysteresis

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Actuation is the abstract side effect a transition asks for. The
// orchestrator maps it onto the area's actual devices.
type Actuation int

const (
	ActuateNone Actuation = iota
	ActuateHeatOn
	ActuateHeatOff
	ActuateCoolOn
	ActuateCoolOff
	ActuateForceOff
)

type Input struct {
	Prev       model.AreaState
	Enabled    bool
	Mode       model.HVACMode
	Current    *float64 // nil when the sensor is unavailable
	Target     float64
	TargetOK   bool
	Hysteresis float64
	// a confirmed manual override suppresses evaluation for this cycle
	ManualOverlay bool
}

type Decision struct {
	State   model.AreaState
	Actuate Actuation
	Changed bool
}

// Evaluate applies the dead-band transition rules. Heating starts below
// target-hysteresis/2 and stops at or above target+hysteresis/2, so the
// plant never short-cycles inside the band. Off is forced for disabled
// or off-mode areas regardless of sensor availability.
func Evaluate(in Input) Decision {
	if !in.Enabled || in.Mode == model.ModeOff {
		return Decision{
			State:   model.StateOff,
			Actuate: ActuateForceOff,
			Changed: in.Prev != model.StateOff,
		}
	}

	if in.ManualOverlay {
		return Decision{State: model.StateManual, Actuate: ActuateNone, Changed: in.Prev != model.StateManual}
	}

	prev := in.Prev
	if prev == model.StateManual || prev == model.StateOff || prev == "" {
		// re-enter normal evaluation from a neutral position
		prev = model.StateIdle
	}

	if in.Current == nil || !in.TargetOK {
		log.Debug().Str("prev", string(prev)).Msg("Hysteresis evaluation skipped, sensor data unavailable")
		return Decision{State: prev, Actuate: ActuateNone}
	}

	current := *in.Current
	half := in.Hysteresis / 2

	switch in.Mode {
	case model.ModeHeat:
		if prev == model.StateHeating {
			if current >= in.Target+half {
				return Decision{State: model.StateIdle, Actuate: ActuateHeatOff, Changed: true}
			}
			return Decision{State: model.StateHeating, Actuate: ActuateNone}
		}
		if current < in.Target-half {
			return Decision{State: model.StateHeating, Actuate: ActuateHeatOn, Changed: true}
		}
		return Decision{State: model.StateIdle, Actuate: ActuateNone, Changed: prev != model.StateIdle}

	case model.ModeCool:
		if prev == model.StateCooling {
			if current <= in.Target-half {
				return Decision{State: model.StateIdle, Actuate: ActuateCoolOff, Changed: true}
			}
			return Decision{State: model.StateCooling, Actuate: ActuateNone}
		}
		if current > in.Target+half {
			return Decision{State: model.StateCooling, Actuate: ActuateCoolOn, Changed: true}
		}
		return Decision{State: model.StateIdle, Actuate: ActuateNone, Changed: prev != model.StateIdle}
	}

	return Decision{State: prev, Actuate: ActuateNone}
}
