package minsetpoint

import (
	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// approach margin between flow and return temperature; a return within
// this margin of the flow means most valves are closed and the system
// load is low
const returnApproach = 5.0

// Guard raises the boiler setpoint floor when return-water temperature
// indicates low system load, protecting the boiler from cycling against
// too many closed valves.
type Guard struct {
	configuredMin    float64
	adjustmentFactor float64
	current          float64
}

func New(configuredMin, adjustmentFactor float64) *Guard {
	return &Guard{
		configuredMin:    configuredMin,
		adjustmentFactor: adjustmentFactor,
		current:          configuredMin,
	}
}

// Calculate recomputes the floor from the cycle's boiler telemetry.
// The floor never drops below the configured minimum.
func (g *Guard) Calculate(boiler model.BoilerState) float64 {
	threshold := boiler.FlowTemp - returnApproach
	if boiler.ReturnTemp > threshold {
		adjustment := (boiler.ReturnTemp - threshold) * (g.adjustmentFactor / 5.0)
		g.current = g.configuredMin + adjustment
	} else {
		g.current = g.configuredMin
	}
	return g.current
}

// Current returns the floor computed by the last Calculate call.
func (g *Guard) Current() float64 {
	return g.current
}

// Clamp applies the current floor to a candidate setpoint.
func (g *Guard) Clamp(setpoint float64) float64 {
	if setpoint < g.current {
		return g.current
	}
	return setpoint
}
