package heatingcurve

import (
	"github.com/thatsimonsguy/heating-engine/internal/model"
)

const (
	RadiatorBaseOffset = 55.0
	FloorBaseOffset    = 40.0

	radiatorSlope = 1.0
	floorSlope    = 0.5

	// setpoints below this are transient or garbage samples and must
	// not pollute the tuned coefficient
	autotuneMinSetpoint = 30.0
)

// BaseOffset is the fixed flow-temperature offset per heating system.
// Airco areas have no heating curve; they share the radiator offset
// only for completeness and are filtered out upstream.
func BaseOffset(system model.HeatingSystem) float64 {
	if system == model.SystemFloorHeating {
		return FloorBaseOffset
	}
	return RadiatorBaseOffset
}

func slope(system model.HeatingSystem) float64 {
	if system == model.SystemFloorHeating {
		return floorSlope
	}
	return radiatorSlope
}

// Model estimates the boiler flow temperature for one area and
// memoizes the last computed value for downstream components and
// diagnostics.
type Model struct {
	system      model.HeatingSystem
	coefficient float64

	value    float64
	hasValue bool

	tuneSamples []float64
}

func New(system model.HeatingSystem, coefficient float64) *Model {
	return &Model{system: system, coefficient: coefficient}
}

// Calculate maps target and outside temperature to an estimated flow
// temperature without touching the memoized value.
func (m *Model) Calculate(target, outside float64) float64 {
	return BaseOffset(m.system) + m.coefficient*(target-outside)*slope(m.system)
}

// Update recomputes and memoizes the flow-temperature estimate.
func (m *Model) Update(target, outside float64) float64 {
	m.value = m.Calculate(target, outside)
	m.hasValue = true
	return m.value
}

// Value returns the last memoized flow temperature.
func (m *Model) Value() (float64, bool) {
	return m.value, m.hasValue
}

func (m *Model) Coefficient() float64 {
	return m.coefficient
}

func (m *Model) SetCoefficient(c float64) {
	m.coefficient = c
}

// Observe feeds the autotuner one externally-supplied setpoint together
// with the conditions it was issued under. Setpoints below the
// plausibility threshold are a no-op. The returned pointer is nil until
// a coefficient average is available.
func (m *Model) Observe(setpoint, target, outside float64) *float64 {
	if setpoint < autotuneMinSetpoint {
		return nil
	}
	delta := (target - outside) * slope(m.system)
	if delta == 0 {
		return nil
	}

	m.tuneSamples = append(m.tuneSamples, (setpoint-BaseOffset(m.system))/delta)

	sum := 0.0
	for _, s := range m.tuneSamples {
		sum += s
	}
	avg := sum / float64(len(m.tuneSamples))
	return &avg
}
