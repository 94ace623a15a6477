package pid

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Minimum interval between integral advances. Between updates the last
// output is held and re-applied rather than recomputed.
var updateIntervals = map[model.HeatingSystem]time.Duration{
	model.SystemRadiator:     300 * time.Second,
	model.SystemFloorHeating: 600 * time.Second,
	model.SystemAirco:        180 * time.Second,
}

type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Controller is the per-area corrector layered on top of the
// heating-curve estimate. Destroying it (via Reset) whenever the area
// leaves a PID-eligible mode is the anti-windup mechanism between mode
// changes.
type Controller struct {
	areaID    string
	system    model.HeatingSystem
	deadband  float64
	automatic bool
	gainValue float64
	manual    Gains

	integral   float64
	lastError  float64
	lastTime   time.Time
	lastOutput float64
	primed     bool
}

func New(areaID string, system model.HeatingSystem, deadband float64, automatic bool, gainValue float64, manual Gains) *Controller {
	return &Controller{
		areaID:    areaID,
		system:    system,
		deadband:  deadband,
		automatic: automatic,
		gainValue: gainValue,
		manual:    manual,
	}
}

// Update advances the controller with the current temperature error and
// the memoized heating-curve value. Inside the deadband the output is
// exactly zero and no state is touched, so the integral cannot drift
// while the area sits on target.
func (c *Controller) Update(err, curveValue float64, now time.Time) float64 {
	if math.Abs(err) <= c.deadband {
		return 0.0
	}

	if c.primed && now.Sub(c.lastTime) < updateIntervals[c.system] {
		return c.lastOutput
	}

	dt := now.Sub(c.lastTime).Seconds()
	if !c.primed || dt <= 0 {
		dt = 1
	}

	gains := c.gains(curveValue)

	c.integral += gains.Ki * err * dt
	derivative := gains.Kd * (err - c.lastError) / dt

	output := gains.Kp*err + c.integral + derivative

	c.lastError = err
	c.lastTime = now
	c.lastOutput = output
	c.primed = true

	log.Debug().
		Str("area", c.areaID).
		Float64("error", err).
		Float64("kp", gains.Kp).
		Float64("integral", c.integral).
		Float64("derivative", derivative).
		Float64("output", output).
		Msg("PID updated")

	return output
}

// LastOutput returns the held output for cycles between updates.
func (c *Controller) LastOutput() float64 {
	return c.lastOutput
}

// Reset discards accumulated state, forcing a fresh integral on
// re-entry into a PID-eligible mode.
func (c *Controller) Reset() {
	c.integral = 0
	c.lastError = 0
	c.lastTime = time.Time{}
	c.lastOutput = 0
	c.primed = false
}

func (c *Controller) gains(curveValue float64) Gains {
	if !c.automatic {
		return c.manual
	}
	scale := 1 + curveValue/40
	if scale < 0.1 {
		scale = 0.1
	}
	if scale > 3.0 {
		scale = 3.0
	}
	scale *= c.gainValue
	return Gains{Kp: scale, Ki: scale / 7200, Kd: c.manual.Kd}
}
