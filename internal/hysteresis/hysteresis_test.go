package hysteresis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

func f(v float64) *float64 { return &v }

func heatInput(prev model.AreaState, current float64) Input {
	return Input{
		Prev:       prev,
		Enabled:    true,
		Mode:       model.ModeHeat,
		Current:    f(current),
		Target:     21.0,
		TargetOK:   true,
		Hysteresis: 1.0,
	}
}

func TestEvaluateDeadBand(t *testing.T) {
	tests := []struct {
		name        string
		in          Input
		wantState   model.AreaState
		wantActuate Actuation
	}{
		{
			name:        "heating starts below target minus half band",
			in:          heatInput(model.StateIdle, 20.4),
			wantState:   model.StateHeating,
			wantActuate: ActuateHeatOn,
		},
		{
			name:        "no start inside the dead band",
			in:          heatInput(model.StateIdle, 20.6),
			wantState:   model.StateIdle,
			wantActuate: ActuateNone,
		},
		{
			name:        "no start exactly at the lower threshold",
			in:          heatInput(model.StateIdle, 20.5),
			wantState:   model.StateIdle,
			wantActuate: ActuateNone,
		},
		{
			name:        "heating holds through the dead band",
			in:          heatInput(model.StateHeating, 21.4),
			wantState:   model.StateHeating,
			wantActuate: ActuateNone,
		},
		{
			name:        "heating holds above target until upper threshold",
			in:          heatInput(model.StateHeating, 21.2),
			wantState:   model.StateHeating,
			wantActuate: ActuateNone,
		},
		{
			name:        "heating stops at the upper threshold",
			in:          heatInput(model.StateHeating, 21.5),
			wantState:   model.StateIdle,
			wantActuate: ActuateHeatOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.in)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, tt.wantActuate, got.Actuate)
		})
	}
}

func TestEvaluateForcedOff(t *testing.T) {
	in := heatInput(model.StateHeating, 15.0)
	in.Enabled = false
	in.Current = nil // missing temperature data must not block the shutdown

	got := Evaluate(in)
	assert.Equal(t, model.StateOff, got.State)
	assert.Equal(t, ActuateForceOff, got.Actuate)
	assert.True(t, got.Changed)

	in = heatInput(model.StateHeating, 15.0)
	in.Mode = model.ModeOff
	got = Evaluate(in)
	assert.Equal(t, model.StateOff, got.State)
	assert.Equal(t, ActuateForceOff, got.Actuate)
}

func TestEvaluateManualOverlay(t *testing.T) {
	in := heatInput(model.StateIdle, 15.0) // cold enough to start heating
	in.ManualOverlay = true

	got := Evaluate(in)
	assert.Equal(t, model.StateManual, got.State)
	assert.Equal(t, ActuateNone, got.Actuate, "overlay suppresses evaluation for the cycle")

	// next cycle without the overlay evaluates normally again
	next := heatInput(model.StateManual, 15.0)
	got = Evaluate(next)
	assert.Equal(t, model.StateHeating, got.State)
	assert.Equal(t, ActuateHeatOn, got.Actuate)
}

func TestEvaluateMissingSensorHoldsState(t *testing.T) {
	in := heatInput(model.StateHeating, 0)
	in.Current = nil

	got := Evaluate(in)
	assert.Equal(t, model.StateHeating, got.State)
	assert.Equal(t, ActuateNone, got.Actuate)
}

func TestEvaluateCooling(t *testing.T) {
	coolInput := func(prev model.AreaState, current float64) Input {
		in := heatInput(prev, current)
		in.Mode = model.ModeCool
		return in
	}

	got := Evaluate(coolInput(model.StateIdle, 21.6))
	assert.Equal(t, model.StateCooling, got.State)
	assert.Equal(t, ActuateCoolOn, got.Actuate)

	got = Evaluate(coolInput(model.StateCooling, 21.0))
	assert.Equal(t, model.StateCooling, got.State, "cooling holds inside the band")

	got = Evaluate(coolInput(model.StateCooling, 20.5))
	assert.Equal(t, model.StateIdle, got.State)
	assert.Equal(t, ActuateCoolOff, got.Actuate)
}
