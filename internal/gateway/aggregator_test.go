package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

func TestAggregatePicksHighestCandidate(t *testing.T) {
	a := New(false, false, 80.0)

	got := a.Aggregate([]Candidate{
		{AreaID: "living_room", Setpoint: 62.0, System: model.SystemRadiator},
		{AreaID: "bathroom", Setpoint: 44.0, System: model.SystemFloorHeating},
		{AreaID: "office", Setpoint: 58.5, System: model.SystemRadiator},
	})

	assert.Equal(t, 62.0, got)
}

func TestAggregateExcludesAirco(t *testing.T) {
	a := New(false, false, 80.0)

	got := a.Aggregate([]Candidate{
		{AreaID: "living_room", Setpoint: 62.0, System: model.SystemRadiator},
		{AreaID: "bedroom", Setpoint: 75.0, System: model.SystemAirco},
	})

	assert.Equal(t, 62.0, got, "airco candidates must never drive the boiler")
}

func TestAggregateNoCandidatesIsBoilerOff(t *testing.T) {
	a := New(false, false, 80.0)

	assert.Equal(t, 0.0, a.Aggregate(nil))
	assert.Equal(t, 0.0, a.Aggregate([]Candidate{
		{AreaID: "bedroom", Setpoint: 75.0, System: model.SystemAirco},
	}))
}

func TestAggregatePWMDuty(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		maxBoiler  float64
		expected   float64
	}{
		{
			name: "radiator duty below threshold suppresses command",
			// duty = (65-55)/(80-55) = 0.4
			candidates: []Candidate{
				{AreaID: "living_room", Setpoint: 65.0, System: model.SystemRadiator},
			},
			maxBoiler: 80.0,
			expected:  0.0,
		},
		{
			name: "radiator duty at threshold passes through",
			// duty = (67.5-55)/(80-55) = 0.5
			candidates: []Candidate{
				{AreaID: "living_room", Setpoint: 67.5, System: model.SystemRadiator},
			},
			maxBoiler: 80.0,
			expected:  67.5,
		},
		{
			name: "floor candidate lowers the duty base",
			// duty = (45-40)/(80-40) = 0.125
			candidates: []Candidate{
				{AreaID: "bathroom", Setpoint: 45.0, System: model.SystemFloorHeating},
			},
			maxBoiler: 80.0,
			expected:  0.0,
		},
		{
			name: "degenerate span disables duty suppression",
			candidates: []Candidate{
				{AreaID: "living_room", Setpoint: 45.0, System: model.SystemRadiator},
			},
			maxBoiler: 55.0,
			expected:  45.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(true, false, tt.maxBoiler)
			assert.Equal(t, tt.expected, a.Aggregate(tt.candidates))
		})
	}
}

func TestAggregatePWMSkippedWhenGatewayModulates(t *testing.T) {
	a := New(true, true, 80.0)

	got := a.Aggregate([]Candidate{
		{AreaID: "living_room", Setpoint: 60.0, System: model.SystemRadiator},
	})

	assert.Equal(t, 60.0, got, "true modulation reporting bypasses duty suppression")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5.0))
	assert.Equal(t, 90.0, Clamp(95.0))
	assert.Equal(t, 62.0, Clamp(62.0))
}
