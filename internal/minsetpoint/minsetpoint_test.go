package minsetpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		flow     float64
		ret      float64
		expected float64
	}{
		{
			name:     "return well below flow keeps configured minimum",
			flow:     60.0,
			ret:      40.0,
			expected: 41.0,
		},
		{
			name:     "return exactly at threshold keeps configured minimum",
			flow:     60.0,
			ret:      55.0,
			expected: 41.0,
		},
		{
			name:     "return one degree over threshold raises the floor",
			flow:     60.0,
			ret:      56.0,
			expected: 41.5, // 41 + 1 * (2.5/5)
		},
		{
			name:     "return matching flow raises by full approach margin",
			flow:     60.0,
			ret:      60.0,
			expected: 43.5, // 41 + 5 * (2.5/5)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(41.0, 2.5)
			got := g.Calculate(model.BoilerState{FlowTemp: tt.flow, ReturnTemp: tt.ret})
			assert.InDelta(t, tt.expected, got, 0.0001)
			assert.Equal(t, got, g.Current())
		})
	}
}

func TestFloorRecedesWhenLoadReturns(t *testing.T) {
	g := New(41.0, 2.5)

	g.Calculate(model.BoilerState{FlowTemp: 60.0, ReturnTemp: 60.0})
	assert.InDelta(t, 43.5, g.Current(), 0.0001)

	g.Calculate(model.BoilerState{FlowTemp: 60.0, ReturnTemp: 45.0})
	assert.InDelta(t, 41.0, g.Current(), 0.0001)
}

func TestClamp(t *testing.T) {
	g := New(41.0, 2.5)

	assert.Equal(t, 41.0, g.Clamp(38.0))
	assert.Equal(t, 65.0, g.Clamp(65.0))

	g.Calculate(model.BoilerState{FlowTemp: 60.0, ReturnTemp: 60.0})
	assert.InDelta(t, 43.5, g.Clamp(42.0), 0.0001)
}
