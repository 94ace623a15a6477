package heatingcurve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

func TestBaseOffsets(t *testing.T) {
	assert.Equal(t, 55.0, BaseOffset(model.SystemRadiator))
	assert.Equal(t, 40.0, BaseOffset(model.SystemFloorHeating))
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name        string
		system      model.HeatingSystem
		coefficient float64
		target      float64
		outside     float64
		want        float64
	}{
		{
			name:   "radiator with default coefficient",
			system: model.SystemRadiator, coefficient: 1.0,
			target: 20.0, outside: 10.0,
			want: 65.0, // 55 + 1.0*(20-10)*1.0
		},
		{
			name:   "floor heating uses lower offset and half slope",
			system: model.SystemFloorHeating, coefficient: 1.0,
			target: 20.0, outside: 10.0,
			want: 45.0, // 40 + 1.0*(20-10)*0.5
		},
		{
			name:   "steeper coefficient",
			system: model.SystemRadiator, coefficient: 1.5,
			target: 21.0, outside: -5.0,
			want: 94.0, // 55 + 1.5*26
		},
		{
			name:   "warm outside pulls flow below base offset",
			system: model.SystemRadiator, coefficient: 1.0,
			target: 20.0, outside: 25.0,
			want: 50.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.system, tt.coefficient)
			assert.InDelta(t, tt.want, m.Calculate(tt.target, tt.outside), 0.001)
		})
	}
}

func TestUpdateMemoizesValue(t *testing.T) {
	m := New(model.SystemRadiator, 1.0)

	_, ok := m.Value()
	assert.False(t, ok, "no value before first update")

	got := m.Update(20.0, 10.0)
	assert.InDelta(t, 65.0, got, 0.001)

	v, ok := m.Value()
	require.True(t, ok)
	assert.Equal(t, got, v)

	// Calculate alone must not touch the memoized value
	m.Calculate(25.0, -10.0)
	v, _ = m.Value()
	assert.InDelta(t, 65.0, v, 0.001)
}

func TestObserveAutotune(t *testing.T) {
	m := New(model.SystemRadiator, 1.0)

	// implausibly low setpoints are discarded
	assert.Nil(t, m.Observe(12.0, 20.0, 5.0))
	assert.Nil(t, m.Observe(29.9, 20.0, 5.0))

	// zero temperature delta cannot produce a sample
	assert.Nil(t, m.Observe(65.0, 10.0, 10.0))

	avg := m.Observe(70.0, 20.0, 5.0) // coefficient sample = (70-55)/15 = 1.0
	require.NotNil(t, avg)
	assert.InDelta(t, 1.0, *avg, 0.001)

	avg = m.Observe(85.0, 20.0, 5.0) // sample = 2.0, average with 1.0
	require.NotNil(t, avg)
	assert.InDelta(t, 1.5, *avg, 0.001)
}
