package override

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeEngine struct {
	expected   float64
	expectedOK bool

	confirmedArea string
	confirmedTemp float64
	confirmCalls  int
	confirmErr    error
}

func (f *fakeEngine) ExpectedTarget(areaID string, now time.Time) (float64, bool) {
	return f.expected, f.expectedOK
}

func (f *fakeEngine) ConfirmOverride(areaID string, temp float64) error {
	f.confirmCalls++
	f.confirmedArea = areaID
	f.confirmedTemp = temp
	return f.confirmErr
}

type fakeNotifier struct {
	titles []string
}

func (f *fakeNotifier) Send(title, message string) error {
	f.titles = append(f.titles, title)
	return nil
}

func TestHandleTargetChange(t *testing.T) {
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	afterGrace := start.Add(5 * time.Minute)

	tests := []struct {
		name        string
		expected    float64
		expectedOK  bool
		reported    float64
		at          time.Time
		wantConfirm bool
	}{
		{
			name:        "change during grace period ignored",
			expected:    21.0,
			expectedOK:  true,
			reported:    25.0,
			at:          start.Add(30 * time.Second),
			wantConfirm: false,
		},
		{
			name:        "echo of own command ignored",
			expected:    21.0,
			expectedOK:  true,
			reported:    21.0,
			at:          afterGrace,
			wantConfirm: false,
		},
		{
			name:        "rounding within tolerance ignored",
			expected:    21.0,
			expectedOK:  true,
			reported:    21.04,
			at:          afterGrace,
			wantConfirm: false,
		},
		{
			name:        "lower than expected treated as stale echo",
			expected:    21.0,
			expectedOK:  true,
			reported:    19.0,
			at:          afterGrace,
			wantConfirm: false,
		},
		{
			name:        "higher than expected confirms override",
			expected:    21.0,
			expectedOK:  true,
			reported:    23.5,
			at:          afterGrace,
			wantConfirm: true,
		},
		{
			name:        "unknown area ignored",
			expected:    0,
			expectedOK:  false,
			reported:    23.5,
			at:          afterGrace,
			wantConfirm: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{expected: tt.expected, expectedOK: tt.expectedOK}
			notify := &fakeNotifier{}
			d := New(engine, notify, start, 3*time.Minute)

			d.HandleTargetChange("living_room", "thermostat_lr", tt.reported, tt.at)

			if tt.wantConfirm {
				assert.Equal(t, 1, engine.confirmCalls)
				assert.Equal(t, "living_room", engine.confirmedArea)
				assert.Equal(t, tt.reported, engine.confirmedTemp)
				assert.Len(t, notify.titles, 1)
			} else {
				assert.Zero(t, engine.confirmCalls)
				assert.Empty(t, notify.titles)
			}
		})
	}
}

func TestConfirmFailureSkipsNotification(t *testing.T) {
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	engine := &fakeEngine{expected: 21.0, expectedOK: true, confirmErr: errors.New("db locked")}
	notify := &fakeNotifier{}
	d := New(engine, notify, start, 3*time.Minute)

	d.HandleTargetChange("living_room", "thermostat_lr", 23.5, start.Add(10*time.Minute))

	assert.Equal(t, 1, engine.confirmCalls)
	assert.Empty(t, notify.titles, "failed confirm must not announce an override")
}

func TestNilNotifierIsSafe(t *testing.T) {
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	engine := &fakeEngine{expected: 21.0, expectedOK: true}
	d := New(engine, nil, start, 3*time.Minute)

	assert.NotPanics(t, func() {
		d.HandleTargetChange("living_room", "thermostat_lr", 23.5, start.Add(10*time.Minute))
	})
	assert.Equal(t, 1, engine.confirmCalls)
}
