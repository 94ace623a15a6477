package db

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/heating-engine/internal/config"
	"github.com/thatsimonsguy/heating-engine/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func seededDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := Open(":memory:")
	require.NoError(t, err)
	// a second pooled connection would get its own empty in-memory db
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	cfg := &config.Config{
		Areas: []model.Area{
			{
				ID:      "living_room",
				Label:   "Living Room",
				Enabled: true,
				Mode:    model.ModeHeat,
				System:  model.SystemRadiator,
				Preset:  model.PresetHome,
				PresetTemps: map[model.Preset]*float64{
					model.PresetHome: floatPtr(21.0),
					model.PresetEco:  nil,
				},
				TargetTemp:       floatPtr(20.0),
				Hysteresis:       floatPtr(0.6),
				CurveCoefficient: floatPtr(1.2),
				AutotuneEnabled:  true,
				PIDEnabled:       true,
				AutomaticGains:   true,
				PIDActiveModes:   []string{"schedule", "comfort"},
				WindowSensors: []model.WindowSensor{
					{EntityID: "window_lr", Action: model.WindowTurnOff},
				},
				PresenceSensors: []string{"phone_a"},
				NightBoost:      model.NightBoost{Enabled: true, StartMinute: 1380, EndMinute: 120, Offset: 0.5},
			},
			{
				ID:      "bathroom",
				Enabled: true,
				Mode:    model.ModeHeat,
				System:  model.SystemFloorHeating,
				Preset:  model.PresetNone,
			},
		},
		Schedules: []model.Schedule{
			{
				AreaID:      "living_room",
				Days:        []int{1, 2, 3, 4, 5},
				StartMinute: 360,
				EndMinute:   540,
				Temperature: floatPtr(21.5),
			},
		},
	}
	require.NoError(t, SeedDatabase(conn, cfg))
	return conn
}

func TestSeedAndReadBack(t *testing.T) {
	conn := seededDB(t)

	areas, err := GetAreas(conn)
	require.NoError(t, err)
	require.Len(t, areas, 2)

	lr := areas[1] // ordered by id: bathroom, living_room
	require.Equal(t, "living_room", lr.ID)
	assert.Equal(t, model.SystemRadiator, lr.System)
	assert.Equal(t, model.PresetHome, lr.Preset)
	require.NotNil(t, lr.TargetTemp)
	assert.Equal(t, 20.0, *lr.TargetTemp)
	require.NotNil(t, lr.Hysteresis)
	assert.Equal(t, 0.6, *lr.Hysteresis)
	require.NotNil(t, lr.CurveCoefficient)
	assert.Equal(t, 1.2, *lr.CurveCoefficient)
	assert.True(t, lr.AutotuneEnabled)
	assert.Equal(t, []string{"schedule", "comfort"}, lr.PIDActiveModes)
	require.Len(t, lr.WindowSensors, 1)
	assert.Equal(t, model.WindowTurnOff, lr.WindowSensors[0].Action)
	assert.True(t, lr.NightBoost.Enabled)
	assert.Equal(t, 1380, lr.NightBoost.StartMinute)

	require.Contains(t, lr.PresetTemps, model.PresetHome)
	require.NotNil(t, lr.PresetTemps[model.PresetHome])
	assert.Equal(t, 21.0, *lr.PresetTemps[model.PresetHome])
	assert.Nil(t, lr.PresetTemps[model.PresetEco], "nil preset override must survive the round trip")

	bath := areas[0]
	assert.Equal(t, "bathroom", bath.ID)
	assert.Nil(t, bath.TargetTemp)
	assert.Nil(t, bath.Hysteresis)
	assert.Nil(t, bath.CurveCoefficient)
}

func TestSeedIsIdempotent(t *testing.T) {
	conn := seededDB(t)

	require.NoError(t, UpdateAreaTarget(conn, "living_room", 23.0))

	// re-seeding a populated database must not clobber runtime edits
	require.NoError(t, SeedDatabase(conn, &config.Config{
		Areas: []model.Area{{ID: "living_room", Enabled: true, Mode: model.ModeHeat, System: model.SystemRadiator}},
	}))

	a, err := GetAreaByID(conn, "living_room")
	require.NoError(t, err)
	require.NotNil(t, a.TargetTemp)
	assert.Equal(t, 23.0, *a.TargetTemp)
}

func TestGetSchedules(t *testing.T) {
	conn := seededDB(t)

	schedules, err := GetSchedules(conn)
	require.NoError(t, err)
	require.Len(t, schedules, 1)

	s := schedules[0]
	assert.Equal(t, "living_room", s.AreaID)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Days)
	assert.Equal(t, 360, s.StartMinute)
	assert.Nil(t, s.Preset)
	require.NotNil(t, s.Temperature)
	assert.Equal(t, 21.5, *s.Temperature)
}

func TestManualOverrideTransaction(t *testing.T) {
	conn := seededDB(t)

	require.NoError(t, SetManualOverride(conn, "living_room", 23.5))

	a, err := GetAreaByID(conn, "living_room")
	require.NoError(t, err)
	assert.True(t, a.ManualOverride)
	require.NotNil(t, a.TargetTemp)
	assert.Equal(t, 23.5, *a.TargetTemp, "override flag and target must land together")

	require.NoError(t, ClearManualOverride(conn, "living_room"))
	a, err = GetAreaByID(conn, "living_room")
	require.NoError(t, err)
	assert.False(t, a.ManualOverride)
	assert.Equal(t, 23.5, *a.TargetTemp, "clearing the flag keeps the adopted target")
}

func TestClearBoost(t *testing.T) {
	conn := seededDB(t)

	_, err := conn.Exec(`UPDATE areas SET boost_active = TRUE, boost_end_time = '2026-01-15T12:00:00Z', boost_temp = 25, preset = 'boost' WHERE id = 'living_room'`)
	require.NoError(t, err)

	require.NoError(t, ClearBoost(conn, "living_room"))

	a, err := GetAreaByID(conn, "living_room")
	require.NoError(t, err)
	assert.False(t, a.Boost.Active)
	assert.True(t, a.Boost.EndTime.IsZero())
	assert.Equal(t, model.PresetNone, a.Preset)
}

func TestUpdateCurveCoefficient(t *testing.T) {
	conn := seededDB(t)

	require.NoError(t, UpdateCurveCoefficient(conn, "bathroom", 0.85))

	a, err := GetAreaByID(conn, "bathroom")
	require.NoError(t, err)
	require.NotNil(t, a.CurveCoefficient)
	assert.Equal(t, 0.85, *a.CurveCoefficient)
}

func TestUpdateAreaPresetAndEnabled(t *testing.T) {
	conn := seededDB(t)

	require.NoError(t, UpdateAreaPreset(conn, "living_room", model.PresetAway))
	require.NoError(t, UpdateAreaEnabled(conn, "living_room", false))

	a, err := GetAreaByID(conn, "living_room")
	require.NoError(t, err)
	assert.Equal(t, model.PresetAway, a.Preset)
	assert.False(t, a.Enabled)
}
