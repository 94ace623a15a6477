package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

type areaRow struct {
	ID               string   `db:"id"`
	Label            string   `db:"label"`
	Enabled          bool     `db:"enabled"`
	Mode             string   `db:"mode"`
	HeatingSystem    string   `db:"heating_system"`
	TargetTemp       *float64 `db:"target_temp"`
	Preset           string   `db:"preset"`
	PresetTemps      string   `db:"preset_temps"`
	Hysteresis       *float64 `db:"hysteresis"`
	BoostActive      bool     `db:"boost_active"`
	BoostEndTime     string   `db:"boost_end_time"`
	BoostTemp        float64  `db:"boost_temp"`
	NightBoost       string   `db:"night_boost"`
	SmartBoost       string   `db:"smart_boost"`
	WindowSensors    string   `db:"window_sensors"`
	PresenceSensors  string   `db:"presence_sensors"`
	ManualOverride   bool     `db:"manual_override"`
	CurveCoefficient *float64 `db:"curve_coefficient"`
	AutotuneEnabled  bool     `db:"autotune_enabled"`
	PIDEnabled       bool     `db:"pid_enabled"`
	AutomaticGains   bool     `db:"automatic_gains"`
	PIDActiveModes   string   `db:"pid_active_modes"`
	Kp               float64  `db:"kp"`
	Ki               float64  `db:"ki"`
	Kd               float64  `db:"kd"`
}

func (r *areaRow) toArea() (*model.Area, error) {
	a := &model.Area{
		ID:               r.ID,
		Label:            r.Label,
		Enabled:          r.Enabled,
		Mode:             model.HVACMode(r.Mode),
		System:           model.HeatingSystem(r.HeatingSystem),
		TargetTemp:       r.TargetTemp,
		Preset:           model.Preset(r.Preset),
		Hysteresis:       r.Hysteresis,
		ManualOverride:   r.ManualOverride,
		CurveCoefficient: r.CurveCoefficient,
		AutotuneEnabled:  r.AutotuneEnabled,
		PIDEnabled:       r.PIDEnabled,
		AutomaticGains:   r.AutomaticGains,
		Kp:               r.Kp,
		Ki:               r.Ki,
		Kd:               r.Kd,
	}
	a.Boost.Active = r.BoostActive
	a.Boost.Temperature = r.BoostTemp
	if r.BoostEndTime != "" {
		t, err := time.Parse(time.RFC3339, r.BoostEndTime)
		if err != nil {
			return nil, fmt.Errorf("bad boost end time for area %s: %w", r.ID, err)
		}
		a.Boost.EndTime = t
	}

	jsonCols := []struct {
		raw string
		dst interface{}
	}{
		{r.PresetTemps, &a.PresetTemps},
		{r.NightBoost, &a.NightBoost},
		{r.SmartBoost, &a.SmartBoost},
		{r.WindowSensors, &a.WindowSensors},
		{r.PresenceSensors, &a.PresenceSensors},
		{r.PIDActiveModes, &a.PIDActiveModes},
	}
	for _, col := range jsonCols {
		if col.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("bad json column for area %s: %w", r.ID, err)
		}
	}
	return a, nil
}

// GetAreas loads every configured area.
func GetAreas(conn *sqlx.DB) ([]*model.Area, error) {
	var rows []areaRow
	if err := conn.Select(&rows, `SELECT * FROM areas ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}

	areas := make([]*model.Area, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toArea()
		if err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, nil
}

// GetAreaByID loads one area.
func GetAreaByID(conn *sqlx.DB, id string) (*model.Area, error) {
	var row areaRow
	if err := conn.Get(&row, `SELECT * FROM areas WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to get area %s: %w", id, err)
	}
	return row.toArea()
}

type scheduleRow struct {
	ID          int64    `db:"id"`
	AreaID      string   `db:"area_id"`
	Days        string   `db:"days"`
	Date        *string  `db:"date"`
	StartMinute int      `db:"start_minute"`
	EndMinute   int      `db:"end_minute"`
	Preset      *string  `db:"preset"`
	Temperature *float64 `db:"temperature"`
}

// GetSchedules loads every schedule for every area.
func GetSchedules(conn *sqlx.DB) ([]model.Schedule, error) {
	var rows []scheduleRow
	if err := conn.Select(&rows, `SELECT * FROM schedules ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	schedules := make([]model.Schedule, 0, len(rows))
	for _, r := range rows {
		s := model.Schedule{
			ID:          r.ID,
			AreaID:      r.AreaID,
			Date:        r.Date,
			StartMinute: r.StartMinute,
			EndMinute:   r.EndMinute,
			Temperature: r.Temperature,
		}
		if r.Preset != nil {
			p := model.Preset(*r.Preset)
			s.Preset = &p
		}
		if err := json.Unmarshal([]byte(r.Days), &s.Days); err != nil {
			return nil, fmt.Errorf("bad days column for schedule %d: %w", r.ID, err)
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}
