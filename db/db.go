package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS areas (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	mode TEXT NOT NULL DEFAULT 'heat',
	heating_system TEXT NOT NULL DEFAULT 'radiator',
	target_temp REAL,
	preset TEXT NOT NULL DEFAULT 'none',
	preset_temps TEXT NOT NULL DEFAULT '{}',
	hysteresis REAL,
	boost_active BOOLEAN NOT NULL DEFAULT FALSE,
	boost_end_time TEXT NOT NULL DEFAULT '',
	boost_temp REAL NOT NULL DEFAULT 0,
	night_boost TEXT NOT NULL DEFAULT '{}',
	smart_boost TEXT NOT NULL DEFAULT '{}',
	window_sensors TEXT NOT NULL DEFAULT '[]',
	presence_sensors TEXT NOT NULL DEFAULT '[]',
	manual_override BOOLEAN NOT NULL DEFAULT FALSE,
	curve_coefficient REAL,
	autotune_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	pid_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	automatic_gains BOOLEAN NOT NULL DEFAULT FALSE,
	pid_active_modes TEXT NOT NULL DEFAULT '[]',
	kp REAL NOT NULL DEFAULT 0,
	ki REAL NOT NULL DEFAULT 0,
	kd REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	area_id TEXT NOT NULL REFERENCES areas(id),
	days TEXT NOT NULL DEFAULT '[]',
	date TEXT,
	start_minute INTEGER NOT NULL,
	end_minute INTEGER NOT NULL,
	preset TEXT,
	temperature REAL
);
`

// Open opens (creating if needed) the engine database and applies the
// schema.
func Open(path string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return conn, nil
}

// SeedDatabase writes the configured areas and schedules on first run.
// An already-populated database is left alone so runtime edits survive
// restarts.
func SeedDatabase(conn *sqlx.DB, cfg *config.Config) error {
	var count int
	if err := conn.Get(&count, `SELECT COUNT(*) FROM areas`); err != nil {
		return fmt.Errorf("failed to count areas: %w", err)
	}
	if count > 0 {
		log.Debug().Int("areas", count).Msg("Database already seeded")
		return nil
	}

	tx, err := conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range cfg.Areas {
		boostEnd := ""
		if !a.Boost.EndTime.IsZero() {
			boostEnd = a.Boost.EndTime.Format(time.RFC3339)
		}
		_, err = tx.Exec(`INSERT INTO areas
			(id, label, enabled, mode, heating_system, target_temp, preset, preset_temps,
			 hysteresis, boost_active, boost_end_time, boost_temp, night_boost, smart_boost,
			 window_sensors, presence_sensors, manual_override, curve_coefficient, autotune_enabled,
			 pid_enabled, automatic_gains, pid_active_modes, kp, ki, kd)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Label, a.Enabled, a.Mode, a.System, a.TargetTemp, a.Preset, marshalJSON(a.PresetTemps),
			a.Hysteresis, a.Boost.Active, boostEnd, a.Boost.Temperature, marshalJSON(a.NightBoost), marshalJSON(a.SmartBoost),
			marshalJSON(a.WindowSensors), marshalJSON(a.PresenceSensors), a.ManualOverride, a.CurveCoefficient, a.AutotuneEnabled,
			a.PIDEnabled, a.AutomaticGains, marshalJSON(a.PIDActiveModes), a.Kp, a.Ki, a.Kd)
		if err != nil {
			return fmt.Errorf("failed to insert area %s: %w", a.ID, err)
		}
	}

	for _, s := range cfg.Schedules {
		_, err = tx.Exec(`INSERT INTO schedules
			(area_id, days, date, start_minute, end_minute, preset, temperature)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.AreaID, marshalJSON(s.Days), s.Date, s.StartMinute, s.EndMinute, s.Preset, s.Temperature)
		if err != nil {
			return fmt.Errorf("failed to insert schedule for area %s: %w", s.AreaID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	log.Info().Int("areas", len(cfg.Areas)).Int("schedules", len(cfg.Schedules)).Msg("Database seeded from config")
	return nil
}

func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
