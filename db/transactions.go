package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

func exec(conn *sqlx.DB, what, query string, args ...interface{}) error {
	tx, err := conn.Beginx()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	if _, err := tx.Exec(query, args...); err != nil {
		tx.Rollback()
		return fmt.Errorf("%s: %w", what, err)
	}
	return tx.Commit()
}

// SetManualOverride persists a confirmed override: the flag and the new
// base target in one transaction, so the next cycle sees both or
// neither.
func SetManualOverride(conn *sqlx.DB, id string, temp float64) error {
	return exec(conn, "set manual override",
		`UPDATE areas SET manual_override = TRUE, target_temp = ? WHERE id = ?`, temp, id)
}

// ClearManualOverride drops the override flag once the system has
// adopted the user's target.
func ClearManualOverride(conn *sqlx.DB, id string) error {
	return exec(conn, "clear manual override",
		`UPDATE areas SET manual_override = FALSE WHERE id = ?`, id)
}

func UpdateAreaTarget(conn *sqlx.DB, id string, temp float64) error {
	return exec(conn, "update area target",
		`UPDATE areas SET target_temp = ? WHERE id = ?`, temp, id)
}

func UpdateAreaPreset(conn *sqlx.DB, id string, preset model.Preset) error {
	return exec(conn, "update area preset",
		`UPDATE areas SET preset = ? WHERE id = ?`, string(preset), id)
}

func UpdateAreaEnabled(conn *sqlx.DB, id string, enabled bool) error {
	return exec(conn, "update area enabled",
		`UPDATE areas SET enabled = ? WHERE id = ?`, enabled, id)
}

// ClearBoost persists an expired or cancelled boost together with the
// preset reset the resolver performed.
func ClearBoost(conn *sqlx.DB, id string) error {
	return exec(conn, "clear boost",
		`UPDATE areas SET boost_active = FALSE, boost_end_time = '', preset = 'none' WHERE id = ?`, id)
}

// UpdateCurveCoefficient backs an autotuned coefficient with
// configuration so it survives restarts.
func UpdateCurveCoefficient(conn *sqlx.DB, id string, coefficient float64) error {
	return exec(conn, "update curve coefficient",
		`UPDATE areas SET curve_coefficient = ? WHERE id = ?`, coefficient, id)
}
