package startup

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/db"
	"github.com/thatsimonsguy/heating-engine/internal/config"
)

// OpenDatabase opens the engine database and seeds it from config on
// first run.
func OpenDatabase(cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	if err := db.SeedDatabase(conn, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed database: %w", err)
	}

	areas, err := db.GetAreas(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("verify database: %w", err)
	}
	log.Info().Str("path", cfg.DBPath).Int("areas", len(areas)).Msg("Database ready")
	return conn, nil
}

// LoadDevices loads the device/topic map and checks that every
// configured area has devices to command.
func LoadDevices(cfg *config.Config) (*config.DeviceMap, error) {
	devices, err := config.LoadDeviceMap(cfg.DevicesFile)
	if err != nil {
		return nil, err
	}

	for _, a := range cfg.Areas {
		if _, ok := devices.Areas[a.ID]; !ok {
			log.Warn().Str("area", a.ID).Msg("Area has no device mapping, decisions will not actuate")
		}
	}
	log.Info().Int("areas", len(devices.Areas)).Str("gateway", devices.Gateway.ID).Msg("Device map loaded")
	return devices, nil
}
