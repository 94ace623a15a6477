package override

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/datadog"
)

// matches device echoes that round-trip through 0.1-degree thermostat
// registers
const tolerance = 0.05

// Engine is the orchestrator surface the detector needs: what the
// system itself currently wants an area to be at, and the confirm path
// that flags the override, persists the new target and forces a cycle.
type Engine interface {
	ExpectedTarget(areaID string, now time.Time) (float64, bool)
	ConfirmOverride(areaID string, temp float64) error
}

type Notifier interface {
	Send(title, message string) error
}

// Detector classifies debounced target-temperature changes as
// system-originated echoes or genuine human input.
type Detector struct {
	engine Engine
	notify Notifier
	start  time.Time
	grace  time.Duration
}

func New(engine Engine, notify Notifier, start time.Time, grace time.Duration) *Detector {
	return &Detector{
		engine: engine,
		notify: notify,
		start:  start,
		grace:  grace,
	}
}

// HandleTargetChange runs after the debounce quiet period. During the
// startup grace window every change is ignored: devices replay stale
// retained state at boot and none of it is a human at the dial.
func (d *Detector) HandleTargetChange(areaID, deviceID string, newTemp float64, now time.Time) {
	if now.Sub(d.start) < d.grace {
		log.Debug().
			Str("area", areaID).
			Str("device", deviceID).
			Float64("temp", newTemp).
			Msg("Target change during startup grace period, ignoring")
		return
	}

	expected, ok := d.engine.ExpectedTarget(areaID, now)
	if !ok {
		log.Warn().Str("area", areaID).Msg("No expected target for area, ignoring device change")
		return
	}

	diff := newTemp - expected
	if diff > -tolerance && diff < tolerance {
		// our own command echoed back
		return
	}
	if diff < 0 {
		// stale echo from a previous preset, not a human turning the dial up
		log.Debug().
			Str("area", areaID).
			Float64("reported", newTemp).
			Float64("expected", expected).
			Msg("Lower-than-expected target change treated as stale echo")
		return
	}

	log.Info().
		Str("area", areaID).
		Str("device", deviceID).
		Float64("reported", newTemp).
		Float64("expected", expected).
		Msg("Manual override detected")

	if err := d.engine.ConfirmOverride(areaID, newTemp); err != nil {
		log.Error().Err(err).Str("area", areaID).Msg("Failed to confirm manual override")
		return
	}

	datadog.Count("override.detected", 1, fmt.Sprintf("area:%s", areaID))
	if d.notify != nil {
		if err := d.notify.Send("Manual override", fmt.Sprintf("Area %s set to %.1f°C by hand", areaID, newTemp)); err != nil {
			log.Warn().Err(err).Msg("Failed to send override notification")
		}
	}
}
