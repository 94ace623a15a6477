package sensors

import (
	"errors"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// ErrUnavailable marks a reading as unknown: missing, stale or
// non-numeric. Callers skip the area's candidate for the cycle instead
// of guessing a value.
var ErrUnavailable = errors.New("sensor state unavailable")

// Source is the read-only view of the building the engine decides from.
type Source interface {
	AreaTemperature(areaID string) (float64, error)
	OutdoorTemperature() (float64, error)
	BinaryState(entityID string) (bool, error)
	Boiler() (model.BoilerState, error)
}
