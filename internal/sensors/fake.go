package sensors

import (
	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Fake is an in-memory Source for tests. Absent entries read as
// unavailable, matching the real source's behavior for missing state.
type Fake struct {
	AreaTemps   map[string]float64
	Outdoor     *float64
	Binaries    map[string]bool
	BoilerState *model.BoilerState
}

func NewFake() *Fake {
	return &Fake{
		AreaTemps: map[string]float64{},
		Binaries:  map[string]bool{},
	}
}

func (f *Fake) AreaTemperature(areaID string) (float64, error) {
	v, ok := f.AreaTemps[areaID]
	if !ok {
		return 0, ErrUnavailable
	}
	return v, nil
}

func (f *Fake) OutdoorTemperature() (float64, error) {
	if f.Outdoor == nil {
		return 0, ErrUnavailable
	}
	return *f.Outdoor, nil
}

func (f *Fake) BinaryState(entityID string) (bool, error) {
	v, ok := f.Binaries[entityID]
	if !ok {
		return false, ErrUnavailable
	}
	return v, nil
}

func (f *Fake) Boiler() (model.BoilerState, error) {
	if f.BoilerState == nil {
		return model.BoilerState{}, ErrUnavailable
	}
	return *f.BoilerState, nil
}
