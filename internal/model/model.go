package model

import "time"

type HVACMode string

const (
	ModeHeat HVACMode = "heat"
	ModeCool HVACMode = "cool"
	ModeOff  HVACMode = "off"
)

type HeatingSystem string

const (
	SystemRadiator     HeatingSystem = "radiator"
	SystemFloorHeating HeatingSystem = "floor_heating"
	SystemAirco        HeatingSystem = "airco"
)

type Preset string

const (
	PresetNone     Preset = "none"
	PresetHome     Preset = "home"
	PresetAway     Preset = "away"
	PresetEco      Preset = "eco"
	PresetComfort  Preset = "comfort"
	PresetSleep    Preset = "sleep"
	PresetActivity Preset = "activity"
	PresetBoost    Preset = "boost"
)

// AreaState is the single observable state of an area. Manual is an
// overlay set for one cycle when a confirmed override suppresses the
// hysteresis evaluation.
type AreaState string

const (
	StateHeating AreaState = "heating"
	StateCooling AreaState = "cooling"
	StateIdle    AreaState = "idle"
	StateOff     AreaState = "off"
	StateManual  AreaState = "manual"
)

type WindowAction string

const (
	WindowTurnOff    WindowAction = "turn_off"
	WindowReduceTemp WindowAction = "reduce_temperature"
	WindowNone       WindowAction = "none"
)

type WindowSensor struct {
	EntityID string       `json:"entity_id"`
	Action   WindowAction `json:"action"`
	TempDrop float64      `json:"temp_drop"`
}

type Boost struct {
	Active      bool      `json:"active"`
	EndTime     time.Time `json:"end_time"`
	Temperature float64   `json:"temperature"`
}

// NightBoost adds Offset to the resolved target inside the
// [StartMinute, EndMinute) window. StartMinute > EndMinute means the
// window crosses midnight.
type NightBoost struct {
	Enabled     bool    `json:"enabled"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
	Offset      float64 `json:"offset"`
}

// SmartBoost takes priority over the regular night boost while active.
type SmartBoost struct {
	Enabled bool    `json:"enabled"`
	Active  bool    `json:"active"`
	Offset  float64 `json:"offset"`
}

type Area struct {
	ID      string        `json:"id"`
	Label   string        `json:"label"`
	Enabled bool          `json:"enabled"`
	Mode    HVACMode      `json:"mode"`
	System  HeatingSystem `json:"heating_system"`

	// nil until the first sensor reading arrives
	CurrentTemp *float64 `json:"current_temp"`
	TargetTemp  *float64 `json:"target_temp"`

	Preset      Preset              `json:"preset"`
	PresetTemps map[Preset]*float64 `json:"preset_temps"` // nil entry defers to building default

	Hysteresis *float64 `json:"hysteresis"` // nil defers to building default

	Boost      Boost      `json:"boost"`
	NightBoost NightBoost `json:"night_boost"`
	SmartBoost SmartBoost `json:"smart_boost"`

	WindowSensors   []WindowSensor `json:"window_sensors"`
	PresenceSensors []string       `json:"presence_sensors"`

	ManualOverride bool `json:"manual_override"`

	CurveCoefficient *float64 `json:"curve_coefficient"` // nil defers to building default
	AutotuneEnabled  bool     `json:"autotune_enabled"`

	PIDEnabled     bool     `json:"pid_enabled"`
	AutomaticGains bool     `json:"automatic_gains"`
	PIDActiveModes []string `json:"pid_active_modes"`
	Kp             float64  `json:"kp"`
	Ki             float64  `json:"ki"`
	Kd             float64  `json:"kd"`

	// runtime only, never persisted
	State AreaState `json:"-"`
}

// HysteresisWidth returns the area override or the building default.
func (a *Area) HysteresisWidth(buildingDefault float64) float64 {
	if a.Hysteresis != nil {
		return *a.Hysteresis
	}
	return buildingDefault
}

// Coefficient returns the area's heating-curve coefficient override or
// the building default.
func (a *Area) Coefficient(buildingDefault float64) float64 {
	if a.CurveCoefficient != nil {
		return *a.CurveCoefficient
	}
	return buildingDefault
}

// PresetTemperature resolves the temperature for a preset, deferring to
// the building-wide default when the area has no override. The bool is
// false when neither defines one.
func (a *Area) PresetTemperature(p Preset, buildingDefaults map[Preset]float64) (float64, bool) {
	if t, ok := a.PresetTemps[p]; ok && t != nil {
		return *t, true
	}
	if t, ok := buildingDefaults[p]; ok {
		return t, true
	}
	return 0, false
}

// Schedule belongs to an area. Either recurring by day of week or
// one-shot on a specific date. A schedule carries a preset, an explicit
// temperature, or both (temperature wins).
type Schedule struct {
	ID          int64    `json:"id"`
	AreaID      string   `json:"area_id"`
	Days        []int    `json:"days"` // 0=Sunday .. 6=Saturday, empty for date-specific
	Date        *string  `json:"date"` // "2006-01-02", nil for recurring
	StartMinute int      `json:"start_minute"`
	EndMinute   int      `json:"end_minute"`
	Preset      *Preset  `json:"preset"`
	Temperature *float64 `json:"temperature"`
}

// ActiveAt reports whether the schedule's window contains now, and the
// start of that window. The start time is what breaks ties when several
// schedules overlap: the latest-starting one wins.
func (s *Schedule) ActiveAt(now time.Time) (time.Time, bool) {
	minute := now.Hour()*60 + now.Minute()

	if s.Date != nil {
		d, err := time.ParseInLocation("2006-01-02", *s.Date, now.Location())
		if err != nil {
			return time.Time{}, false
		}
		if d.Year() != now.Year() || d.YearDay() != now.YearDay() {
			return time.Time{}, false
		}
		if minute < s.StartMinute || minute >= s.EndMinute {
			return time.Time{}, false
		}
		return d.Add(time.Duration(s.StartMinute) * time.Minute), true
	}

	day := int(now.Weekday())
	for _, d := range s.Days {
		if d != day {
			continue
		}
		if minute < s.StartMinute || minute >= s.EndMinute {
			return time.Time{}, false
		}
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.Add(time.Duration(s.StartMinute) * time.Minute), true
	}
	return time.Time{}, false
}

// BoilerState is the gateway telemetry snapshot read once per cycle.
type BoilerState struct {
	FlowTemp          float64
	ReturnTemp        float64
	Modulation        float64
	FlameActive       bool
	ReportsModulation bool
	MaxBoilerTemp     float64
}
