package resolver

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/heating-engine/internal/model"
)

// Source names which rung of the priority chain produced the effective
// target. Logged with every resolution and used by the override
// detector to compare device echoes against expectation.
type Source string

const (
	SourceBoost    Source = "boost"
	SourceWindow   Source = "window"
	SourcePreset   Source = "preset"
	SourceSchedule Source = "schedule"
	SourceBase     Source = "base"
)

type Resolution struct {
	Target float64
	Source Source
	// set when an expired boost was auto-cancelled during resolution;
	// the caller persists the preset reset
	BoostExpired bool
	// false when the area has no base target and nothing higher in the
	// chain produced one
	OK bool
}

type Resolver struct {
	FrostTemp      float64
	PresetDefaults map[model.Preset]float64
}

// Resolve walks the priority chain: boost, open window, preset, active
// schedule, base target. Night-boost is applied additively afterwards.
// An expired boost is cleared on the area before resolution continues.
func (r *Resolver) Resolve(area *model.Area, schedules []model.Schedule, windowOpen map[string]bool, now time.Time) Resolution {
	res := Resolution{}

	if area.Boost.Active && !now.Before(area.Boost.EndTime) {
		area.Boost.Active = false
		area.Preset = model.PresetNone
		res.BoostExpired = true
		log.Info().Str("area", area.ID).Msg("Boost expired, reverting to preset none")
	}

	if area.Boost.Active {
		res.Target = area.Boost.Temperature
		res.Source = SourceBoost
		res.OK = true
		return r.applyNightBoost(area, now, res)
	}

	target, source, ok := r.resolveBelowWindow(area, schedules, now)

	if cut, cutTarget := r.windowTarget(area, windowOpen, target); cut {
		res.Target = cutTarget
		res.Source = SourceWindow
		res.OK = true
		return r.applyNightBoost(area, now, res)
	}

	if !ok {
		return Resolution{}
	}

	res.Target = target
	res.Source = source
	res.OK = true
	return r.applyNightBoost(area, now, res)
}

func (r *Resolver) resolveBelowWindow(area *model.Area, schedules []model.Schedule, now time.Time) (float64, Source, bool) {
	if area.Preset != model.PresetNone && area.Preset != model.PresetBoost {
		if t, ok := area.PresetTemperature(area.Preset, r.PresetDefaults); ok {
			return t, SourcePreset, true
		}
		log.Warn().Str("area", area.ID).Str("preset", string(area.Preset)).
			Msg("No temperature configured for preset, falling through")
	}

	if sched, ok := ActiveSchedule(area.ID, schedules, now); ok {
		if sched.Temperature != nil {
			return *sched.Temperature, SourceSchedule, true
		}
		if sched.Preset != nil {
			if t, ok := area.PresetTemperature(*sched.Preset, r.PresetDefaults); ok {
				return t, SourceSchedule, true
			}
		}
	}

	if area.TargetTemp != nil {
		return *area.TargetTemp, SourceBase, true
	}
	return 0, "", false
}

// windowTarget applies the configured action of any open window sensor.
// turn_off dominates reduce_temperature when several windows are open;
// action none falls through.
func (r *Resolver) windowTarget(area *model.Area, windowOpen map[string]bool, below float64) (bool, float64) {
	reduced := false
	reducedTarget := 0.0

	for _, ws := range area.WindowSensors {
		if !windowOpen[ws.EntityID] {
			continue
		}
		switch ws.Action {
		case model.WindowTurnOff:
			return true, r.FrostTemp
		case model.WindowReduceTemp:
			t := below - ws.TempDrop
			if t < r.FrostTemp {
				t = r.FrostTemp
			}
			if !reduced || t < reducedTarget {
				reduced = true
				reducedTarget = t
			}
		}
	}
	return reduced, reducedTarget
}

func (r *Resolver) applyNightBoost(area *model.Area, now time.Time, res Resolution) Resolution {
	smartActive := area.SmartBoost.Enabled && area.SmartBoost.Active
	if smartActive {
		res.Target += area.SmartBoost.Offset
		return res
	}
	if area.NightBoost.Enabled && inMinuteWindow(now, area.NightBoost.StartMinute, area.NightBoost.EndMinute) {
		res.Target += area.NightBoost.Offset
	}
	return res
}

// inMinuteWindow handles windows that cross midnight: start > end means
// [start, 1440) ∪ [0, end).
func inMinuteWindow(now time.Time, start, end int) bool {
	minute := now.Hour()*60 + now.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// ActiveSchedule returns the latest-starting schedule of the area whose
// window contains now.
func ActiveSchedule(areaID string, schedules []model.Schedule, now time.Time) (*model.Schedule, bool) {
	type active struct {
		start time.Time
		sched model.Schedule
	}
	var candidates []active

	for _, s := range schedules {
		if s.AreaID != areaID {
			continue
		}
		if start, ok := s.ActiveAt(now); ok {
			candidates = append(candidates, active{start: start, sched: s})
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].start.After(candidates[j].start)
	})
	picked := candidates[0].sched
	return &picked, true
}

// ToCelsius converts a raw sensor value to Celsius. Sensors report
// their unit alongside the value; anything that is not Fahrenheit is
// passed through unchanged.
func ToCelsius(value float64, unit string) float64 {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(unit)), "°") {
	case "F":
		return (value - 32.0) * 5.0 / 9.0
	default:
		return value
	}
}
